package convert

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/otcheredev/dicom-ingest/internal/nifti"
	"github.com/otcheredev/dicom-ingest/internal/orientation"
)

// instanceData holds one decoded DICOM instance's pixel array and the
// geometry tags needed for slice ordering and affine construction.
type instanceData struct {
	path                string
	instanceNumber      int
	rows, cols          int
	pixels              []float64 // row-major, already rescaled/photometric-corrected
	rowCosine, colCosine orientation.Vec3
	hasOrientation      bool
	position            orientation.Vec3
	hasPosition         bool
	sliceLocation       float64
	hasSliceLocation    bool
	pixelSpacingRow     float64
	pixelSpacingCol     float64
	sliceThickness      float64
	patientOrientation  string
	photometric         string
}

// readInstance parses one .dcm file via suyashkumar/dicom and applies the
// rescale/photometric pixel transforms spec.md §4.3 mandates.
func readInstance(path string) (*instanceData, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("convert: parse %s: %w", path, err)
	}

	inst := &instanceData{path: path}
	inst.instanceNumber = firstInt(ds, tag.InstanceNumber, 0)
	inst.photometric = firstString(ds, tag.PhotometricInterpretation)

	rowSp, colSp := pixelSpacing(ds)
	inst.pixelSpacingRow, inst.pixelSpacingCol = rowSp, colSp
	inst.sliceThickness = firstFloat(ds, tag.SliceThickness, 1.0)
	inst.patientOrientation = firstString(ds, tag.PatientOrientation)

	if r, c, ok := imageOrientation(ds); ok {
		inst.rowCosine, inst.colCosine, inst.hasOrientation = r, c, true
	}
	if p, ok := imagePosition(ds); ok {
		inst.position, inst.hasPosition = p, true
	}
	if v, ok := floatTag(ds, tag.SliceLocation); ok {
		inst.sliceLocation, inst.hasSliceLocation = v, true
	}

	rows, cols, pixels, err := readPixels(ds)
	if err != nil {
		return nil, fmt.Errorf("convert: read pixel data from %s: %w", path, err)
	}
	slope := firstFloat(ds, tag.RescaleSlope, 1.0)
	intercept := firstFloat(ds, tag.RescaleIntercept, 0.0)
	pixels = orientation.ApplyRescale(pixels, slope, intercept)
	pixels = orientation.ApplyPhotometric(pixels, inst.photometric)

	inst.rows, inst.cols, inst.pixels = rows, cols, pixels
	return inst, nil
}

func readPixels(ds dicom.Dataset) (rows, cols int, pixels []float64, err error) {
	rows = firstInt(ds, tag.Rows, 0)
	cols = firstInt(ds, tag.Columns, 0)

	elem, findErr := ds.FindElementByTag(tag.PixelData)
	if findErr != nil {
		return 0, 0, nil, findErr
	}
	pixelInfo, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(pixelInfo.Frames) == 0 {
		return 0, 0, nil, fmt.Errorf("no pixel frames present")
	}
	frame := pixelInfo.Frames[0]
	img, imgErr := frame.GetImage()
	if imgErr != nil {
		return 0, 0, nil, imgErr
	}

	bounds := img.Bounds()
	if rows == 0 {
		rows = bounds.Dy()
	}
	if cols == 0 {
		cols = bounds.Dx()
	}
	pixels = make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pixels[y*cols+x] = grayValue(img, bounds.Min.X+x, bounds.Min.Y+y)
		}
	}
	return rows, cols, pixels, nil
}

func grayValue(img image.Image, x, y int) float64 {
	switch im := img.(type) {
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y)
	default:
		r, _, _, _ := img.At(x, y).RGBA()
		return float64(r >> 8)
	}
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	if vals, ok := elem.Value.GetValue().([]string); ok && len(vals) > 0 {
		return vals[0]
	}
	return strings.Trim(elem.Value.String(), " []")
}

func firstInt(ds dicom.Dataset, t tag.Tag, def int) int {
	s := firstString(ds, t)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func firstFloat(ds dicom.Dataset, t tag.Tag, def float64) float64 {
	s := firstString(ds, t)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

func floatTag(ds dicom.Dataset, t tag.Tag) (float64, bool) {
	s := firstString(ds, t)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func pixelSpacing(ds dicom.Dataset) (row, col float64) {
	elem, err := ds.FindElementByTag(tag.PixelSpacing)
	if err != nil || elem == nil {
		return 1, 1
	}
	vals, ok := elem.Value.GetValue().([]string)
	if !ok || len(vals) < 2 {
		return 1, 1
	}
	row, _ = strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
	col, _ = strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
	if row == 0 {
		row = 1
	}
	if col == 0 {
		col = 1
	}
	return row, col
}

func imageOrientation(ds dicom.Dataset) (row, col orientation.Vec3, ok bool) {
	elem, err := ds.FindElementByTag(tag.ImageOrientationPatient)
	if err != nil || elem == nil {
		return row, col, false
	}
	vals, okv := elem.Value.GetValue().([]string)
	if !okv || len(vals) < 6 {
		return row, col, false
	}
	nums := make([]float64, 6)
	for i, v := range vals[:6] {
		nums[i], _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return orientation.Vec3{nums[0], nums[1], nums[2]}, orientation.Vec3{nums[3], nums[4], nums[5]}, true
}

func imagePosition(ds dicom.Dataset) (orientation.Vec3, bool) {
	elem, err := ds.FindElementByTag(tag.ImagePositionPatient)
	if err != nil || elem == nil {
		return orientation.Vec3{}, false
	}
	vals, ok := elem.Value.GetValue().([]string)
	if !ok || len(vals) < 3 {
		return orientation.Vec3{}, false
	}
	var p orientation.Vec3
	for i := 0; i < 3; i++ {
		p[i], _ = strconv.ParseFloat(strings.TrimSpace(vals[i]), 64)
	}
	return p, true
}

// ConvertSeriesFallback sorts instances by z, stacks them into a volume,
// builds the RAS affine, and writes one NIfTI file — the pure-library path
// used when dcm2niix is unavailable or exhausts its retries (spec.md
// §4.3 "Pure-library fallback").
func ConvertSeriesFallback(dcmFiles []string, outputPath string) error {
	instances := make([]*instanceData, 0, len(dcmFiles))
	for _, f := range dcmFiles {
		inst, err := readInstance(f)
		if err != nil {
			continue // per-file failures are skipped; series succeeds if >=1 works
		}
		instances = append(instances, inst)
	}
	if len(instances) == 0 {
		return fmt.Errorf("convert: no readable instances in series")
	}

	zs := make([]float64, len(instances))
	positions := make([]orientation.Vec3, 0, len(instances))
	for i, inst := range instances {
		switch {
		case inst.hasPosition:
			zs[i] = inst.position[2]
			positions = append(positions, inst.position)
		case inst.hasSliceLocation:
			zs[i] = inst.sliceLocation
		default:
			zs[i] = 0
		}
	}
	order := orientation.SortSlicesByZ(zs)

	rows, cols := instances[0].rows, instances[0].cols
	nz := len(instances)
	img := &nifti.Image{Data: make([]float32, rows*cols*nz), Shape: [3]int{cols, rows, nz}}
	for outZ, idx := range order {
		inst := instances[idx]
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				img.Set(x, y, outZ, float32(inst.pixels[y*cols+x]))
			}
		}
	}

	first := instances[order[0]]
	sliceSpacing := orientation.SliceSpacing(positions, first.sliceThickness)

	var affine orientation.Affine
	if first.hasOrientation {
		var sliceCosines *orientation.Vec3
		position := orientation.Vec3{}
		if first.hasPosition {
			position = first.position
		}
		affine = orientation.BuildAffineFromDICOM(first.rowCosine, first.colCosine, sliceCosines, position, first.pixelSpacingRow, first.pixelSpacingCol, sliceSpacing)
	} else {
		affine = orientation.BuildAffineFor2DProjection(first.patientOrientation, first.pixelSpacingRow, first.pixelSpacingCol)
	}
	img.Affine = affine

	canonical := nifti.AsClosestCanonical(img)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("convert: create output dir: %w", err)
	}
	return nifti.WriteGZ(outputPath, canonical)
}

// sortInstancesByInstanceNumber is used for individual (DR/DX/MG) mode to
// preserve the original acquisition order via the _{n:04d} output suffix.
func sortInstancesByInstanceNumber(files []string) []string {
	type entry struct {
		path string
		num  int
	}
	entries := make([]entry, len(files))
	for i, f := range files {
		inst, err := readInstance(f)
		num := i
		if err == nil {
			num = inst.instanceNumber
		}
		entries[i] = entry{path: f, num: num}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out
}
