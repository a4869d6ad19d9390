// Package orientation builds the 4x4 patient-to-voxel affine matrices used
// by the series converter, and applies the rescale/photometric pixel
// transforms DICOM requires before an array can be treated as physical
// intensity. Grounded on original_source/src/core/convert.py's
// build_affine_from_dicom, _build_affine_for_2d_projection, apply_rescale
// and apply_photometric.
package orientation

import "math"

// Affine is a 4x4 matrix stored row-major.
type Affine [4][4]float64

// Identity returns the 4x4 identity matrix.
func Identity() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// ApplyRescale converts raw stored pixel values to physical intensity:
// x*slope + intercept, as float32 precision (spec.md §4.3).
func ApplyRescale(pixels []float64, slope, intercept float64) []float64 {
	out := make([]float64, len(pixels))
	for i, v := range pixels {
		out[i] = float32ToFloat64(float64(float32(v*slope + intercept)))
	}
	return out
}

func float32ToFloat64(v float64) float64 {
	return float64(float32(v))
}

// ApplyPhotometric inverts MONOCHROME1 data (x <- max(x) - x) in place
// semantics (returns a new slice); other photometric interpretations are
// passed through unchanged.
func ApplyPhotometric(pixels []float64, photometricInterpretation string) []float64 {
	if photometricInterpretation != "MONOCHROME1" {
		return pixels
	}
	max := math.Inf(-1)
	for _, v := range pixels {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(pixels))
	for i, v := range pixels {
		out[i] = max - v
	}
	return out
}

// Vec3 is a 3-element physical-space vector.
type Vec3 [3]float64

func sub(a, b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func norm(v Vec3) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// BuildAffineFromDICOM constructs the RAS affine from ImageOrientationPatient
// (row, col cosines), ImagePositionPatient, pixel spacing and slice spacing.
// sliceCosines, when nil, defaults to row x col (the cross product), matching
// the original's fallback.
func BuildAffineFromDICOM(rowCosine, colCosine Vec3, sliceCosines *Vec3, position Vec3, rowSpacing, colSpacing, sliceSpacing float64) Affine {
	s := cross(rowCosine, colCosine)
	if sliceCosines != nil {
		s = *sliceCosines
	}

	// LPS affine: columns are (r*row_spacing, c*col_spacing, s*slice_spacing, p).
	var lps Affine
	for i := 0; i < 3; i++ {
		lps[i][0] = rowCosine[i] * rowSpacing
		lps[i][1] = colCosine[i] * colSpacing
		lps[i][2] = s[i] * sliceSpacing
		lps[i][3] = position[i]
	}
	lps[3][3] = 1

	return lpsToRAS(lps)
}

// lpsToRAS left-multiplies by diag(-1,-1,1,1), converting the first two
// physical axes from Left/Posterior to Right/Anterior.
func lpsToRAS(lps Affine) Affine {
	ras := lps
	for col := 0; col < 4; col++ {
		ras[0][col] = -lps[0][col]
		ras[1][col] = -lps[1][col]
	}
	return ras
}

// patientOrientationAxis maps a single PatientOrientation code letter to its
// signed RAS unit vector, used when ImageOrientationPatient is unavailable
// (spec.md §4.3, DR/DX/MG 2-D fallback).
func patientOrientationAxis(code byte) (Vec3, bool) {
	switch code {
	case 'R':
		return Vec3{1, 0, 0}, true
	case 'L':
		return Vec3{-1, 0, 0}, true
	case 'A':
		return Vec3{0, 1, 0}, true
	case 'P':
		return Vec3{0, -1, 0}, true
	case 'H':
		return Vec3{0, 0, 1}, true
	case 'F':
		return Vec3{0, 0, -1}, true
	}
	return Vec3{}, false
}

// BuildAffineFor2DProjection synthesizes row/col cosines from a
// PatientOrientation pair (e.g. "R\\A") when ImageOrientationPatient and
// ImagePositionPatient are absent, for single-instance DR/DX/MG conversion.
// When patientOrientation can't be parsed, it falls back to identity axes
// scaled by rowSpacing and colSpacing on the diagonal.
func BuildAffineFor2DProjection(patientOrientation string, rowSpacing, colSpacing float64) Affine {
	rowCode, colCode, ok := splitPatientOrientation(patientOrientation)
	if !ok {
		return identityWithSpacing(rowSpacing, colSpacing)
	}
	rowAxis, ok1 := patientOrientationAxis(rowCode)
	colAxis, ok2 := patientOrientationAxis(colCode)
	if !ok1 || !ok2 {
		return identityWithSpacing(rowSpacing, colSpacing)
	}
	normalAxis := cross(rowAxis, colAxis)
	return BuildAffineFromDICOM(rowAxis, colAxis, &normalAxis, Vec3{0, 0, 0}, rowSpacing, colSpacing, 1.0)
}

func splitPatientOrientation(po string) (byte, byte, bool) {
	for i := 0; i < len(po); i++ {
		if po[i] == '\\' && i > 0 && i+1 < len(po) {
			return po[0], po[i+1], true
		}
	}
	return 0, 0, false
}

func identityWithSpacing(rowSpacing, colSpacing float64) Affine {
	a := Identity()
	a[0][0] = rowSpacing
	a[1][1] = colSpacing
	return a
}

// SliceSpacing derives the spacing between consecutive slices: the
// Euclidean distance between the first two known ImagePositionPatient
// vectors if at least two are available, else sliceThicknessFallback. It
// takes no SliceLocation values, so a series with fewer than two positions
// gets the thickness even when SliceLocation is present.
func SliceSpacing(positions []Vec3, sliceThicknessFallback float64) float64 {
	if len(positions) >= 2 {
		return norm(sub(positions[1], positions[0]))
	}
	return sliceThicknessFallback
}

// SortSlicesByZ returns the permutation of indices [0, len(z)) that orders
// slices by ascending z (ImagePositionPatient z-component, or
// SliceLocation, or 0 when neither is known — callers pre-resolve which
// value feeds z).
func SortSlicesByZ(z []float64) []int {
	idx := make([]int, len(z))
	for i := range idx {
		idx[i] = i
	}
	// simple insertion sort: slice counts are small (hundreds) and this
	// keeps the dependency surface minimal for a leaf utility package.
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && z[idx[j-1]] > z[idx[j]] {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			j--
		}
	}
	return idx
}
