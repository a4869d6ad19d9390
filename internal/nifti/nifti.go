// Package nifti implements a minimal NIfTI-1 reader/writer sufficient for
// this service's round-trip: write a float32 volume with an RAS affine,
// and read it back for NPZ normalization. There is no NIfTI parsing library
// in the retrieved example pack, and pulling one in for a single reader/
// writer path would add a dependency with no other use in this codebase —
// see DESIGN.md for the justification of this stdlib-only implementation.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/otcheredev/dicom-ingest/internal/orientation"
)

const (
	headerSize   = 348
	magicNumber  = "n+1\x00"
	datatypeFloat32 = 16
	bitpixFloat32   = 32
)

// Image is an in-memory NIfTI volume: row-major data ordered (x fastest,
// then y, then z), an RAS affine, and the voxel grid shape.
type Image struct {
	Data   []float32
	Shape  [3]int // nx, ny, nz
	Affine orientation.Affine
}

// At returns the value at voxel (x, y, z).
func (img *Image) At(x, y, z int) float32 {
	return img.Data[img.index(x, y, z)]
}

// Set assigns the value at voxel (x, y, z).
func (img *Image) Set(x, y, z int, v float32) {
	img.Data[img.index(x, y, z)] = v
}

func (img *Image) index(x, y, z int) int {
	return x + y*img.Shape[0] + z*img.Shape[0]*img.Shape[1]
}

// WriteGZ writes img as a gzip-compressed NIfTI-1 (.nii.gz) file.
func WriteGZ(path string, img *Image) error {
	var body bytes.Buffer
	if err := writeHeader(&body, img); err != nil {
		return fmt.Errorf("nifti: write header: %w", err)
	}
	if err := binary.Write(&body, binary.LittleEndian, img.Data); err != nil {
		return fmt.Errorf("nifti: write voxel data: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("nifti: create %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(body.Bytes()); err != nil {
		gz.Close()
		return fmt.Errorf("nifti: gzip write: %w", err)
	}
	return gz.Close()
}

func writeHeader(buf *bytes.Buffer, img *Image) error {
	h := make([]byte, headerSize)

	binary.LittleEndian.PutUint32(h[0:4], headerSize) // sizeof_hdr
	h[39] = 'r'                                       // dim_info placeholder

	// dim[8]: dim[0] = number of dimensions, dim[1..3] = nx, ny, nz
	putInt16(h, 40, 3)
	putInt16(h, 42, int16(img.Shape[0]))
	putInt16(h, 44, int16(img.Shape[1]))
	putInt16(h, 46, int16(img.Shape[2]))
	putInt16(h, 48, 1)
	putInt16(h, 50, 1)
	putInt16(h, 52, 1)
	putInt16(h, 54, 1)

	putInt16(h, 70, datatypeFloat32) // datatype
	putInt16(h, 72, bitpixFloat32)   // bitpix

	// pixdim[8]: pixdim[0] is the qfac sign (1 for standard), 1..3 unit voxel
	// sizes (the affine carries the real scaling, so these are left at 1).
	binary.LittleEndian.PutUint32(h[76:80], math.Float32bits(1))
	binary.LittleEndian.PutUint32(h[80:84], math.Float32bits(1))
	binary.LittleEndian.PutUint32(h[84:88], math.Float32bits(1))
	binary.LittleEndian.PutUint32(h[88:92], math.Float32bits(1))

	binary.LittleEndian.PutUint32(h[108:112], headerSize) // vox_offset

	// sform: authoritative affine, sform_code = 1 (scanner anat)
	putInt16(h, 254, 1) // qform_code
	putInt16(h, 256, 1) // sform_code

	for row := 0; row < 3; row++ {
		off := 280 + row*16
		for col := 0; col < 4; col++ {
			binary.LittleEndian.PutUint32(h[off+col*4:off+col*4+4], math.Float32bits(float32(img.Affine[row][col])))
		}
	}

	copy(h[344:348], magicNumber)

	_, err := buf.Write(h)
	return err
}

func putInt16(h []byte, offset int, v int16) {
	binary.LittleEndian.PutUint16(h[offset:offset+2], uint16(v))
}

func getInt16(h []byte, offset int) int16 {
	return int16(binary.LittleEndian.Uint16(h[offset : offset+2]))
}

// ReadGZ reads a gzip-compressed NIfTI-1 file written by WriteGZ (or any
// conforming float32 NIfTI-1 file using the sform affine).
func ReadGZ(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nifti: open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("nifti: gzip reader: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("nifti: read: %w", err)
	}
	if len(raw) < headerSize {
		return nil, fmt.Errorf("nifti: truncated header")
	}
	h := raw[:headerSize]

	nx := int(getInt16(h, 42))
	ny := int(getInt16(h, 44))
	nz := int(getInt16(h, 46))

	var affine orientation.Affine
	affine[3][3] = 1
	for row := 0; row < 3; row++ {
		off := 280 + row*16
		for col := 0; col < 4; col++ {
			affine[row][col] = float64(math.Float32frombits(binary.LittleEndian.Uint32(h[off+col*4 : off+col*4+4])))
		}
	}

	voxOffset := int(binary.LittleEndian.Uint32(h[108:112]))
	if voxOffset == 0 {
		voxOffset = headerSize
	}
	count := nx * ny * nz
	data := make([]float32, count)
	reader := bytes.NewReader(raw[voxOffset:])
	if err := binary.Read(reader, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("nifti: read voxel data: %w", err)
	}

	return &Image{Data: data, Shape: [3]int{nx, ny, nz}, Affine: affine}, nil
}
