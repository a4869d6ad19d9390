// Package npz normalizes a NIfTI volume into the canonical compressed
// tensor format described in spec.md §4.3: reorient to closest-canonical,
// triple-flip all axes, transpose to (Z,Y,X), cast to float32, and save as
// a numpy .npz archive (a zip of .npy entries). There is no numpy-format
// library in the retrieved example pack; the .npy/.npz container format is
// a small, fully documented binary layout, so it is hand-rolled on the
// standard library's archive/zip rather than pulling in an unrelated
// dependency — see DESIGN.md.
package npz

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/otcheredev/dicom-ingest/internal/nifti"
)

// Normalize reads niiPath, canonicalizes it per spec.md §4.3's NPZ
// normalization algorithm, and writes the result to npzPath under the
// array key "data". It does not delete niiPath; callers remove the
// intermediate NIfTI once the NPZ write succeeds (spec.md: "Delete the
// intermediate NIfTI").
func Normalize(niiPath, npzPath string) error {
	img, err := nifti.ReadGZ(niiPath)
	if err != nil {
		return fmt.Errorf("npz: read %s: %w", niiPath, err)
	}

	canonical := nifti.AsClosestCanonical(img)
	flipped := nifti.TripleFlip(canonical)

	// Transpose (X,Y,Z) -> (Z,Y,X): output index order z-major, then y,
	// then x fastest in the destination's row-major numpy layout.
	nx, ny, nz := flipped.Shape[0], flipped.Shape[1], flipped.Shape[2]
	out := make([]float32, nx*ny*nz)
	i := 0
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out[i] = flipped.At(x, y, z)
				i++
			}
		}
	}

	return writeNPZ(npzPath, "data", out, []int{nz, ny, nx})
}

func writeNPZ(path, key string, data []float32, shape []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("npz: create %s: %w", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: key + ".npy", Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("npz: create entry: %w", err)
	}
	if err := writeNPY(w, data, shape); err != nil {
		return fmt.Errorf("npz: write %s.npy: %w", key, err)
	}
	return zw.Close()
}

// writeNPY writes the numpy .npy v1.0 format: magic, version, header
// length, a Python-dict-literal header describing dtype/shape/order, then
// raw little-endian float32 data in C (row-major) order.
func writeNPY(w interface{ Write([]byte) (int, error) }, data []float32, shape []int) error {
	shapeStr := "("
	for i, s := range shape {
		if i > 0 {
			shapeStr += ", "
		}
		shapeStr += fmt.Sprintf("%d", s)
	}
	if len(shape) == 1 {
		shapeStr += ","
	}
	shapeStr += ")"

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", shapeStr)
	// Pad header so that magic(6) + version(2) + headerLen(2) + header is a
	// multiple of 64 bytes, per the .npy spec, terminated with \n.
	const preambleLen = 10
	totalLen := preambleLen + len(header) + 1
	padding := (64 - totalLen%64) % 64
	for i := 0; i < padding; i++ {
		header += " "
	}
	header += "\n"

	if _, err := w.Write([]byte("\x93NUMPY\x01\x00")); err != nil {
		return err
	}
	headerLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(headerLen, uint16(len(header)))
	if _, err := w.Write(headerLen); err != nil {
		return err
	}
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}

	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}
