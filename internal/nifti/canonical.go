package nifti

import "math"

// AsClosestCanonical permutes and flips img's voxel axes so that the
// dominant direction of each data axis' affine column points along a
// positive RAS axis (x->R, y->A, z->S), matching nibabel's
// as_closest_canonical. The returned affine reflects the same remapping,
// and is always a pure axis-aligned RAS matrix for the grid spacing
// encoded in the original affine's column norms.
func AsClosestCanonical(img *Image) *Image {
	// For each data axis (column of the 3x3 linear part), find which RAS
	// axis has the largest-magnitude component, and whether that
	// component is positive.
	type axisMap struct {
		rasAxis int
		flip    bool
		length  float64
	}
	mapping := make([]axisMap, 3)
	for col := 0; col < 3; col++ {
		best := 0
		bestMag := math.Abs(img.Affine[0][col])
		for row := 1; row < 3; row++ {
			mag := math.Abs(img.Affine[row][col])
			if mag > bestMag {
				bestMag = mag
				best = row
			}
		}
		length := math.Sqrt(img.Affine[0][col]*img.Affine[0][col] + img.Affine[1][col]*img.Affine[1][col] + img.Affine[2][col]*img.Affine[2][col])
		mapping[col] = axisMap{rasAxis: best, flip: img.Affine[best][col] < 0, length: length}
	}

	// dataAxisForRAS[r] = which original data axis maps to RAS axis r.
	dataAxisForRAS := [3]int{-1, -1, -1}
	for dataAxis, m := range mapping {
		dataAxisForRAS[m.rasAxis] = dataAxis
	}
	// Defensive fallback for a degenerate affine (shouldn't occur given
	// BuildAffineFromDICOM's construction, but avoids an index panic).
	for r := 0; r < 3; r++ {
		if dataAxisForRAS[r] == -1 {
			dataAxisForRAS[r] = r
		}
	}

	newShape := [3]int{img.Shape[dataAxisForRAS[0]], img.Shape[dataAxisForRAS[1]], img.Shape[dataAxisForRAS[2]]}
	out := &Image{
		Data:  make([]float32, len(img.Data)),
		Shape: newShape,
	}

	flipOnRAS := [3]bool{
		mapping[dataAxisForRAS[0]].flip,
		mapping[dataAxisForRAS[1]].flip,
		mapping[dataAxisForRAS[2]].flip,
	}

	for z := 0; z < newShape[2]; z++ {
		for y := 0; y < newShape[1]; y++ {
			for x := 0; x < newShape[0]; x++ {
				srcCoord := [3]int{x, y, z}
				old := [3]int{0, 0, 0}
				old[dataAxisForRAS[0]] = coordOrFlip(srcCoord[0], newShape[0], flipOnRAS[0])
				old[dataAxisForRAS[1]] = coordOrFlip(srcCoord[1], newShape[1], flipOnRAS[1])
				old[dataAxisForRAS[2]] = coordOrFlip(srcCoord[2], newShape[2], flipOnRAS[2])
				out.Set(x, y, z, img.At(old[0], old[1], old[2]))
			}
		}
	}

	var newAffine = img.Affine
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			newAffine[r][c] = 0
		}
	}
	newAffine[0][0] = mapping[dataAxisForRAS[0]].length
	newAffine[1][1] = mapping[dataAxisForRAS[1]].length
	newAffine[2][2] = mapping[dataAxisForRAS[2]].length
	newAffine[3][3] = 1
	out.Affine = newAffine

	return out
}

func coordOrFlip(i, n int, flip bool) int {
	if flip {
		return n - 1 - i
	}
	return i
}

// TripleFlip reverses all three voxel axes ([::-1,::-1,::-1] in the
// original), the deliberate corollary documented in spec.md §4.3 that
// establishes the supine axial display convention.
func TripleFlip(img *Image) *Image {
	out := &Image{Data: make([]float32, len(img.Data)), Shape: img.Shape, Affine: img.Affine}
	nx, ny, nz := img.Shape[0], img.Shape[1], img.Shape[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out.Set(nx-1-x, ny-1-y, nz-1-z, img.At(x, y, z))
			}
		}
	}
	return out
}
