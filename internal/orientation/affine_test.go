package orientation

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyRescale(t *testing.T) {
	out := ApplyRescale([]float64{0, 100, 200}, 2.0, -50)
	want := []float64{-50, 150, 350}
	for i := range want {
		if !almostEqual(out[i], want[i]) {
			t.Errorf("ApplyRescale[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestApplyPhotometricInvertsMonochrome1(t *testing.T) {
	in := []float64{0, 10, 20}
	out := ApplyPhotometric(in, "MONOCHROME1")
	want := []float64{20, 10, 0}
	for i := range want {
		if !almostEqual(out[i], want[i]) {
			t.Errorf("ApplyPhotometric[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestApplyPhotometricPassesThroughOtherInterpretations(t *testing.T) {
	in := []float64{0, 10, 20}
	out := ApplyPhotometric(in, "MONOCHROME2")
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("expected MONOCHROME2 passthrough, got %v want %v", out[i], in[i])
		}
	}
}

func TestBuildAffineFromDICOMAxial(t *testing.T) {
	// Pure axial: row cosine along +X, col cosine along +Y.
	a := BuildAffineFromDICOM(Vec3{1, 0, 0}, Vec3{0, 1, 0}, nil, Vec3{0, 0, 0}, 1, 1, 1)

	// LPS->RAS negates the first two rows, so +X(row) LPS becomes -X RAS.
	if !almostEqual(a[0][0], -1) {
		t.Errorf("a[0][0] = %v, want -1", a[0][0])
	}
	if !almostEqual(a[1][1], -1) {
		t.Errorf("a[1][1] = %v, want -1", a[1][1])
	}
	// Slice axis is row x col = +Z, unaffected by the RAS row negation.
	if !almostEqual(a[2][2], 1) {
		t.Errorf("a[2][2] = %v, want 1", a[2][2])
	}
}

func TestSliceSpacingFromPositions(t *testing.T) {
	got := SliceSpacing([]Vec3{{0, 0, 0}, {0, 0, 2.5}}, 1.0)
	if !almostEqual(got, 2.5) {
		t.Errorf("SliceSpacing = %v, want 2.5", got)
	}
}

func TestSliceSpacingFallsBackToThickness(t *testing.T) {
	got := SliceSpacing(nil, 3.0)
	if !almostEqual(got, 3.0) {
		t.Errorf("SliceSpacing = %v, want fallback 3.0", got)
	}
	got = SliceSpacing([]Vec3{{0, 0, 0}}, 4.0)
	if !almostEqual(got, 4.0) {
		t.Errorf("SliceSpacing with one position = %v, want fallback 4.0", got)
	}
}

func TestSortSlicesByZ(t *testing.T) {
	z := []float64{3, 1, 2}
	idx := SortSlicesByZ(z)
	want := []int{1, 2, 0}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("SortSlicesByZ = %v, want %v", idx, want)
		}
	}
}

func TestBuildAffineFor2DProjectionFallsBackToIdentity(t *testing.T) {
	a := BuildAffineFor2DProjection("garbage", 2.0, 3.0)
	if !almostEqual(a[0][0], 2.0) || !almostEqual(a[1][1], 3.0) {
		t.Errorf("expected identity-with-spacing fallback, got %+v", a)
	}
}

func TestBuildAffineFor2DProjectionFromPatientOrientation(t *testing.T) {
	a := BuildAffineFor2DProjection(`R\A`, 1.0, 1.0)
	// R row axis (+1,0,0) negated by RAS -> a[0][0] == -1.
	if !almostEqual(a[0][0], -1) {
		t.Errorf("a[0][0] = %v, want -1", a[0][0])
	}
}
