package qc

import "testing"

func TestSelectIndicesFullBelowThreshold(t *testing.T) {
	indices, mode := SelectIndices(5)
	if mode != ModeFull {
		t.Fatalf("mode = %v, want ModeFull", mode)
	}
	if len(indices) != 5 {
		t.Fatalf("len(indices) = %d, want 5", len(indices))
	}
}

func TestSelectIndicesSamplesLargeSeries(t *testing.T) {
	indices, mode := SelectIndices(500)
	if mode != ModeSampled {
		t.Fatalf("mode = %v, want ModeSampled", mode)
	}
	want := 2*sampleRadius + 1
	if len(indices) != want {
		t.Fatalf("len(indices) = %d, want %d", len(indices), want)
	}
	mid := 500 / 2
	if indices[0] != mid-sampleRadius || indices[len(indices)-1] != mid+sampleRadius {
		t.Errorf("indices = %v, want centered on %d +/- %d", indices, mid, sampleRadius)
	}
}

func TestSelectIndicesEmptySeries(t *testing.T) {
	indices, mode := SelectIndices(0)
	if mode != ModeNone || indices != nil {
		t.Errorf("SelectIndices(0) = %v, %v; want nil, ModeNone", indices, mode)
	}
}

func TestIsLowQualityFlagsEmptySlice(t *testing.T) {
	if !IsLowQuality(nil, DefaultThresholds()) {
		t.Error("expected empty slice to be flagged low quality")
	}
}

func TestIsLowQualityFlagsFlatSlice(t *testing.T) {
	flat := make([]float64, 256)
	for i := range flat {
		flat[i] = 500
	}
	if !IsLowQuality(flat, DefaultThresholds()) {
		t.Error("expected a uniform-value slice to be flagged low quality (zero dynamic range)")
	}
}

func TestIsLowQualityFlagsDominantHistogramBin(t *testing.T) {
	th := DefaultThresholds()
	pixels := make([]float64, 1000)
	for i := range pixels {
		if i < 950 {
			pixels[i] = 100
		} else {
			pixels[i] = 100 + th.MinDynamicRangeFraction*th.BitDepth + 10
		}
	}
	if !IsLowQuality(pixels, th) {
		t.Error("expected a 95-percent-dominant single bin to be flagged low quality")
	}
}

func TestIsLowQualityPassesRealisticSlice(t *testing.T) {
	th := DefaultThresholds()
	pixels := make([]float64, 256)
	for i := range pixels {
		pixels[i] = float64(i % 200) * 10
	}
	if IsLowQuality(pixels, th) {
		t.Error("expected a varied ramp of pixel values to pass QC")
	}
}

func TestScoreSeriesAggregatesOverThresholdAsLowQuality(t *testing.T) {
	flat := make([]float64, 64)
	for i := range flat {
		flat[i] = 1
	}
	sliceAt := func(i int) []float64 { return flat }
	report := ScoreSeries(4, sliceAt, DefaultThresholds())
	if !report.LowQuality {
		t.Error("expected all-flat series to be flagged low quality")
	}
	if report.LowQualityRatio != 1.0 {
		t.Errorf("LowQualityRatio = %v, want 1.0", report.LowQualityRatio)
	}
	if report.QCMode != ModeFull {
		t.Errorf("QCMode = %v, want ModeFull", report.QCMode)
	}
}

func TestScoreSeriesEmptySeriesReportsModeNone(t *testing.T) {
	report := ScoreSeries(0, func(i int) []float64 { return nil }, DefaultThresholds())
	if report.QCMode != ModeNone {
		t.Errorf("QCMode = %v, want ModeNone", report.QCMode)
	}
}
