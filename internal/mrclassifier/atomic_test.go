package mrclassifier

import "testing"

func TestExtractAtomicFeaturesOrientationFromCosines(t *testing.T) {
	cfg := DefaultConfig()

	rows := []*Row{
		{ImageOrientationPatient: `1\0\0\0\1\0`}, // pure axial row/col cosines
	}
	ExtractAtomicFeatures(rows, cfg)
	if rows[0].StandardOrientation != "AX" {
		t.Errorf("StandardOrientation = %q, want AX", rows[0].StandardOrientation)
	}
}

func TestExtractAtomicFeaturesOrientationFallsBackToProtocolName(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "T2 SAG FLAIR"},
	}
	ExtractAtomicFeatures(rows, cfg)
	if rows[0].StandardOrientation != "SAG" {
		t.Errorf("StandardOrientation = %q, want SAG", rows[0].StandardOrientation)
	}
}

func TestExtractAtomicFeaturesUnknownOrientationWithoutCluesFails(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{{}}
	ExtractAtomicFeatures(rows, cfg)
	if rows[0].StandardOrientation != "UNKNOWN" {
		t.Errorf("StandardOrientation = %q, want UNKNOWN", rows[0].StandardOrientation)
	}
}

func TestExtractAtomicFeaturesContrastEnhancedFromProtocol(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "AX T1 POST Gd"},
		{ProtocolName: "AX T1 PRE"},
	}
	ExtractAtomicFeatures(rows, cfg)
	if !rows[0].IsContrastEnhanced {
		t.Errorf("expected row 0 contrast enhanced")
	}
	if rows[1].IsContrastEnhanced {
		t.Errorf("expected row 1 not contrast enhanced")
	}
}

func TestExtractAtomicFeaturesFatSuppressionViaScanOptions(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ScanOptions: "FS"},
		{ScanOptions: ""},
	}
	ExtractAtomicFeatures(rows, cfg)
	if !rows[0].IsFatSuppressed {
		t.Errorf("expected ScanOptions=FS to flag fat suppression")
	}
	if rows[1].IsFatSuppressed {
		t.Errorf("expected empty ScanOptions to not flag fat suppression")
	}
}

func TestExtractAtomicFeaturesFatSuppressionViaSTIR(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ScanningSequence: "IR", InversionTime: 150, HasInversionTime: true},
		{ScanningSequence: "IR", InversionTime: 2000, HasInversionTime: true}, // outside STIR window
	}
	ExtractAtomicFeatures(rows, cfg)
	if !rows[0].IsFatSuppressed {
		t.Errorf("expected STIR TI within window to flag fat suppression")
	}
	if rows[1].IsFatSuppressed {
		t.Errorf("expected STIR TI outside window to not flag fat suppression")
	}
}

func TestBucketFieldStrength(t *testing.T) {
	cases := []struct {
		value float64
		has   bool
		want  string
	}{
		{0, false, "UNKNOWN"},
		{0.5, true, "Low-Field"},
		{1.5, true, "1.5T"},
		{3.0, true, "3.0T"},
		{7.0, true, "High-Field"},
	}
	for _, tc := range cases {
		r := &Row{MagneticFieldStrength: tc.value, HasFieldStrength: tc.has}
		got := bucketFieldStrength(r)
		if got != tc.want {
			t.Errorf("bucketFieldStrength(%v, has=%v) = %q, want %q", tc.value, tc.has, got, tc.want)
		}
	}
}

func TestStandardManufacturer(t *testing.T) {
	cases := []struct{ in, want string }{
		{"SIEMENS", "Siemens"},
		{"Philips Medical Systems", "Philips"},
		{"GE MEDICAL SYSTEMS", "GE"},
		{"United Imaging Healthcare", "UIH"},
		{"Acme Scanners Inc", "Other"},
	}
	for _, tc := range cases {
		got := standardManufacturer(tc.in)
		if got != tc.want {
			t.Errorf("standardManufacturer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
