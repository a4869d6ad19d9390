package mrclassifier

import "testing"

func TestClassifyDWI(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "AX DWI", BValue: 800, HasBValue: true},
	}
	ExtractAtomicFeatures(rows, cfg)
	Classify(rows, cfg)
	if rows[0].SequenceClass != "DWI" {
		t.Errorf("SequenceClass = %q, want DWI", rows[0].SequenceClass)
	}
}

func TestClassifyDTIFromProtocolKeyword(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "AX DTI 30 DIR", BValue: 1000, HasBValue: true},
	}
	ExtractAtomicFeatures(rows, cfg)
	Classify(rows, cfg)
	if rows[0].SequenceClass != "DTI" {
		t.Errorf("SequenceClass = %q, want DTI", rows[0].SequenceClass)
	}
}

func TestClassifyT1GRE(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "AX T1 SPIN", ScanningSequence: "GR", TR: 500, TE: 10},
	}
	ExtractAtomicFeatures(rows, cfg)
	Classify(rows, cfg)
	if rows[0].SequenceClass != "T1_GRE" {
		t.Errorf("SequenceClass = %q, want T1_GRE", rows[0].SequenceClass)
	}
}

func TestClassifyFallsBackToFlairKeyword(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{ProtocolName: "AX FLAIR", ScanningSequence: "SE", TR: 1500, TE: 50},
	}
	ExtractAtomicFeatures(rows, cfg)
	Classify(rows, cfg)
	if rows[0].SequenceClass != "T2_FLAIR" {
		t.Errorf("SequenceClass = %q, want T2_FLAIR", rows[0].SequenceClass)
	}
}

func TestSuffixForWaterToken(t *testing.T) {
	cfg := DefaultConfig()
	r := &Row{ImageType: "ORIGINAL\\PRIMARY\\WATER", ProtocolNameLower: "ax dixon"}
	got := suffixFor(r, cfg)
	if got != "_WATER" {
		t.Errorf("suffixFor = %q, want _WATER", got)
	}
}

func TestSuffixForAppendsMotionCorrection(t *testing.T) {
	cfg := DefaultConfig()
	r := &Row{ImageType: "", ProtocolNameLower: "ax t2 radial", HasMotionCorrection: true}
	got := suffixFor(r, cfg)
	if got != "_MC" {
		t.Errorf("suffixFor = %q, want _MC", got)
	}
}

func TestSequenceFamilySingleShot(t *testing.T) {
	cfg := DefaultConfig()
	r := &Row{ScanningSequence: "SE", ProtocolNameLower: "ax haste"}
	got := sequenceFamily(r, cfg)
	if got != "SE_SingleShot" {
		t.Errorf("sequenceFamily = %q, want SE_SingleShot", got)
	}
}

func TestSequenceFamilyTSEViaETL(t *testing.T) {
	cfg := DefaultConfig()
	r := &Row{ScanningSequence: "SE", ProtocolNameLower: "ax t2", ETL: 16, HasETL: true}
	got := sequenceFamily(r, cfg)
	if got != "TSE" {
		t.Errorf("sequenceFamily = %q, want TSE", got)
	}
}
