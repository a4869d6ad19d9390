package mrclassifier

import "testing"

func TestInferDynamicGroupsGroupsRepeatedFingerprint(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{StudyInstanceUID: "1.2.3", SequenceClass: "T1_GRE", SeriesTime: "100000"},
		{StudyInstanceUID: "1.2.3", SequenceClass: "T1_GRE", SeriesTime: "100500"},
		{StudyInstanceUID: "1.2.3", SequenceClass: "DWI", SeriesTime: "101000"}, // excluded class, own fingerprint anyway
	}
	InferDynamicGroups(rows, cfg)

	if rows[0].DynamicGroup == "" || rows[0].DynamicGroup != rows[1].DynamicGroup {
		t.Fatalf("expected rows 0 and 1 to share a dynamic group, got %q and %q", rows[0].DynamicGroup, rows[1].DynamicGroup)
	}
	if rows[0].DynamicPhase != "PRE" {
		t.Errorf("rows[0].DynamicPhase = %q, want PRE", rows[0].DynamicPhase)
	}
	if rows[1].DynamicPhase != "POST_1" {
		t.Errorf("rows[1].DynamicPhase = %q, want POST_1", rows[1].DynamicPhase)
	}
	if rows[2].DynamicGroup != "" {
		t.Errorf("expected excluded-class row ungrouped, got %q", rows[2].DynamicGroup)
	}
}

func TestInferDynamicGroupsLeavesSingletonsUngrouped(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{StudyInstanceUID: "1.2.3", SequenceClass: "T1_GRE", SeriesTime: "100000", TR: 500},
		{StudyInstanceUID: "1.2.3", SequenceClass: "T2_TSE", SeriesTime: "100500", TR: 4000},
	}
	InferDynamicGroups(rows, cfg)
	for i, r := range rows {
		if r.DynamicGroup != "" {
			t.Errorf("row %d: expected no dynamic group for a unique fingerprint, got %q", i, r.DynamicGroup)
		}
	}
}

func TestInferDynamicGroupsScopedPerStudy(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{StudyInstanceUID: "study-A", SequenceClass: "T1_GRE", SeriesTime: "100000"},
		{StudyInstanceUID: "study-B", SequenceClass: "T1_GRE", SeriesTime: "100000"},
	}
	InferDynamicGroups(rows, cfg)
	if rows[0].DynamicGroup != "" || rows[1].DynamicGroup != "" {
		t.Errorf("expected rows in different studies to never share a fingerprint group, got %q and %q", rows[0].DynamicGroup, rows[1].DynamicGroup)
	}
}

func TestPropagateEnhancementMarksLaterT1Rows(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{StudyInstanceUID: "1.2.3", SequenceClass: "T1_GRE", SeriesTime: "090000", IsContrastEnhanced: true},
		{StudyInstanceUID: "1.2.3", SequenceClass: "T1_GRE", SeriesTime: "093000"},
		{StudyInstanceUID: "1.2.3", SequenceClass: "T2_TSE", SeriesTime: "094000"},
	}
	PropagateEnhancement(rows, cfg)

	if rows[1].DynamicPhase != cfg.Propagate.PropagatedPhase {
		t.Errorf("rows[1].DynamicPhase = %q, want %q", rows[1].DynamicPhase, cfg.Propagate.PropagatedPhase)
	}
	if !rows[1].IsContrastEnhanced {
		t.Errorf("expected rows[1] to be marked contrast enhanced by propagation")
	}
	if rows[2].DynamicPhase != "" {
		t.Errorf("expected non-T1 row untouched by propagation, got DynamicPhase=%q", rows[2].DynamicPhase)
	}
}

func TestRecomputeContrastEnhancedRequiresDynamicGroupAndAgent(t *testing.T) {
	cfg := DefaultConfig()
	rows := []*Row{
		{DynamicGroup: "group_1", DynamicPhase: "POST_1", ContrastBolusAgent: "Gadavist"},
		{DynamicGroup: "", DynamicPhase: "POST_1", ContrastBolusAgent: "Gadavist"},
		{DynamicGroup: "group_1", DynamicPhase: "POST_1", ContrastBolusAgent: ""},
	}
	RecomputeContrastEnhanced(rows, cfg)

	if !rows[0].IsContrastEnhanced {
		t.Errorf("expected row 0 (grouped, post phase, agent present) to be contrast enhanced")
	}
	if rows[1].IsContrastEnhanced {
		t.Errorf("expected row 1 (no dynamic group) to stay untouched/false")
	}
	if rows[2].IsContrastEnhanced {
		t.Errorf("expected row 2 (no contrast agent) to not be contrast enhanced")
	}
}
