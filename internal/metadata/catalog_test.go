package metadata

import "testing"

func TestTagsForExactModalityMatch(t *testing.T) {
	cat := &Catalog{byModality: map[string][]string{
		"MR": {"EchoTime", "RepetitionTime"},
		"CT": {"KVP"},
	}}
	got := cat.TagsFor("CT")
	if len(got) != 1 || got[0] != "KVP" {
		t.Errorf("TagsFor(CT) = %v, want [KVP]", got)
	}
}

func TestTagsForNormalizesCRAndDRToDX(t *testing.T) {
	cat := &Catalog{byModality: map[string][]string{
		"DX": {"KVP", "ExposureTime"},
	}}
	for _, modality := range []string{"CR", "DX", "DR", "dr"} {
		got := cat.TagsFor(modality)
		if len(got) != 2 || got[0] != "KVP" {
			t.Errorf("TagsFor(%q) = %v, want the DX tag set", modality, got)
		}
	}
}

func TestTagsForFoldsAnyMRVariantToMR(t *testing.T) {
	cat := &Catalog{byModality: map[string][]string{
		"MR": {"EchoTime"},
	}}
	for _, modality := range []string{"MR", "mr", " MR ", "MRA"} {
		got := cat.TagsFor(modality)
		if len(got) != 1 || got[0] != "EchoTime" {
			t.Errorf("TagsFor(%q) = %v, want the MR tag set", modality, got)
		}
	}
}

func TestTagsForFallsBackToMRThenBuiltinMinimalSet(t *testing.T) {
	withMR := &Catalog{byModality: map[string][]string{
		"MR": {"EchoTime"},
	}}
	got := withMR.TagsFor("US")
	if len(got) != 1 || got[0] != "EchoTime" {
		t.Errorf("TagsFor(US) with MR present = %v, want MR fallback [EchoTime]", got)
	}

	empty := EmptyCatalog()
	got = empty.TagsFor("US")
	if len(got) != len(builtinMinimalSet) {
		t.Errorf("TagsFor(US) on empty catalog = %v, want builtin minimal set", got)
	}
}
