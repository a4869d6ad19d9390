// Package metadata implements the Tag Catalog, per-series metadata cache,
// and workbook writer described in spec.md §4.4 and §6. Grounded on
// original_source/src/core/metadata.py's modality tag-catalog lookup and
// on the teacher's JSON-config loading style
// (internal/config in OtchereDev-ris-dicom-connector).
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Catalog maps a modality to its ordered list of DICOM keyword tags, as
// loaded from a directory of `{MODALITY}.json` files (spec.md §6).
type Catalog struct {
	byModality map[string][]string
}

// builtinMinimalSet is the last-resort fallback when neither the
// requested modality nor "MR" has a catalog file on disk.
var builtinMinimalSet = []string{
	"PatientID", "PatientName", "StudyDate", "AccessionNumber",
	"Modality", "SeriesNumber", "SeriesDescription", "InstanceNumber",
	"Rows", "Columns",
}

// LoadCatalog reads every `{MODALITY}.json` file in dir into a Catalog.
// Each file must contain a JSON array of DICOM keyword strings.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("metadata: read catalog dir %s: %w", dir, err)
	}

	cat := &Catalog{byModality: map[string][]string{}}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		modality := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("metadata: read %s: %w", e.Name(), err)
		}
		var tags []string
		if err := json.Unmarshal(data, &tags); err != nil {
			return nil, fmt.Errorf("metadata: parse %s: %w", e.Name(), err)
		}
		cat.byModality[modality] = tags
	}
	return cat, nil
}

// EmptyCatalog returns a Catalog with no modality files loaded, so TagsFor
// always falls through to the built-in minimal set. Used when the
// configured catalog directory cannot be read.
func EmptyCatalog() *Catalog {
	return &Catalog{byModality: map[string][]string{}}
}

// TagsFor resolves the tag list for a modality string, applying the
// case-insensitive CR/DX/DR->DX and *MR*->MR mapping rules spec.md §6
// specifies, with an MR-set fallback and finally a built-in minimal set.
func (c *Catalog) TagsFor(modality string) []string {
	key := normalizeModality(modality)
	if tags, ok := c.byModality[key]; ok {
		return tags
	}
	if tags, ok := c.byModality["MR"]; ok {
		return tags
	}
	return builtinMinimalSet
}

func normalizeModality(modality string) string {
	m := strings.ToUpper(strings.TrimSpace(modality))
	switch m {
	case "CR", "DX", "DR":
		return "DX"
	}
	if strings.Contains(m, "MR") {
		return "MR"
	}
	return m
}
