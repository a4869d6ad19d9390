package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"

	"github.com/otcheredev/dicom-ingest/internal/convert"
)

// ExtractSeriesCache implements the per-series tag-collection half of the
// Metadata Extractor (spec.md §4.4): one Record per instance for DR/DX/MG,
// else a single representative row with TotalFilesInSeries counting the
// pre-conversion file count. Must run before the converter deletes the
// series' original .dcm files.
func ExtractSeriesCache(seriesDir string, catalog *Catalog) (*SeriesCache, error) {
	files, err := listDCMFiles(seriesDir)
	if err != nil {
		return nil, fmt.Errorf("metadata: list dcm files in %s: %w", seriesDir, err)
	}
	if len(files) == 0 {
		return &SeriesCache{ConversionMap: map[string]convert.ConversionRecord{}}, nil
	}

	firstDS, err := dicom.ParseFile(files[0], nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: parse %s: %w", files[0], err)
	}
	modality := normalizeModality(tagValueString(firstDS, tagRegistry["Modality"]))
	keywords := catalog.TagsFor(modality)

	cache := &SeriesCache{
		Modality:      modality,
		SampleTags:    ExtractTags(firstDS, keywords),
		ConversionMap: map[string]convert.ConversionRecord{},
	}

	seriesFolder := filepath.Base(seriesDir)

	if individualModeModalities[modality] {
		sort.Strings(files)
		for i, f := range files {
			ds := firstDS
			if i > 0 {
				var perr error
				ds, perr = dicom.ParseFile(f, nil)
				if perr != nil {
					continue
				}
			}
			cache.Records = append(cache.Records, recordFromTags(ds, keywords, seriesFolder, filepath.Base(f), i+1, len(files)))
		}
		return cache, nil
	}

	rec := recordFromTags(firstDS, keywords, seriesFolder, filepath.Base(files[0]), 0, len(files))
	rec.TotalFilesInSeries = len(files)
	rec.FilesReadForMetadata = 1
	cache.Records = []Record{rec}
	return cache, nil
}

// individualModeModalities mirrors spec.md §4.3's DR/DX/MG mode switch:
// these modalities get one metadata row per instance rather than one
// representative row for the whole series.
var individualModeModalities = map[string]bool{"DR": true, "DX": true, "MG": true}

func recordFromTags(ds dicom.Dataset, keywords []string, seriesFolder, fileName string, fileIndex, totalFiles int) Record {
	tags := ExtractTags(ds, keywords)
	rec := Record{
		Tags:              tags,
		SeriesFolder:      seriesFolder,
		PatientID:         tags["PatientID"],
		AccessionNumber:   tags["AccessionNumber"],
		StudyDate:         tags["StudyDate"],
		Modality:          tags["Modality"],
		SeriesNumber:      tags["SeriesNumber"],
		SeriesDescription: tags["SeriesDescription"],
		Rows:              atoiSafe(tags["Rows"]),
		Columns:           atoiSafe(tags["Columns"]),
	}
	if fileIndex > 0 {
		rec.FileName = fileName
		rec.FileIndex = fileIndex
		rec.InstanceNumber = atoiSafe(tags["InstanceNumber"])
	} else {
		rec.SampleFileName = fileName
	}
	return rec
}

func atoiSafe(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func listDCMFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
