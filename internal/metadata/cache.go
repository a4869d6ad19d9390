package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/otcheredev/dicom-ingest/internal/convert"
)

// Record is one row of a series' per-instance (DR/DX/MG) or representative
// metadata, per spec.md §4.4: the modality-specific tag subset plus the
// fixed identifying columns every row carries.
type Record struct {
	Tags map[string]string `json:"tags"`

	SeriesFolder        string `json:"SeriesFolder"`
	FileName            string `json:"FileName,omitempty"`
	SampleFileName      string `json:"SampleFileName,omitempty"`
	FileIndex           int    `json:"FileIndex,omitempty"`
	TotalFilesInSeries  int    `json:"TotalFilesInSeries,omitempty"`
	FilesReadForMetadata int   `json:"FilesReadForMetadata,omitempty"`

	PatientID         string `json:"PatientID"`
	AccessionNumber   string `json:"AccessionNumber"`
	StudyDate         string `json:"StudyDate"`
	Modality          string `json:"Modality"`
	SeriesNumber      string `json:"SeriesNumber"`
	SeriesDescription string `json:"SeriesDescription"`
	InstanceNumber    int    `json:"InstanceNumber,omitempty"`
	Rows              int    `json:"Rows"`
	Columns           int    `json:"Columns"`
}

// SeriesCache is the JSON document a converter writes per series
// (`dicom_metadata_cache.json`, spec.md §4.4/§6).
type SeriesCache struct {
	Modality          string                             `json:"modality"`
	StudyInstanceUID  string                             `json:"study_instance_uid,omitempty"`
	SeriesInstanceUID string                             `json:"series_instance_uid,omitempty"`
	Records           []Record                           `json:"records"`
	SampleTags        map[string]string                  `json:"sample_tags"`
	ConversionMap     map[string]convert.ConversionRecord `json:"conversion_map"`

	// QC carries the Quality-Control Scorer's aggregate report (spec.md
	// §4.4 qc) so the workbook pass can attach it without rescoring.
	QCLowQuality      bool    `json:"qc_low_quality"`
	QCLowQualityRatio float64 `json:"qc_low_quality_ratio"`
	QCMode            string  `json:"qc_mode"`
}

// WriteCache persists a SeriesCache to path, to be read back during the
// aggregate workbook pass.
func WriteCache(path string, cache *SeriesCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshal cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("metadata: write cache %s: %w", path, err)
	}
	return nil
}

// ReadCache loads a previously written SeriesCache. Callers fall back to
// opening a sample instance directly when the cache file is absent
// (spec.md §4.4 "prefer cache, otherwise open one sample instance").
func ReadCache(path string) (*SeriesCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache SeriesCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("metadata: parse cache %s: %w", path, err)
	}
	return &cache, nil
}
