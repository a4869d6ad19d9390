package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/rs/zerolog/log"
)

// identifyingColumns are placed first on the DICOM_Metadata sheet, per
// spec.md §4.4's explicit column ordering.
var identifyingColumns = []string{
	"SeriesFolder", "FileName", "SampleFileName", "FileIndex",
	"TotalFilesInSeries", "FilesReadForMetadata",
	"PatientID", "AccessionNumber", "StudyDate", "Modality",
	"SeriesNumber", "SeriesDescription", "InstanceNumber",
}

// SeriesFolderInfo pairs a loaded cache (or nil, when no cache existed)
// with the folder it was read from, for BuildWorkbook's walk.
type SeriesFolderInfo struct {
	Folder string
	Cache  *SeriesCache
	// QCLowQuality/QCRatio are attached per spec.md §4.4 ("For each row a
	// QC score ... is attached"); populated by the caller from the
	// qc package's per-series Report.
	QCLowQuality bool
	QCRatio      float64
}

// BuildWorkbook walks organized_dir's series folders (already collected by
// the caller, preferring caches per spec.md §4.4) and writes the study
// workbook to outputPath with sheets DICOM_Metadata and Series_Summary.
func BuildWorkbook(series []SeriesFolderInfo, outputPath string) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("closing workbook failed")
		}
	}()

	metaSheet := "DICOM_Metadata"
	summarySheet := "Series_Summary"
	f.NewSheet(metaSheet)
	f.NewSheet(summarySheet)
	f.DeleteSheet("Sheet1")

	extraCols := collectExtraTagColumns(series)
	header := append(append([]string{}, identifyingColumns...), extraCols...)
	header = append(header, "QCLowQuality", "QCLowQualityRatio")
	writeRow(f, metaSheet, 1, toAnySlice(header))

	row := 2
	for _, s := range series {
		if s.Cache == nil {
			continue
		}
		for _, rec := range s.Cache.Records {
			values := make([]interface{}, 0, len(header))
			values = append(values,
				rec.SeriesFolder, rec.FileName, rec.SampleFileName, rec.FileIndex,
				rec.TotalFilesInSeries, rec.FilesReadForMetadata,
				rec.PatientID, rec.AccessionNumber, rec.StudyDate, rec.Modality,
				rec.SeriesNumber, rec.SeriesDescription, rec.InstanceNumber,
			)
			for _, col := range extraCols {
				values = append(values, rec.Tags[col])
			}
			values = append(values, s.QCLowQuality, s.QCRatio)
			writeRow(f, metaSheet, row, values)
			row++
		}
	}

	writeRow(f, summarySheet, 1, toAnySlice([]string{
		"SeriesFolder", "PatientID", "AccessionNumber", "StudyDate",
		"Modality", "SeriesNumber", "SeriesDescription", "FileCount",
	}))
	summaryRow := 2
	for _, s := range series {
		if s.Cache == nil || len(s.Cache.Records) == 0 {
			continue
		}
		first := firstNonEmptyRecord(s.Cache.Records)
		writeRow(f, summarySheet, summaryRow, []interface{}{
			s.Folder, first.PatientID, first.AccessionNumber, first.StudyDate,
			first.Modality, first.SeriesNumber, first.SeriesDescription,
			len(s.Cache.Records),
		})
		summaryRow++
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("metadata: create workbook dir: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("metadata: save workbook %s: %w", outputPath, err)
	}
	return nil
}

// AppendMRCleanedSheet adds the MR_Cleaned sheet (the classified MR rows)
// to an already-written workbook, per spec.md §6's optional third sheet.
func AppendMRCleanedSheet(outputPath string, header []string, rows [][]interface{}) error {
	f, err := excelize.OpenFile(outputPath)
	if err != nil {
		return fmt.Errorf("metadata: open workbook %s: %w", outputPath, err)
	}
	defer f.Close()

	sheet := "MR_Cleaned"
	f.NewSheet(sheet)
	writeRow(f, sheet, 1, toAnySlice(header))
	for i, r := range rows {
		writeRow(f, sheet, i+2, r)
	}
	return f.Save()
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			log.Warn().Err(err).Str("sheet", sheet).Str("cell", cell).Msg("failed setting workbook cell")
		}
	}
}

func toAnySlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func collectExtraTagColumns(series []SeriesFolderInfo) []string {
	seen := map[string]bool{}
	var cols []string
	for _, s := range series {
		if s.Cache == nil {
			continue
		}
		for _, rec := range s.Cache.Records {
			for k := range rec.Tags {
				if !seen[k] {
					seen[k] = true
					cols = append(cols, k)
				}
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func firstNonEmptyRecord(records []Record) Record {
	for _, r := range records {
		if r.SeriesFolder != "" {
			return r
		}
	}
	return records[0]
}
