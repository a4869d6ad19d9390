package pacs

import (
	"fmt"

	"github.com/otcheredev/dicom-ingest/internal/dimsenet"
)

// SeriesInfo is one row of the Study/Series C-FIND hierarchy: the patient
// and study attributes joined onto a single series, ready for download and
// later metadata extraction.
type SeriesInfo struct {
	PatientID       string
	PatientName     string
	StudyDate       string
	AccessionNumber string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SeriesNumber      string
	SeriesDescription string
	Modality          string
}

// QuerySeriesMetadata performs the two-level Study-Root C-FIND query
// described in spec.md §4.1 steps 2-3: first resolve the study(ies) for
// accessionNumber, then enumerate each study's series.
func QuerySeriesMetadata(assoc *dimsenet.Association, accessionNumber string) ([]SeriesInfo, error) {
	studyQuery := dimsenet.NewDataset()
	studyQuery.Set(dimsenet.TagQueryRetrieveLevel, "STUDY")
	studyQuery.Set(dimsenet.TagAccessionNumber, accessionNumber)
	studyQuery.Set(dimsenet.TagStudyInstanceUID, "")
	studyQuery.Set(dimsenet.TagPatientID, "")
	studyQuery.Set(dimsenet.TagPatientName, "")
	studyQuery.Set(dimsenet.TagStudyDate, "")

	studyResponses, err := assoc.SendCFind(studyQuery)
	if err != nil {
		return nil, fmt.Errorf("pacs: study C-FIND for accession %s: %w", accessionNumber, err)
	}

	type studyInfo struct {
		patientID, patientName, studyDate string
	}
	studies := make(map[string]studyInfo)
	for _, r := range studyResponses {
		if r.Dataset == nil {
			continue
		}
		uid := r.Dataset.Get(dimsenet.TagStudyInstanceUID)
		if uid == "" {
			continue
		}
		studies[uid] = studyInfo{
			patientID:   r.Dataset.Get(dimsenet.TagPatientID),
			patientName: r.Dataset.Get(dimsenet.TagPatientName),
			studyDate:   r.Dataset.Get(dimsenet.TagStudyDate),
		}
	}
	if len(studies) == 0 {
		return nil, fmt.Errorf("pacs: no study found for accession %s", accessionNumber)
	}

	var series []SeriesInfo
	for studyUID, info := range studies {
		seriesQuery := dimsenet.NewDataset()
		seriesQuery.Set(dimsenet.TagQueryRetrieveLevel, "SERIES")
		seriesQuery.Set(dimsenet.TagStudyInstanceUID, studyUID)
		seriesQuery.Set(dimsenet.TagSeriesInstanceUID, "")
		seriesQuery.Set(dimsenet.TagSeriesNumber, "")
		seriesQuery.Set(dimsenet.TagSeriesDescription, "")
		seriesQuery.Set(dimsenet.TagModality, "")

		seriesResponses, err := assoc.SendCFind(seriesQuery)
		if err != nil {
			return nil, fmt.Errorf("pacs: series C-FIND for study %s: %w", studyUID, err)
		}

		for _, r := range seriesResponses {
			if r.Dataset == nil {
				continue
			}
			seriesUID := r.Dataset.Get(dimsenet.TagSeriesInstanceUID)
			if seriesUID == "" {
				continue
			}
			seriesNumber := r.Dataset.Get(dimsenet.TagSeriesNumber)
			if seriesNumber == "" {
				seriesNumber = "0"
			}
			desc := r.Dataset.Get(dimsenet.TagSeriesDescription)
			if desc == "" {
				desc = "Unknown"
			}
			series = append(series, SeriesInfo{
				PatientID:         info.patientID,
				PatientName:       info.patientName,
				StudyDate:         info.studyDate,
				AccessionNumber:   accessionNumber,
				StudyInstanceUID:  studyUID,
				SeriesInstanceUID: seriesUID,
				SeriesNumber:      seriesNumber,
				SeriesDescription: desc,
				Modality:          r.Dataset.Get(dimsenet.TagModality),
			})
		}
	}

	return series, nil
}
