package mrclassifier

import "strconv"

// tagFloat parses a DICOM tag value (as a string, possibly DICOM
// multi-valued with a backslash separator taking the first element) into a
// float64, mirroring spec.md §4.5's "taking first element if arrayed"
// windowing rule applied generically to any numeric tag.
func tagFloat(tags map[string]string, keyword string) (float64, bool) {
	raw, ok := tags[keyword]
	if !ok || raw == "" {
		return 0, false
	}
	first := raw
	for i, r := range raw {
		if r == '\\' {
			first = raw[:i]
			break
		}
	}
	v, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func tagString(tags map[string]string, keyword string) string {
	return tags[keyword]
}

// RowFromTags builds a Row's raw fields from a flattened DICOM tag map, the
// shape the Metadata Extractor (spec.md §4.4) emits into a Record's Tags
// and SampleTags. Stage 4.5.1-4.5.5 then populate the derived columns in
// place.
func RowFromTags(studyUID, seriesUID string, tags map[string]string) *Row {
	r := &Row{
		StudyInstanceUID:        studyUID,
		SeriesInstanceUID:       seriesUID,
		SeriesTime:              tagString(tags, "SeriesTime"),
		ProtocolName:            tagString(tags, "ProtocolName"),
		SeriesDescription:       tagString(tags, "SeriesDescription"),
		ImageType:               tagString(tags, "ImageType"),
		ImageOrientationPatient: tagString(tags, "ImageOrientationPatient"),
		ImagePositionPatient:    tagString(tags, "ImagePositionPatient"),
		MRAcquisitionType:       tagString(tags, "MRAcquisitionType"),
		ScanningSequence:        tagString(tags, "ScanningSequence"),
		SequenceVariant:         tagString(tags, "SequenceVariant"),
		ScanOptions:             tagString(tags, "ScanOptions"),
		Manufacturer:            tagString(tags, "Manufacturer"),
		ContrastBolusAgent:      tagString(tags, "ContrastBolusAgent"),
	}

	if v, ok := tagFloat(tags, "InversionTime"); ok {
		r.InversionTime, r.HasInversionTime = v, true
	}
	if v, ok := tagFloat(tags, "DiffusionBValue"); ok {
		r.BValue, r.HasBValue = v, true
	}
	if v, ok := tagFloat(tags, "RepetitionTime"); ok {
		r.TR = v
	}
	if v, ok := tagFloat(tags, "EchoTime"); ok {
		r.TE = v
	}
	if v, ok := tagFloat(tags, "FlipAngle"); ok {
		r.FlipAngle = v
	}
	if v, ok := tagFloat(tags, "EchoTrainLength"); ok {
		r.ETL, r.HasETL = v, true
	}
	if v, ok := tagFloat(tags, "MagneticFieldStrength"); ok {
		r.MagneticFieldStrength, r.HasFieldStrength = v, true
	}
	if v, ok := tagFloat(tags, "SliceThickness"); ok {
		r.SliceThickness = v
	}

	return r
}
