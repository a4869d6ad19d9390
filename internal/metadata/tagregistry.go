package metadata

import (
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// tagRegistry maps the keyword strings a Tag Catalog JSON file names
// (spec.md §6) to the suyashkumar/dicom generated tag constants, so the
// catalog can stay pure data while extraction stays statically typed.
var tagRegistry = map[string]tag.Tag{
	"PatientID":                 tag.PatientID,
	"PatientName":               tag.PatientName,
	"StudyDate":                 tag.StudyDate,
	"StudyInstanceUID":          tag.StudyInstanceUID,
	"AccessionNumber":           tag.AccessionNumber,
	"Modality":                  tag.Modality,
	"SeriesInstanceUID":         tag.SeriesInstanceUID,
	"SeriesNumber":              tag.SeriesNumber,
	"SeriesDescription":         tag.SeriesDescription,
	"SeriesTime":                tag.SeriesTime,
	"SOPInstanceUID":            tag.SOPInstanceUID,
	"InstanceNumber":            tag.InstanceNumber,
	"Rows":                      tag.Rows,
	"Columns":                   tag.Columns,
	"ImageOrientationPatient":   tag.ImageOrientationPatient,
	"ImagePositionPatient":      tag.ImagePositionPatient,
	"PixelSpacing":              tag.PixelSpacing,
	"SliceThickness":            tag.SliceThickness,
	"RescaleSlope":              tag.RescaleSlope,
	"RescaleIntercept":          tag.RescaleIntercept,
	"PhotometricInterpretation": tag.PhotometricInterpretation,
	"WindowCenter":              tag.WindowCenter,
	"WindowWidth":               tag.WindowWidth,
	"PatientOrientation":        tag.PatientOrientation,
	"ProtocolName":              tag.ProtocolName,
	"ImageType":                 tag.ImageType,
	"MRAcquisitionType":         tag.MRAcquisitionType,
	"ScanningSequence":          tag.ScanningSequence,
	"SequenceVariant":           tag.SequenceVariant,
	"ScanOptions":               tag.ScanOptions,
	"InversionTime":             tag.InversionTime,
	"RepetitionTime":            tag.RepetitionTime,
	"EchoTime":                  tag.EchoTime,
	"FlipAngle":                 tag.FlipAngle,
	"EchoTrainLength":           tag.EchoTrainLength,
	"DiffusionBValue":           tag.DiffusionBValue,
	"MagneticFieldStrength":     tag.MagneticFieldStrength,
	"Manufacturer":              tag.Manufacturer,
	"ManufacturerModelName":     tag.ManufacturerModelName,
	"ContrastBolusAgent":        tag.ContrastBolusAgent,
	"AcquisitionTime":           tag.AcquisitionTime,
}

// tagValueString reads one element and flattens it to its DICOM-native
// backslash-joined string form (spec.md §9: "flatten to strings only when
// emitting rows"), so downstream code (mrclassifier.RowFromTags,
// orientation parsing) can re-split on '\\' the way original DICOM
// multi-valued attributes are encoded.
func tagValueString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	if vals, ok := elem.Value.GetValue().([]string); ok {
		return strings.Join(vals, "\\")
	}
	return strings.Trim(elem.Value.String(), " []")
}

// ExtractTags reads every keyword in keywords known to the registry from
// ds into a flat string map. Unknown keywords and read failures yield an
// empty string rather than aborting extraction (spec.md §7: "the offending
// tag becomes an empty string in the extracted row; never fatal").
func ExtractTags(ds dicom.Dataset, keywords []string) map[string]string {
	out := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		t, ok := tagRegistry[kw]
		if !ok {
			out[kw] = ""
			continue
		}
		out[kw] = tagValueString(ds, t)
	}
	return out
}
