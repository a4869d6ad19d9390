package mrclassifier

// Row is one instance/series-representative record flowing through the
// classifier's five stages (spec.md §4.5: "rows = instances or series").
// Fields under "Raw source tags" hold the source DICOM tags; the rest are populated in order
// by each stage, later stages reading columns earlier ones produced.
type Row struct {
	// Raw source tags.
	StudyInstanceUID        string
	SeriesInstanceUID       string
	ProtocolName            string
	SeriesDescription       string
	ImageType               string
	ImageOrientationPatient string
	ImagePositionPatient    string
	MRAcquisitionType       string
	ScanningSequence        string
	SequenceVariant         string
	ScanOptions             string
	InversionTime           float64
	HasInversionTime        bool
	BValue                  float64
	HasBValue               bool
	TR                      float64
	TE                      float64
	FlipAngle               float64
	ETL                     float64
	HasETL                  bool
	MagneticFieldStrength   float64
	HasFieldStrength        bool
	Manufacturer            string
	ContrastBolusAgent      string
	SeriesTime              string
	SliceThickness          float64

	// Stage 4.5.1 atomic features.
	ProtocolNameLower     string
	ImageTypeLower        string
	StandardOrientation   string
	StandardDimension     string
	IsFatSuppressed       bool
	IsContrastEnhanced    bool
	HasMotionCorrection   bool
	RefinedImageType      string
	StandardFieldStrength string
	StandardManufacturer  string

	// Stage 4.5.2/4.5.3 classification.
	SequenceFamily string
	SequenceClass  string

	// Stage 4.5.4 dynamic grouping.
	DynamicGroup string
	DynamicPhase string

	// Row identity for propagation/grouping passes.
	RowIndex int
}
