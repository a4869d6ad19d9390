package dimsenet

// Data element tags used to build and parse C-FIND/C-MOVE query identifiers
// (DICOM PS3.6). Only the subset spec.md §4.1 needs.
var (
	TagQueryRetrieveLevel = Tag{0x0008, 0x0052}
	TagAccessionNumber    = Tag{0x0008, 0x0050}
	TagStudyInstanceUID   = Tag{0x0020, 0x000D}
	TagSeriesInstanceUID  = Tag{0x0020, 0x000E}
	TagSeriesNumber       = Tag{0x0020, 0x0011}
	TagSeriesDescription  = Tag{0x0008, 0x103E}
	TagModality           = Tag{0x0008, 0x0060}
	TagPatientID          = Tag{0x0010, 0x0020}
	TagPatientName        = Tag{0x0010, 0x0010}
	TagStudyDate          = Tag{0x0008, 0x0020}
)
