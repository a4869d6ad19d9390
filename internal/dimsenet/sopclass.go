package dimsenet

// DICOM standard UIDs used by the retrieval engine. Application context and
// the query/retrieve + verification + storage SOP classes this system needs
// as an SCU (FIND/MOVE) and SCP (STORE).
const (
	ApplicationContextUID = "1.2.840.10008.3.1.1.1"

	VerificationSOPClass = "1.2.840.10008.1.1"

	StudyRootFindSOPClass = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootMoveSOPClass = "1.2.840.10008.5.1.4.1.2.2.2"

	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
)

// storageSOPClasses lists the Storage SOP classes the embedded C-STORE SCP
// offers presentation contexts for. This is not exhaustive of the DICOM
// standard; it covers the modalities the ingestion pipeline understands
// (spec.md §3 Instance attributes, §4.3 mode selection).
var storageSOPClasses = []string{
	"1.2.840.10008.5.1.4.1.1.1",     // Computed Radiography
	"1.2.840.10008.5.1.4.1.1.1.1",   // Digital X-Ray (Presentation)
	"1.2.840.10008.5.1.4.1.1.1.1.1", // Digital X-Ray (Processing)
	"1.2.840.10008.5.1.4.1.1.1.2",   // Digital Mammography (Presentation)
	"1.2.840.10008.5.1.4.1.1.1.2.1", // Digital Mammography (Processing)
	"1.2.840.10008.5.1.4.1.1.2",     // CT Image Storage
	"1.2.840.10008.5.1.4.1.1.2.1",   // Enhanced CT
	"1.2.840.10008.5.1.4.1.1.4",     // MR Image Storage
	"1.2.840.10008.5.1.4.1.1.4.1",   // Enhanced MR
	"1.2.840.10008.5.1.4.1.1.4.2",   // MR Spectroscopy
	"1.2.840.10008.5.1.4.1.1.6.1",   // Ultrasound
	"1.2.840.10008.5.1.4.1.1.7",     // Secondary Capture
	"1.2.840.10008.5.1.4.1.1.20",    // Nuclear Medicine
	"1.2.840.10008.5.1.4.1.1.128",   // PET
}

// IsStorageSOPClass reports whether uid is one of the offered storage SOP
// classes.
func IsStorageSOPClass(uid string) bool {
	for _, c := range storageSOPClasses {
		if c == uid {
			return true
		}
	}
	return false
}

// StorageSOPClasses returns the list of storage SOP classes offered by the
// embedded SCP.
func StorageSOPClasses() []string {
	out := make([]string, len(storageSOPClasses))
	copy(out, storageSOPClasses)
	return out
}
