package dimsenet

// PDU type bytes (DICOM PS3.8 Table 9-1 through 9-7).
const (
	pduTypeAssociateRQ = 0x01
	pduTypeAssociateAC = 0x02
	pduTypeAssociateRJ = 0x03
	pduTypePDataTF     = 0x04
	pduTypeReleaseRQ   = 0x05
	pduTypeReleaseRP   = 0x06
	pduTypeAbort       = 0x07
)

const (
	itemTypeApplicationContext     = 0x10
	itemTypePresentationContextRQ  = 0x20
	itemTypePresentationContextAC  = 0x21
	itemTypeAbstractSyntax         = 0x30
	itemTypeTransferSyntax         = 0x40
	itemTypeUserInformation        = 0x50
	itemTypeMaxLength              = 0x51
	itemTypeImplementationClassUID = 0x52
	itemTypeImplementationVersion  = 0x55
)

const implementationClassUID = "1.2.840.10008.1.2.1"
const implementationVersionName = "GODICOMINGEST1"

// defaultMaxPDULength is the maximum length of a single P-DATA-TF PDU this
// implementation will propose and accept.
const defaultMaxPDULength = 16384
