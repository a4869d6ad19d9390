package dimsenet

import "fmt"

// SendCEcho issues a DICOM C-ECHO (verification) request and returns the
// response status, used to test PACS connectivity before a study download.
func (a *Association) SendCEcho() (uint16, error) {
	contextID, err := a.contextIDFor(VerificationSOPClass)
	if err != nil {
		return 0, err
	}

	cmd := &Message{
		CommandField:        CEchoRQ,
		MessageID:           1,
		CommandDataSetType:  0x0101, // no dataset
		AffectedSOPClassUID: VerificationSOPClass,
	}
	commandData, err := encodeCommand(cmd)
	if err != nil {
		return 0, fmt.Errorf("encode C-ECHO command: %w", err)
	}
	if err := a.sendDIMSEMessage(contextID, commandData, nil); err != nil {
		return 0, fmt.Errorf("send C-ECHO request: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return 0, err
	}
	if msg.CommandField != CEchoRSP {
		return 0, fmt.Errorf("unexpected command 0x%04x, expected C-ECHO-RSP", msg.CommandField)
	}
	return msg.Status, nil
}
