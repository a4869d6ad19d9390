package dimsenet

import "fmt"

// FindResponse is a single C-FIND response (pending identifier or final
// status) returned by SendCFind.
type FindResponse struct {
	Status  uint16
	Dataset *Dataset
}

// SendCFind issues a C-FIND request with identifier on the Study-Root FIND
// presentation context and collects all Pending responses until the final
// status arrives, per spec.md §4.1 steps 2-3.
func (a *Association) SendCFind(identifier *Dataset) ([]*FindResponse, error) {
	contextID, err := a.contextIDFor(StudyRootFindSOPClass)
	if err != nil {
		return nil, err
	}

	cmd := &Message{
		CommandField:        CFindRQ,
		MessageID:           1,
		CommandDataSetType:  0x0000,
		Priority:            0x0000,
		AffectedSOPClassUID: StudyRootFindSOPClass,
	}
	commandData, err := encodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode C-FIND command: %w", err)
	}
	datasetData := identifier.EncodeImplicitVRLittleEndian()

	if err := a.sendDIMSEMessage(contextID, commandData, datasetData); err != nil {
		return nil, fmt.Errorf("send C-FIND request: %w", err)
	}

	var responses []*FindResponse
	for {
		msg, data, err := a.receiveDIMSEMessage()
		if err != nil {
			return responses, err
		}
		if msg.CommandField != CFindRSP {
			return responses, fmt.Errorf("unexpected command 0x%04x, expected C-FIND-RSP", msg.CommandField)
		}

		var ds *Dataset
		if len(data) > 0 {
			ds, _ = ParseImplicitVRLittleEndian(data)
		}
		responses = append(responses, &FindResponse{Status: msg.Status, Dataset: ds})

		if msg.Status != StatusPending && msg.Status != StatusPendingAlt {
			break
		}
	}
	return responses, nil
}
