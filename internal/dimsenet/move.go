package dimsenet

import "fmt"

// MoveResponse is a single C-MOVE response, reporting sub-operation
// progress counters until the terminal status arrives.
type MoveResponse struct {
	Status                         uint16
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
}

// SendCMove issues a C-MOVE request for identifier with destination AE
// moveDestination and blocks until the terminal status arrives, per
// spec.md §4.1 step 5. The actual instances arrive on a separate
// association where this process is acting as the C-STORE SCP (see scp.go);
// this call only drives the FIND/MOVE association's command exchange.
func (a *Association) SendCMove(identifier *Dataset, moveDestination string) ([]*MoveResponse, error) {
	contextID, err := a.contextIDFor(StudyRootMoveSOPClass)
	if err != nil {
		return nil, err
	}

	cmd := &Message{
		CommandField:        CMoveRQ,
		MessageID:           1,
		CommandDataSetType:  0x0000,
		Priority:            0x0000,
		AffectedSOPClassUID: StudyRootMoveSOPClass,
		MoveDestination:     moveDestination,
	}
	commandData, err := encodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode C-MOVE command: %w", err)
	}
	datasetData := identifier.EncodeImplicitVRLittleEndian()

	if err := a.sendDIMSEMessage(contextID, commandData, datasetData); err != nil {
		return nil, fmt.Errorf("send C-MOVE request: %w", err)
	}

	var responses []*MoveResponse
	for {
		msg, _, err := a.receiveDIMSEMessage()
		if err != nil {
			return responses, err
		}
		if msg.CommandField != CMoveRSP {
			return responses, fmt.Errorf("unexpected command 0x%04x, expected C-MOVE-RSP", msg.CommandField)
		}

		responses = append(responses, &MoveResponse{
			Status:                         msg.Status,
			NumberOfRemainingSuboperations: msg.NumberOfRemainingSuboperations,
			NumberOfCompletedSuboperations: msg.NumberOfCompletedSuboperations,
			NumberOfFailedSuboperations:    msg.NumberOfFailedSuboperations,
			NumberOfWarningSuboperations:   msg.NumberOfWarningSuboperations,
		})

		if msg.Status != StatusPending && msg.Status != StatusPendingAlt {
			break
		}
	}
	return responses, nil
}
