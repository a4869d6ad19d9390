package dimsenet

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// StoreHandler receives one completed C-STORE: the negotiated transfer
// syntax, the SOP class/instance UIDs from the command set, and the raw
// dataset bytes. It returns the DICOM status to report back to the sender
// (StatusSuccess on success, StatusCannotProcess on failure).
type StoreHandler func(sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) uint16

// Server is the embedded C-STORE SCP described in spec.md §4.1 step 4: it
// accepts associations from the PACS (the SCU side of the C-MOVE transfer)
// and writes each received instance via StoreHandler.
type Server struct {
	aeTitle string
	handler StoreHandler

	mu       sync.Mutex
	listener net.Listener
}

// NewServer constructs a Server bound to aeTitle that dispatches received
// instances to handler.
func NewServer(aeTitle string, handler StoreHandler) *Server {
	return &Server{aeTitle: aeTitle, handler: handler}
}

// ListenAndServe binds address and serves connections until ctx is
// cancelled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("dimsenet: listen %s: %w", address, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	contexts, err := s.acceptAssociation(conn)
	if err != nil {
		log.Warn().Err(err).Msg("dimsenet: association accept failed")
		return
	}

	for {
		msg, data, err := s.receiveMessage(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("dimsenet: connection ended")
			}
			return
		}

		switch msg.CommandField {
		case CStoreRQ:
			ts := contexts[msg.presContextID]
			status := s.handler(msg.AffectedSOPClassUID, msg.AffectedSOPInstanceUID, ts, data)
			s.sendStoreResponse(conn, msg, status)
		case pduTypeReleaseRQ:
			return
		default:
			log.Warn().Uint16("command", msg.CommandField).Msg("dimsenet: scp received unsupported command")
		}
	}
}

// incomingMessage carries the presentation context id alongside the decoded
// command, since the SCP needs it to know which transfer syntax applied.
type incomingMessage struct {
	*Message
	presContextID byte
}

func (s *Server) receiveMessage(conn net.Conn) (*incomingMessage, []byte, error) {
	var commandBuf, datasetBuf []byte
	var contextID byte
	commandDone := false
	datasetDone := false

	for {
		header := make([]byte, 6)
		if _, err := io.ReadFull(conn, header); err != nil {
			return nil, nil, err
		}
		pduType := header[0]
		length := binary.BigEndian.Uint32(header[2:6])
		body := make([]byte, length)
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, nil, err
		}

		if pduType == pduTypeReleaseRQ {
			return &incomingMessage{Message: &Message{CommandField: pduTypeReleaseRQ}}, nil, nil
		}
		if pduType == pduTypeAbort {
			return nil, nil, fmt.Errorf("association aborted")
		}
		if pduType != pduTypePDataTF {
			return nil, nil, fmt.Errorf("unexpected PDU type 0x%02x", pduType)
		}

		offset := 0
		for offset+4 <= len(body) {
			itemLen := binary.BigEndian.Uint32(body[offset : offset+4])
			itemStart := offset + 4
			itemEnd := itemStart + int(itemLen)
			if itemEnd > len(body) || itemLen < 2 {
				break
			}
			contextID = body[itemStart]
			pdvHeader := body[itemStart+1]
			value := body[itemStart+2 : itemEnd]

			if pdvHeader&0x01 != 0 {
				commandBuf = append(commandBuf, value...)
				if pdvHeader&0x02 != 0 {
					commandDone = true
				}
			} else {
				datasetBuf = append(datasetBuf, value...)
				if pdvHeader&0x02 != 0 {
					datasetDone = true
				}
			}
			offset = itemEnd
		}

		if commandDone {
			if datasetDone {
				break
			}
			if m, err := decodeCommand(commandBuf); err != nil || m.CommandDataSetType == 0x0101 {
				break
			}
		}
	}

	msg, err := decodeCommand(commandBuf)
	if err != nil {
		return nil, nil, err
	}
	return &incomingMessage{Message: msg, presContextID: contextID}, datasetBuf, nil
}

func (s *Server) sendStoreResponse(conn net.Conn, req *incomingMessage, status uint16) {
	resp := &Message{
		CommandField:              CStoreRSP,
		MessageIDBeingRespondedTo: req.MessageID,
		CommandDataSetType:        0x0101,
		Status:                    status,
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    req.AffectedSOPInstanceUID,
	}
	data, err := encodeCommand(resp)
	if err != nil {
		log.Error().Err(err).Msg("dimsenet: failed to encode C-STORE-RSP")
		return
	}
	writePDataTF(conn, req.presContextID, data, true, true)
}

// writePDataTF writes a single P-DATA-TF PDU carrying one PDV; used by the
// SCP side where responses are always small enough for one fragment.
func writePDataTF(conn net.Conn, contextID byte, data []byte, isCommand, isLast bool) error {
	header := byte(0x00)
	if isCommand {
		header |= 0x01
	}
	if isLast {
		header |= 0x02
	}
	pdv := make([]byte, 2+len(data))
	pdv[0] = contextID
	pdv[1] = header
	copy(pdv[2:], data)

	itemLen := make([]byte, 4)
	binary.BigEndian.PutUint32(itemLen, uint32(len(pdv)))
	body := append(itemLen, pdv...)

	pduHeader := make([]byte, 6)
	pduHeader[0] = pduTypePDataTF
	binary.BigEndian.PutUint32(pduHeader[2:6], uint32(len(body)))
	if _, err := conn.Write(pduHeader); err != nil {
		return err
	}
	_, err := conn.Write(body)
	return err
}

// acceptAssociation parses the A-ASSOCIATE-RQ, accepts every proposed
// storage, Verification, Study Root FIND and Study Root MOVE presentation
// context with whichever transfer
// syntax the peer offered first, and returns the negotiated context-id ->
// transfer-syntax map.
func (s *Server) acceptAssociation(conn net.Conn) (map[byte]string, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	if header[0] != pduTypeAssociateRQ {
		return nil, fmt.Errorf("expected A-ASSOCIATE-RQ, got 0x%02x", header[0])
	}
	length := binary.BigEndian.Uint32(header[2:6])
	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}

	type offered struct {
		id             byte
		abstractSyntax string
		transferSyntax string
	}
	var proposals []offered

	offset := 68
	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		itemEnd := offset + 4 + itemLen
		if itemEnd > len(data) {
			break
		}
		if itemType == itemTypePresentationContextRQ && itemLen >= 4 {
			id := data[offset+4]
			var abstractSyntax, transferSyntax string
			sub := offset + 8
			for sub+4 <= itemEnd {
				subType := data[sub]
				subLen := int(binary.BigEndian.Uint16(data[sub+2 : sub+4]))
				subEnd := sub + 4 + subLen
				if subEnd > itemEnd {
					break
				}
				switch subType {
				case itemTypeAbstractSyntax:
					abstractSyntax = string(data[sub+4 : subEnd])
				case itemTypeTransferSyntax:
					if transferSyntax == "" {
						transferSyntax = string(data[sub+4 : subEnd])
					}
				}
				sub = subEnd
			}
			proposals = append(proposals, offered{id: id, abstractSyntax: abstractSyntax, transferSyntax: transferSyntax})
		}
		offset = itemEnd
	}

	var acBody []byte
	acBody = append(acBody, 0x00, 0x01, 0x00, 0x00)
	acBody = append(acBody, padAET("")...)       // called AE (unused by clients)
	acBody = append(acBody, padAET(s.aeTitle)...) // this SCP's own AE title
	acBody = append(acBody, make([]byte, 32)...)
	acBody = appendItem(acBody, itemTypeApplicationContext, []byte(ApplicationContextUID))

	contexts := make(map[byte]string)
	for _, p := range proposals {
		accept := p.abstractSyntax == VerificationSOPClass || IsStorageSOPClass(p.abstractSyntax) ||
			p.abstractSyntax == StudyRootFindSOPClass || p.abstractSyntax == StudyRootMoveSOPClass
		result := byte(3) // abstract-syntax-not-supported
		ts := p.transferSyntax
		if accept && ts != "" {
			result = 0
			contexts[p.id] = ts
		}

		start := len(acBody)
		acBody = append(acBody, itemTypePresentationContextAC, 0x00, 0x00, 0x00)
		acBody = append(acBody, p.id, 0x00, result, 0x00)
		if ts == "" {
			ts = ImplicitVRLittleEndian
		}
		acBody = appendItem(acBody, itemTypeTransferSyntax, []byte(ts))
		binary.BigEndian.PutUint16(acBody[start+2:start+4], uint16(len(acBody)-start-4))
	}
	acBody = append(acBody, buildUserInfoAC()...)

	respHeader := make([]byte, 6)
	respHeader[0] = pduTypeAssociateAC
	binary.BigEndian.PutUint32(respHeader[2:6], uint32(len(acBody)))
	if _, err := conn.Write(respHeader); err != nil {
		return nil, err
	}
	if _, err := conn.Write(acBody); err != nil {
		return nil, err
	}

	return contexts, nil
}

func buildUserInfoAC() []byte {
	var body []byte
	maxLen := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLen, defaultMaxPDULength)
	body = appendItem(body, itemTypeMaxLength, maxLen)
	body = appendItem(body, itemTypeImplementationClassUID, []byte(implementationClassUID))

	var out []byte
	out = append(out, itemTypeUserInformation, 0x00, 0x00, 0x00)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	return append(out, body...)
}
