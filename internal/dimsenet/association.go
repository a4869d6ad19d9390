package dimsenet

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// presentationContext tracks one negotiated abstract syntax and the
// transfer syntax the peer accepted for it.
type presentationContext struct {
	id             byte
	abstractSyntax string
	transferSyntax string
	accepted       bool
}

// Association is a client-side (SCU) DICOM network association: the
// connection this system uses to issue C-FIND and C-MOVE against the
// configured PACS, per spec.md §4.1 step 1.
type Association struct {
	conn           net.Conn
	callingAET     string
	calledAET      string
	maxPDULength   uint32
	contexts       map[byte]*presentationContext
	nextContextID  byte
	proposedSyntax []string
}

// Config configures a new Association.
type Config struct {
	CallingAET     string
	CalledAET      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Connect opens a TCP connection to address and negotiates a DICOM
// association offering Study-Root C-FIND, Study-Root C-MOVE and
// Verification abstract syntaxes.
func Connect(address string, cfg Config) (*Association, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 300 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	conn, err := net.DialTimeout("tcp", address, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("dimsenet: dial %s: %w", address, err)
	}
	_ = conn.SetDeadline(time.Now().Add(cfg.ReadTimeout))

	a := &Association{
		conn:          conn,
		callingAET:    cfg.CallingAET,
		calledAET:     cfg.CalledAET,
		maxPDULength:  defaultMaxPDULength,
		contexts:      make(map[byte]*presentationContext),
		nextContextID: 1,
		proposedSyntax: []string{
			ExplicitVRLittleEndian,
			ImplicitVRLittleEndian,
		},
	}

	if err := a.sendAssociateRQ(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dimsenet: send A-ASSOCIATE-RQ: %w", err)
	}
	if err := a.receiveAssociateAC(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dimsenet: receive A-ASSOCIATE-AC: %w", err)
	}

	log.Debug().Str("calling_aet", a.callingAET).Str("called_aet", a.calledAET).
		Str("remote", address).Msg("dicom association established")
	return a, nil
}

// Close releases the association and closes the underlying connection.
func (a *Association) Close() error {
	if err := a.sendReleaseRQ(); err != nil {
		log.Warn().Err(err).Msg("dimsenet: failed to send A-RELEASE-RQ")
	} else {
		_ = a.receiveReleaseRP()
	}
	return a.conn.Close()
}

func (a *Association) offerContext(abstractSyntax string) byte {
	id := a.nextContextID
	a.nextContextID += 2
	a.contexts[id] = &presentationContext{id: id, abstractSyntax: abstractSyntax}
	return id
}

func (a *Association) sendAssociateRQ() error {
	// Offer a fixed set of abstract syntaxes sufficient for study/series
	// discovery and retrieval: Verification, Study-Root FIND, Study-Root
	// MOVE. Storage contexts are only needed on the SCP side.
	ids := []byte{
		a.offerContext(VerificationSOPClass),
		a.offerContext(StudyRootFindSOPClass),
		a.offerContext(StudyRootMoveSOPClass),
	}

	var buf []byte
	buf = append(buf, 0x00, 0x01) // protocol version
	buf = append(buf, 0x00, 0x00) // reserved

	buf = append(buf, padAET(a.calledAET)...)
	buf = append(buf, padAET(a.callingAET)...)
	buf = append(buf, make([]byte, 32)...) // reserved

	buf = appendItem(buf, itemTypeApplicationContext, []byte(ApplicationContextUID))

	for _, id := range ids {
		buf = a.appendPresentationContextRQ(buf, id)
	}
	buf = append(buf, a.buildUserInformation()...)

	return a.writePDU(pduTypeAssociateRQ, buf)
}

func (a *Association) appendPresentationContextRQ(buf []byte, id byte) []byte {
	pc := a.contexts[id]
	start := len(buf)
	buf = append(buf, itemTypePresentationContextRQ, 0x00, 0x00, 0x00) // length placeholder
	buf = append(buf, id, 0x00, 0x00, 0x00)                           // id + reserved
	buf = appendItem(buf, itemTypeAbstractSyntax, []byte(pc.abstractSyntax))
	for _, ts := range a.proposedSyntax {
		buf = appendItem(buf, itemTypeTransferSyntax, []byte(ts))
	}
	binary.BigEndian.PutUint16(buf[start+2:start+4], uint16(len(buf)-start-4))
	return buf
}

func (a *Association) buildUserInformation() []byte {
	var body []byte
	maxLen := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLen, a.maxPDULength)
	body = appendItem(body, itemTypeMaxLength, maxLen)
	body = appendItem(body, itemTypeImplementationClassUID, []byte(implementationClassUID))
	body = appendItem(body, itemTypeImplementationVersion, []byte(implementationVersionName))

	var out []byte
	out = append(out, itemTypeUserInformation, 0x00, 0x00, 0x00)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	out = append(out, body...)
	return out
}

func appendItem(buf []byte, itemType byte, value []byte) []byte {
	buf = append(buf, itemType, 0x00)
	lenBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBytes, uint16(len(value)))
	buf = append(buf, lenBytes...)
	return append(buf, value...)
}

func padAET(aet string) []byte {
	out := make([]byte, 16)
	copy(out, aet)
	for i := len(aet); i < 16; i++ {
		out[i] = ' '
	}
	return out
}

func (a *Association) writePDU(pduType byte, body []byte) error {
	header := make([]byte, 6)
	header[0] = pduType
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	if _, err := a.conn.Write(header); err != nil {
		return err
	}
	_, err := a.conn.Write(body)
	return err
}

func (a *Association) receiveAssociateAC() error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return fmt.Errorf("read PDU header: %w", err)
	}
	pduType := header[0]
	length := binary.BigEndian.Uint32(header[2:6])
	data := make([]byte, length)
	if _, err := io.ReadFull(a.conn, data); err != nil {
		return fmt.Errorf("read PDU body: %w", err)
	}

	if pduType == pduTypeAssociateRJ {
		return fmt.Errorf("association rejected")
	}
	if pduType != pduTypeAssociateAC {
		return fmt.Errorf("unexpected PDU type 0x%02x, expected A-ASSOCIATE-AC", pduType)
	}

	// Skip the two fixed 2-byte fields, the two 16-byte AE titles and the
	// 32-byte reserved block (68 bytes), then the Application Context item,
	// to reach the presentation context results.
	offset := 68
	if offset >= len(data) {
		return fmt.Errorf("A-ASSOCIATE-AC too short")
	}
	// application context item
	if offset+4 <= len(data) && data[offset] == itemTypeApplicationContext {
		itemLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		offset += 4 + itemLen
	}

	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		itemEnd := offset + 4 + itemLen
		if itemEnd > len(data) {
			break
		}
		if itemType == itemTypePresentationContextAC && itemLen >= 4 {
			id := data[offset+4]
			result := data[offset+7]
			transferSyntax := ""
			sub := offset + 8
			for sub+4 <= itemEnd {
				subType := data[sub]
				subLen := int(binary.BigEndian.Uint16(data[sub+2 : sub+4]))
				subEnd := sub + 4 + subLen
				if subEnd > itemEnd {
					break
				}
				if subType == itemTypeTransferSyntax {
					transferSyntax = strings.TrimRight(string(data[sub+4:subEnd]), "\x00 ")
				}
				sub = subEnd
			}
			if pc, ok := a.contexts[id]; ok {
				pc.accepted = result == 0
				pc.transferSyntax = transferSyntax
			}
		}
		offset = itemEnd
	}
	return nil
}

func (a *Association) sendReleaseRQ() error {
	return a.writePDU(pduTypeReleaseRQ, make([]byte, 4))
}

func (a *Association) receiveReleaseRP() error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(header[2:6])
	_, err := io.CopyN(io.Discard, a.conn, int64(length))
	return err
}

// contextIDFor returns the accepted presentation context id for an abstract
// syntax.
func (a *Association) contextIDFor(abstractSyntax string) (byte, error) {
	for _, pc := range a.contexts {
		if pc.abstractSyntax == abstractSyntax && pc.accepted {
			return pc.id, nil
		}
	}
	return 0, fmt.Errorf("no accepted presentation context for %s", abstractSyntax)
}
