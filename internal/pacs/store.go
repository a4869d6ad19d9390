package pacs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// writePart10File wraps a received dataset in a minimal DICOM Part 10 file
// (128-byte preamble, "DICM" magic, Explicit VR Little Endian File Meta
// Information group) and appends the dataset bytes verbatim in whatever
// transfer syntax the storage presentation context negotiated. This mirrors
// pydicom's dataset.save_as(write_like_original=False), which the original
// C-STORE handler relied on to produce files later readers (dcm2niix,
// suyashkumar/dicom) can open directly.
func writePart10File(path, sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pacs: create series directory: %w", err)
	}

	var meta bytes.Buffer
	appendExplicitUI(&meta, 0x0002, 0x0002, sopClassUID)
	appendExplicitUI(&meta, 0x0002, 0x0003, sopInstanceUID)
	appendExplicitUI(&meta, 0x0002, 0x0010, transferSyntaxUID)

	var groupLength bytes.Buffer
	appendExplicitElement(&groupLength, 0x0002, 0x0000, "UL", uint32Bytes(uint32(meta.Len())))

	var out bytes.Buffer
	out.Write(make([]byte, 128)) // preamble
	out.WriteString("DICM")
	out.Write(groupLength.Bytes())
	out.Write(meta.Bytes())
	out.Write(dataset)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pacs: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(out.Bytes()); err != nil {
		return fmt.Errorf("pacs: write %s: %w", path, err)
	}
	return nil
}

func appendExplicitUI(buf *bytes.Buffer, group, element uint16, value string) {
	if len(value)%2 == 1 {
		value += "\x00"
	}
	appendExplicitElement(buf, group, element, "UI", []byte(value))
}

func appendExplicitElement(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	binary.Write(buf, binary.LittleEndian, group)
	binary.Write(buf, binary.LittleEndian, element)
	buf.WriteString(vr)
	binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	buf.Write(value)
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
