package dimsenet

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Tag identifies a DICOM data element by group and element number.
type Tag struct {
	Group   uint16
	Element uint16
}

func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Element is a single DICOM data element: a tag plus its raw string value.
// The retrieval engine only ever needs string-valued elements (UIDs, dates,
// descriptions, numeric strings) for C-FIND identifiers and results.
type Element struct {
	Tag   Tag
	Value string
}

// Dataset is a minimal, order-preserving DICOM dataset used to build C-FIND
// query identifiers and to parse C-FIND response datasets. It intentionally
// does not model pixel data or sequences: those are read from stored .dcm
// files by the metadata/convert packages using suyashkumar/dicom instead.
type Dataset struct {
	order    []Tag
	elements map[Tag]*Element
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{elements: make(map[Tag]*Element)}
}

// Set adds or replaces an element.
func (d *Dataset) Set(tag Tag, value string) {
	if _, exists := d.elements[tag]; !exists {
		d.order = append(d.order, tag)
	}
	d.elements[tag] = &Element{Tag: tag, Value: value}
}

// Get returns the string value for tag, or "" if absent.
func (d *Dataset) Get(tag Tag) string {
	if e, ok := d.elements[tag]; ok {
		return e.Value
	}
	return ""
}

// Has reports whether tag is present.
func (d *Dataset) Has(tag Tag) bool {
	_, ok := d.elements[tag]
	return ok
}

// EncodeImplicitVRLittleEndian serializes the dataset as Implicit VR Little
// Endian, the transfer syntax DIMSE command/query datasets use in this
// implementation.
func (d *Dataset) EncodeImplicitVRLittleEndian() []byte {
	var buf []byte
	for _, tag := range d.order {
		el := d.elements[tag]
		value := []byte(el.Value)
		if len(value)%2 == 1 {
			value = append(value, 0x00)
		}
		header := make([]byte, 8)
		binary.LittleEndian.PutUint16(header[0:2], tag.Group)
		binary.LittleEndian.PutUint16(header[2:4], tag.Element)
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(value)))
		buf = append(buf, header...)
		buf = append(buf, value...)
	}
	return buf
}

// ParseImplicitVRLittleEndian parses a byte stream encoded as Implicit VR
// Little Endian into a Dataset. Parsing stops at the first unknown-length
// (0xFFFFFFFF, e.g. sequence) element; every element before it, binary VRs
// included, is stored as its string value with trailing NUL/space trimmed.
func ParseImplicitVRLittleEndian(data []byte) (*Dataset, error) {
	ds := NewDataset()
	offset := 0
	for offset+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8

		if length == 0xFFFFFFFF {
			// Undefined-length sequence; not modeled, bail out gracefully.
			break
		}
		if offset+int(length) > len(data) {
			return ds, fmt.Errorf("dimsenet: element %04x,%04x length %d exceeds buffer", group, element, length)
		}

		value := strings.TrimRight(string(data[offset:offset+int(length)]), "\x00 ")
		ds.Set(Tag{Group: group, Element: element}, value)
		offset += int(length)
	}
	return ds, nil
}
