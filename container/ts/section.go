package ts

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// BasicHeaderSize covers table_id and the 12 bit section_length.
	BasicHeaderSize = 3
	// ExtendedHeaderSize adds table_id_extension, version/current_next,
	// section_number and last_section_number.
	ExtendedHeaderSize = 8
	CRCSize            = 4

	// MaxSectionLength is the largest value the 12 bit length field holds.
	MaxSectionLength = 0x0fff

	TableIDPAT = 0x00
	TableIDPMT = 0x02
)

var ErrSectionTooLong = errors.New("section length overflows 12 bits")

// Section is one complete PSI section: basic header, section_length bytes
// of body, trailing CRC32 included.
type Section []byte

func (s Section) TableID() uint8 {
	return s[0]
}

func (s Section) SectionLength() int {
	return int(s[1]&0x0f)<<8 | int(s[2])
}

func (s Section) TableIDExtension() uint16 {
	return binary.BigEndian.Uint16(s[3:5])
}

func (s Section) SetTableIDExtension(v uint16) {
	binary.BigEndian.PutUint16(s[3:5], v)
}

func (s Section) CurrentNext() bool {
	return s[5]&0x01 != 0
}

// Complete reports whether s holds exactly the bytes its header declares.
func (s Section) Complete() bool {
	return len(s) >= BasicHeaderSize && len(s) == BasicHeaderSize+s.SectionLength()
}

// CRC returns the checksum stored in the last four bytes.
func (s Section) CRC() uint32 {
	return binary.BigEndian.Uint32(s[len(s)-CRCSize:])
}

// LoopEnd is the index where the table's entry loop stops, i.e. the start
// of the CRC.
func (s Section) LoopEnd() int {
	return BasicHeaderSize + s.SectionLength() - CRCSize
}

// Seal patches section_length to cover the body plus a CRC, then appends the
// CRC computed over everything before it. s must not carry a CRC yet.
func Seal(s Section) (Section, error) {
	length := len(s) + CRCSize - BasicHeaderSize
	if length > MaxSectionLength {
		return nil, ErrSectionTooLong
	}
	s[1] = s[1]&0xf0 | byte(length>>8)&0x0f
	s[2] = byte(length)

	var crc [CRCSize]byte
	binary.BigEndian.PutUint32(crc[:], CRC32(s))
	return append(s, crc[:]...), nil
}
