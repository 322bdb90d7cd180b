package remux

import (
	"github.com/pkg/errors"

	"github.com/gwuhaolin/metaremux/container/ts"
)

var ErrMalformedSection = errors.New("malformed section")

const (
	patEntrySize     = 4
	pmtFixedSize     = 4 // PCR_PID + program_info_length
	pmtEntryHeadSize = 5
)

// PATLayout selects the program loop of a rewritten PAT.
type PATLayout string

const (
	// PATLayoutSingle announces one program on RewrittenPMTPID.
	PATLayoutSingle PATLayout = "single"
	// PATLayoutPreserve keeps a network entry and announces the program on
	// the primary stream's own PMT PID.
	PATLayoutPreserve PATLayout = "preserve"
)

// StreamEntry is one elementary stream of a PMT.
type StreamEntry struct {
	StreamType  uint8
	PID         uint16
	Descriptors []byte
}

func checkSection(s ts.Section, min int) error {
	if len(s) < ts.BasicHeaderSize || !s.Complete() || len(s) < min {
		return errors.Wrapf(ErrMalformedSection, "%d bytes", len(s))
	}
	return nil
}

// ProgramMapPID returns the first program of a PAT whose map PID is not the
// NIT entry.
func ProgramMapPID(pat ts.Section) (pid, program uint16, ok bool) {
	if checkSection(pat, ts.ExtendedHeaderSize+ts.CRCSize) != nil {
		return 0, 0, false
	}
	end := pat.LoopEnd()
	for i := ts.ExtendedHeaderSize; i+patEntrySize <= end; i += patEntrySize {
		number := uint16(pat[i])<<8 | uint16(pat[i+1])
		mapPID := uint16(pat[i+2]&0x1f)<<8 | uint16(pat[i+3])
		if mapPID == NITPID {
			continue
		}
		return mapPID, number, true
	}
	return 0, 0, false
}

// PCRPID returns the PCR PID of a PMT.
func PCRPID(pmt ts.Section) (uint16, error) {
	if err := checkSection(pmt, ts.ExtendedHeaderSize+pmtFixedSize+ts.CRCSize); err != nil {
		return 0, err
	}
	i := ts.ExtendedHeaderSize
	return uint16(pmt[i]&0x1f)<<8 | uint16(pmt[i+1]), nil
}

// streamLoop returns the offset of the first ES entry of a PMT.
func streamLoop(pmt ts.Section) (int, error) {
	if err := checkSection(pmt, ts.ExtendedHeaderSize+pmtFixedSize+ts.CRCSize); err != nil {
		return 0, err
	}
	i := ts.ExtendedHeaderSize
	programInfoLength := int(pmt[i+2]&0x0f)<<8 | int(pmt[i+3])
	begin := i + pmtFixedSize + programInfoLength
	if begin > pmt.LoopEnd() {
		return 0, errors.Wrap(ErrMalformedSection, "program_info_length past section end")
	}
	return begin, nil
}

// ParseStreams lists the elementary streams of a PMT in section order.
// Descriptor slices alias pmt.
func ParseStreams(pmt ts.Section) ([]StreamEntry, error) {
	begin, err := streamLoop(pmt)
	if err != nil {
		return nil, err
	}
	var entries []StreamEntry
	end := pmt.LoopEnd()
	for begin < end {
		if begin+pmtEntryHeadSize > end {
			return entries, errors.Wrap(ErrMalformedSection, "truncated ES entry")
		}
		esInfoLength := int(pmt[begin+3]&0x0f)<<8 | int(pmt[begin+4])
		next := begin + pmtEntryHeadSize + esInfoLength
		if next > end {
			return entries, errors.Wrap(ErrMalformedSection, "ES_info_length past section end")
		}
		entries = append(entries, StreamEntry{
			StreamType:  pmt[begin],
			PID:         uint16(pmt[begin+1]&0x1f)<<8 | uint16(pmt[begin+2]),
			Descriptors: pmt[begin+pmtEntryHeadSize : next],
		})
		begin = next
	}
	return entries, nil
}

func appendProgram(s ts.Section, number, pid uint16) ts.Section {
	return append(s, byte(number>>8), byte(number), 0xe0|byte(pid>>8)&0x1f, byte(pid))
}

// RewritePAT builds the output PAT from a primary PAT: the header is kept,
// table_id_extension becomes the metadata transport_stream_id and the
// program loop is replaced according to layout. pmtPID is only used by
// PATLayoutPreserve.
func RewritePAT(pat ts.Section, d *Discovery, layout PATLayout, pmtPID uint16) (ts.Section, error) {
	if err := checkSection(pat, ts.ExtendedHeaderSize+ts.CRCSize); err != nil {
		return nil, err
	}
	out := make(ts.Section, 0, ts.ExtendedHeaderSize+2*patEntrySize+ts.CRCSize)
	out = append(out, pat[:ts.ExtendedHeaderSize]...)
	out.SetTableIDExtension(d.TransportStreamID)

	switch layout {
	case PATLayoutPreserve:
		out = appendProgram(out, 0, NITPID)
		out = appendProgram(out, d.ProgramNumber, pmtPID)
	default:
		out = appendProgram(out, d.ProgramNumber, RewrittenPMTPID)
	}
	return ts.Seal(out)
}

// RewritePMT builds the output PMT from a primary PMT: header, PCR PID and
// program descriptors are kept, program_number becomes the metadata one,
// every original ES entry is copied and the replacement streams are
// appended by ascending PID.
func RewritePMT(pmt ts.Section, d *Discovery) (ts.Section, error) {
	begin, err := streamLoop(pmt)
	if err != nil {
		return nil, err
	}
	end := pmt.LoopEnd()

	out := make(ts.Section, 0, len(pmt)+len(d.Streams)*16)
	out = append(out, pmt[:begin]...)
	out.SetTableIDExtension(d.ProgramNumber)

	for begin < end {
		if begin+pmtEntryHeadSize > end {
			return nil, errors.Wrap(ErrMalformedSection, "truncated ES entry")
		}
		esInfoLength := int(pmt[begin+3]&0x0f)<<8 | int(pmt[begin+4])
		next := begin + pmtEntryHeadSize + esInfoLength
		if next > end {
			return nil, errors.Wrap(ErrMalformedSection, "ES_info_length past section end")
		}
		out = append(out, pmt[begin:next]...)
		begin = next
	}

	for _, rs := range d.Sorted() {
		out = append(out,
			rs.StreamType,
			0xe0|byte(rs.PID>>8)&0x1f,
			byte(rs.PID),
			0xf0|byte(len(rs.Descriptors)>>8)&0x0f,
			byte(len(rs.Descriptors)),
		)
		out = append(out, rs.Descriptors...)
	}
	return ts.Seal(out)
}
