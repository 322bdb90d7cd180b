package remux

import "sort"

const (
	// NITPID marks the PAT entry that points at the network information
	// table; it is skipped when looking for the program map PID.
	NITPID = 0x0010
	// RewrittenPMTPID is the program map PID announced by a single entry
	// rewritten PAT. It happens to share its value with NITPID.
	RewrittenPMTPID = 0x0010

	StreamTypeSynchronizedData = 0x06
	StreamTypeDataCarousel     = 0x0d

	DescriptorTagStreamIdentifier = 0x52
	ComponentTagSynchronizedData  = 0x38
)

// DefaultSIPIDs are the service information channels that are taken from
// the metadata stream: NIT, SDT, EIT, TOT and BIT.
var DefaultSIPIDs = []uint16{0x10, 0x11, 0x12, 0x14, 0x24}

// ReplacementStream is an elementary stream of the metadata program that is
// grafted into the primary program.
type ReplacementStream struct {
	StreamType  uint8
	PID         uint16 // PID in the output
	Descriptors []byte // ES_info loop, verbatim
}

// Discovery is what the scan of the metadata stream found. It is not
// modified once the scan is over.
type Discovery struct {
	TransportStreamID uint16
	ProgramNumber     uint16
	// Streams is keyed by the elementary PID in the metadata stream.
	Streams map[uint16]ReplacementStream
}

func (d *Discovery) Replacement(pid uint16) (ReplacementStream, bool) {
	rs, ok := d.Streams[pid]
	return rs, ok
}

// Sorted returns the replacement streams by ascending output PID.
func (d *Discovery) Sorted() []ReplacementStream {
	out := make([]ReplacementStream, 0, len(d.Streams))
	for _, rs := range d.Streams {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PID < out[j].PID
	})
	return out
}

// Qualifies reports whether a metadata PMT entry is carried over: data
// carousels always are, synchronized data streams only when a stream
// identifier descriptor names the synchronized data component.
func Qualifies(streamType uint8, descriptors []byte) bool {
	switch streamType {
	case StreamTypeDataCarousel:
		return true
	case StreamTypeSynchronizedData:
		for off := 0; off+2 <= len(descriptors); {
			tag := descriptors[off]
			length := int(descriptors[off+1])
			if tag == DescriptorTagStreamIdentifier && length >= 1 &&
				off+2 < len(descriptors) && descriptors[off+2] == ComponentTagSynchronizedData {
				return true
			}
			off += 2 + length
		}
	}
	return false
}
