package remux

import (
	"bytes"

	"github.com/gwuhaolin/metaremux/container/ts"
)

func mustSeal(s ts.Section) ts.Section {
	sealed, err := ts.Seal(s)
	if err != nil {
		panic(err)
	}
	return sealed
}

// buildPAT is a sealed PAT for tsid with (program_number, pmt pid) pairs.
func buildPAT(tsid uint16, programs ...[2]uint16) ts.Section {
	s := ts.Section{ts.TableIDPAT, 0xb0, 0x00, byte(tsid >> 8), byte(tsid), 0xc1, 0x00, 0x00}
	for _, p := range programs {
		s = appendProgram(s, p[0], p[1])
	}
	return mustSeal(s)
}

// buildPMT is a sealed PMT with a program descriptor loop and the given
// streams in order.
func buildPMT(program, pcrPID uint16, programInfo []byte, streams ...StreamEntry) ts.Section {
	s := ts.Section{ts.TableIDPMT, 0xb0, 0x00, byte(program >> 8), byte(program), 0xc1, 0x00, 0x00,
		0xe0 | byte(pcrPID>>8), byte(pcrPID),
		0xf0 | byte(len(programInfo)>>8), byte(len(programInfo)),
	}
	s = append(s, programInfo...)
	for _, e := range streams {
		s = append(s, e.StreamType, 0xe0|byte(e.PID>>8), byte(e.PID),
			0xf0|byte(len(e.Descriptors)>>8), byte(len(e.Descriptors)))
		s = append(s, e.Descriptors...)
	}
	return mustSeal(s)
}

func pcrPacket(pid uint16, pcr uint64) ts.Packet {
	return ts.NewPCRPacket(pid, 0, pcr)
}

// dataPacket is a payload only packet tagged with marker in its first
// payload byte.
func dataPacket(pid uint16, marker byte) ts.Packet {
	p := ts.NewPacket(pid, false, 0)
	p[ts.HeaderSize] = marker
	return p
}

// tsStream concatenates packets and packetized sections.
type tsStream struct {
	bytes.Buffer
}

func (s *tsStream) packet(p ts.Packet) *tsStream {
	s.Write(p)
	return s
}

func (s *tsStream) section(sec ts.Section, pid uint16) *tsStream {
	for _, p := range ts.Packetize(sec, pid, 0) {
		s.Write(p)
	}
	return s
}

func splitPackets(b []byte) []ts.Packet {
	var out []ts.Packet
	for len(b) >= ts.PacketSize {
		out = append(out, ts.Packet(b[:ts.PacketSize]))
		b = b[ts.PacketSize:]
	}
	return out
}

func pids(packets []ts.Packet) []uint16 {
	out := make([]uint16, len(packets))
	for i, p := range packets {
		out[i] = p.PID()
	}
	return out
}

var syncDataDescriptor = []byte{DescriptorTagStreamIdentifier, 0x01, ComponentTagSynchronizedData}
