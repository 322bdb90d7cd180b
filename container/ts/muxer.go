package ts

import (
	"io"

	"github.com/pkg/errors"
)

/*
Muxer writes packets to the output and re-encodes PSI sections.

Every PID that gets sections through WriteSection has its own continuity
counter owned by the muxer. It starts at 0 and moves on by exactly the
number of packets each section produced, independent of whatever the
original packets on that PID carried. Packets passed to WritePacket are
written as they are.
*/
type Muxer struct {
	w       io.Writer
	cc      map[uint16]uint8
	packets int64
}

func NewMuxer(w io.Writer) *Muxer {
	return &Muxer{
		w:  w,
		cc: make(map[uint16]uint8),
	}
}

func (muxer *Muxer) WritePacket(p Packet) error {
	if _, err := muxer.w.Write(p); err != nil {
		return errors.Wrapf(err, "write packet %d (pid 0x%04x)", muxer.packets, p.PID())
	}
	muxer.packets++
	return nil
}

// WriteSection packetizes s on pid and writes the result. It returns the
// number of packets written.
func (muxer *Muxer) WriteSection(s Section, pid uint16) (int, error) {
	packets := Packetize(s, pid, muxer.cc[pid])
	muxer.cc[pid] = NextContinuityCounter(muxer.cc[pid], len(packets))
	for _, p := range packets {
		if err := muxer.WritePacket(p); err != nil {
			return 0, err
		}
	}
	return len(packets), nil
}

// Packets is the number of packets written so far.
func (muxer *Muxer) Packets() int64 {
	return muxer.packets
}
