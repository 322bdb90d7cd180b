package ts

/*
Assembler rebuilds PSI sections carried on a single PID.

It is either empty or accumulating one partial section. A packet with
payload_unit_start_indicator set carries a pointer field: the bytes before
the pointer target finish the section in progress, everything from the
target on starts new sections, possibly several of them back to back, until
the packet ends or a 0xFF stuffing byte appears where a table_id would be.
A packet without the start flag only extends the section in progress and is
ignored when nothing is accumulating.

Only sections of exactly 3 + section_length bytes are queued. A partial
section is dropped when the next section start shows up, and one that is
still partial when the input ends is simply never returned.
*/
type Assembler struct {
	buf    []byte    // section in progress, header first
	queue  []Section // completed sections, oldest first
	active bool      // a section start has been seen and not finished
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Push feeds one packet of the assembler's PID.
func (a *Assembler) Push(p Packet) {
	if !p.HasPayload() {
		return
	}
	off := p.PayloadOffset()
	if off >= PacketSize {
		return
	}

	if !p.PayloadUnitStart() {
		if a.active {
			a.fill(p[off:])
		}
		return
	}

	pointer := int(p[off])
	off++
	if a.active {
		end := off + pointer
		if end > PacketSize {
			end = PacketSize
		}
		a.fill(p[off:end])
		// a new section starts at the pointer target
		a.reset()
	}
	off += pointer

	for off < PacketSize {
		if !a.active {
			if p[off] == StuffingByte {
				return
			}
			a.active = true
			a.buf = a.buf[:0]
		}
		off += a.fill(p[off:])
	}
}

// Pop returns the oldest completed section, if any.
func (a *Assembler) Pop() (Section, bool) {
	if len(a.queue) == 0 {
		return nil, false
	}
	s := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return s, true
}

// Pending reports whether a partial section is being accumulated.
func (a *Assembler) Pending() bool {
	return a.active
}

// Reset drops the partial section. Completed sections stay queued.
func (a *Assembler) Reset() {
	a.reset()
}

func (a *Assembler) reset() {
	a.active = false
	a.buf = a.buf[:0]
}

// need is the number of bytes still missing, counting only the basic
// header until section_length is known.
func (a *Assembler) need() int {
	if len(a.buf) < BasicHeaderSize {
		return BasicHeaderSize - len(a.buf)
	}
	return BasicHeaderSize + Section(a.buf).SectionLength() - len(a.buf)
}

// fill appends data to the section in progress up to its declared end and
// returns how many bytes it consumed.
func (a *Assembler) fill(data []byte) int {
	consumed := 0
	for a.active && consumed < len(data) {
		n := a.need()
		if rest := len(data) - consumed; n > rest {
			n = rest
		}
		a.buf = append(a.buf, data[consumed:consumed+n]...)
		consumed += n

		if Section(a.buf).Complete() {
			s := make(Section, len(a.buf))
			copy(s, a.buf)
			a.queue = append(a.queue, s)
			a.reset()
		}
	}
	return consumed
}
