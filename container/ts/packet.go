package ts

const (
	PacketSize   = 188
	HeaderSize   = 4
	SyncByte     = 0x47
	StuffingByte = 0xff

	// PCRClocks is the rollover modulus of the 33 bit PCR base.
	PCRClocks = 1 << 33
	// PCRHz is the tick rate of the PCR base.
	PCRHz = 90000

	PIDPAT  = 0x0000
	PIDNull = 0x1fff
	pidMask = 0x1fff
)

/*
Packet is one 188 byte transport packet.

	sync_byte                    8
	transport_error_indicator    1
	payload_unit_start_indicator 1
	transport_priority           1
	PID                          13
	transport_scrambling_control 2
	adaptation_field_control     2
	continuity_counter           4

The accessors assume len(p) == PacketSize, which PacketReader and the
constructors below guarantee.
*/
type Packet []byte

// NewPacket returns a payload only packet shell: header filled in, the
// remaining 184 bytes set to stuffing.
func NewPacket(pid uint16, unitStart bool, cc uint8) Packet {
	p := make(Packet, PacketSize)
	for i := HeaderSize; i < PacketSize; i++ {
		p[i] = StuffingByte
	}
	p[0] = SyncByte
	p[1] = byte(pid>>8) & 0x1f
	if unitStart {
		p[1] |= 0x40 // payload_unit_start_indicator
	}
	p[2] = byte(pid)
	p[3] = 0x10 | cc&0x0f // payload only, not scrambled
	return p
}

// NewPCRPacket returns an adaptation only packet carrying a PCR, the way a
// muxer emits PCR on a PID without payload.
func NewPCRPacket(pid uint16, cc uint8, pcr uint64) Packet {
	p := NewPacket(pid, false, cc)
	p[3] = 0x20 | cc&0x0f // adaptation field only
	p.SetPCR(pcr)
	// stretch the field over the whole packet, the tail is already stuffing
	p[HeaderSize] = PacketSize - HeaderSize - 1
	return p
}

func (p Packet) Sync() bool {
	return p[0] == SyncByte
}

// byte 1: error(1) unit start(1) priority(1) PID high bits(5)
func (p Packet) TransportError() bool {
	return p[1]&0x80 != 0
}

func (p Packet) PayloadUnitStart() bool {
	return p[1]&0x40 != 0
}

func (p Packet) Priority() bool {
	return p[1]&0x20 != 0
}

func (p Packet) PID() uint16 {
	return uint16(p[1]&0x1f)<<8 | uint16(p[2])
}

// SetPID rewrites the channel in place, leaving the flag bits alone.
func (p Packet) SetPID(pid uint16) {
	p[1] = p[1]&0xe0 | byte(pid>>8)&0x1f
	p[2] = byte(pid)
}

// byte 3: scrambling(2) adaptation_field_control(2) continuity_counter(4)
func (p Packet) Scrambling() uint8 {
	return p[3] >> 6
}

func (p Packet) HasAdaptationField() bool {
	return p[3]&0x20 != 0
}

func (p Packet) HasPayload() bool {
	return p[3]&0x10 != 0
}

func (p Packet) ContinuityCounter() uint8 {
	return p[3] & 0x0f
}

func (p Packet) AdaptationFieldLength() int {
	if !p.HasAdaptationField() {
		return 0
	}
	return int(p[HeaderSize])
}

// PayloadOffset is the index of the first payload byte. It is PacketSize
// when the adaptation field fills the packet.
func (p Packet) PayloadOffset() int {
	if !p.HasAdaptationField() {
		return HeaderSize
	}
	off := HeaderSize + 1 + p.AdaptationFieldLength()
	if off > PacketSize {
		return PacketSize
	}
	return off
}

func (p Packet) HasPCR() bool {
	// flags byte after the length, PCR_flag is 0x10; the PCR itself needs 6 bytes
	return p.HasAdaptationField() && p.AdaptationFieldLength() >= 7 && p[HeaderSize+1]&0x10 != 0
}

// PCR returns the 33 bit PCR base. The 9 bit extension is not used.
func (p Packet) PCR() (uint64, bool) {
	if !p.HasPCR() {
		return 0, false
	}
	b := p[HeaderSize+2:]
	base := uint64(b[0])<<25 |
		uint64(b[1])<<17 |
		uint64(b[2])<<9 |
		uint64(b[3])<<1 |
		uint64(b[4]>>7)
	return base, true
}

/*
SetPCR writes a 7 byte adaptation field carrying pcr right after the header
and raises the adaptation flag.

	Program clock reference, stored as 33 bits base,
	6 bits reserved, 9 bits extension.
*/
func (p Packet) SetPCR(pcr uint64) {
	pcr %= PCRClocks
	p[3] |= 0x20
	i := HeaderSize
	p[i] = 7
	i++
	p[i] = 0x10
	i++
	p[i] = byte(pcr >> 25)
	i++
	p[i] = byte(pcr >> 17)
	i++
	p[i] = byte(pcr >> 9)
	i++
	p[i] = byte(pcr >> 1)
	i++
	p[i] = byte(pcr&0x1)<<7 | 0x7e // last base bit, reserved bits set, extension high bit 0
	i++
	p[i] = 0x00 // extension low bits
}
