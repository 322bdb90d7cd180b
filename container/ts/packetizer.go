package ts

// Packetize splits a complete section into packets on pid. The first packet
// has the start flag and a zero pointer field, the last one is padded with
// stuffing, and continuity counters run cc, cc+1, ... modulo 16.
func Packetize(s Section, pid uint16, cc uint8) []Packet {
	packets := make([]Packet, 0, (len(s)+PacketSize-HeaderSize)/(PacketSize-HeaderSize))
	for begin := 0; begin < len(s); {
		first := begin == 0
		p := NewPacket(pid, first, cc)
		cc = (cc + 1) & 0x0f

		i := HeaderSize
		if first {
			p[i] = 0x00 // pointer_field
			i++
		}
		begin += copy(p[i:], s[begin:])
		packets = append(packets, p)
	}
	return packets
}

// NextContinuityCounter is the counter that follows n packets sent from cc.
func NextContinuityCounter(cc uint8, n int) uint8 {
	return uint8((int(cc) + n) & 0x0f)
}
