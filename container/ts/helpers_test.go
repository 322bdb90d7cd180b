package ts

import "math/rand"

// testSection builds a section of total length n (3 <= n <= 4098) with a
// random body. The table id is never 0xFF so it cannot pass for stuffing.
func testSection(rnd *rand.Rand, n int) Section {
	s := make(Section, n)
	rnd.Read(s)
	s[0] = byte(rnd.Intn(0xff))
	length := n - BasicHeaderSize
	s[1] = 0xb0 | byte(length>>8)&0x0f
	s[2] = byte(length)
	return s
}

// patSection is a sealed PAT for tsID with the given (program, pid) pairs.
func patSection(tsID uint16, entries ...[2]uint16) Section {
	s := Section{TableIDPAT, 0xb0, 0x00, byte(tsID >> 8), byte(tsID), 0xc1, 0x00, 0x00}
	for _, e := range entries {
		s = append(s, byte(e[0]>>8), byte(e[0]), 0xe0|byte(e[1]>>8), byte(e[1]))
	}
	sealed, err := Seal(s)
	if err != nil {
		panic(err)
	}
	return sealed
}

func assemble(packets []Packet, pid uint16) []Section {
	a := NewAssembler()
	var out []Section
	for _, p := range packets {
		if p.PID() != pid {
			continue
		}
		a.Push(p)
		for {
			s, ok := a.Pop()
			if !ok {
				break
			}
			out = append(out, s)
		}
	}
	return out
}
