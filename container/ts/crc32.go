package ts

const crcPolynomial = 0x04c11db7

// CRC32 is the MPEG-2 section checksum: polynomial 0x04C11DB7, register
// seeded with 0xFFFFFFFF, processed one bit at a time MSB first, no
// reflection and no final xor. Running it over a section including its
// trailing CRC yields 0.
func CRC32(data []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bit := uint32(b>>uint(i)) & 1
			top := crc >> 31
			crc <<= 1
			if top^bit != 0 {
				crc ^= crcPolynomial
			}
		}
	}
	return crc
}
