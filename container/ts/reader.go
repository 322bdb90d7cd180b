package ts

import (
	"bufio"
	"io"

	"github.com/gwuhaolin/metaremux/utils/pool"
)

const readBufferSize = 64 * PacketSize

// PacketReader cuts a byte stream into packets. Whenever the byte at a packet
// boundary is not the sync byte it slides forward one byte at a time until
// one is found. Packets come from a pool and are never reused, so callers
// may keep them.
type PacketReader struct {
	r       *bufio.Reader
	pool    *pool.Pool
	skipped int64
	count   int64
}

func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{
		r:    bufio.NewReaderSize(r, readBufferSize),
		pool: pool.NewPool(),
	}
}

// Read returns the next packet. io.EOF or io.ErrUnexpectedEOF mean the
// stream is over; a trailing partial packet is dropped.
func (pr *PacketReader) Read() (Packet, error) {
	for {
		b, err := pr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != SyncByte {
			pr.skipped++
			continue
		}

		p := Packet(pr.pool.Get(PacketSize))
		p[0] = b
		if _, err := io.ReadFull(pr.r, p[1:]); err != nil {
			return nil, err
		}
		pr.count++
		return p, nil
	}
}

// Skipped is the number of bytes thrown away while looking for sync.
func (pr *PacketReader) Skipped() int64 {
	return pr.skipped
}

func (pr *PacketReader) Count() int64 {
	return pr.count
}
