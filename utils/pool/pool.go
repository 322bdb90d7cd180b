package pool

// Pool hands out small slices carved from large blocks so that readers do not
// allocate once per 188 byte packet. A slice returned by Get is never handed
// out again: when a block runs out a fresh one is allocated and the old one
// stays alive for as long as any of its slices is referenced.
type Pool struct {
	pos       int
	blockSize int
	buf       []byte
}

// 500 kb, a multiple of the transport packet size.
const defaultBlockSize = 2723 * 188

func (pool *Pool) Get(size int) []byte {
	if size > pool.blockSize {
		return make([]byte, size)
	}
	if pool.blockSize-pool.pos < size {
		pool.pos = 0
		pool.buf = make([]byte, pool.blockSize)
	}
	b := pool.buf[pool.pos : pool.pos+size : pool.pos+size]
	pool.pos += size
	return b
}

// Copy returns a pool backed copy of b.
func (pool *Pool) Copy(b []byte) []byte {
	dst := pool.Get(len(b))
	copy(dst, b)
	return dst
}

func NewPool() *Pool {
	return NewPoolSize(defaultBlockSize)
}

func NewPoolSize(blockSize int) *Pool {
	return &Pool{
		blockSize: blockSize,
		buf:       make([]byte, blockSize),
	}
}
