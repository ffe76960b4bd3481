package structmap

import "sync"

const (
	// Buffers larger than this are left to the GC instead of the pool.
	poolMaxCap  = 4096
	poolInitCap = 256
)

var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, poolInitCap)
		return &buf
	},
}

// getBuf returns a zeroed buffer of exactly n bytes.
func getBuf(n int) *[]byte {
	buf := bufPool.Get().(*[]byte)
	if cap(*buf) < n {
		*buf = make([]byte, n)
		return buf
	}
	*buf = (*buf)[:n]
	clear(*buf)
	return buf
}

func putBuf(buf *[]byte) {
	if buf == nil || cap(*buf) > poolMaxCap {
		return
	}
	*buf = (*buf)[:0]
	bufPool.Put(buf)
}
