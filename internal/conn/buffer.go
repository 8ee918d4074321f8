package conn

import "sync"

// readBufferSize is the size of the pooled buffers used by read loops.
const readBufferSize = 32 * 1024 // 32KB

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, readBufferSize)
		return &b
	},
}

// GetBuffer retrieves a read buffer from the pool.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(buf *[]byte) {
	bufferPool.Put(buf)
}
