package domain

import "a2dpmgr/pkg/optimize"

// BufferPool pools the vendor/browse byte buffers carried by the AVRCP
// meta-message PeerEvent variant, grounded on pkg/optimize.BytePool: this
// event shape is produced at high frequency on the transport read path and
// each buffer is short-lived, bounded in size, and released exactly once.
type BufferPool struct {
	inner *optimize.BytePool
	size  int
}

// NewBufferPool creates a pool of fixed-capacity buffers. Buffers larger
// than size are allocated directly and not returned to the pool.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{inner: optimize.NewBytePool(size), size: size}
}

// GetCopy returns a buffer (pooled if it fits, freshly allocated otherwise)
// containing a copy of src.
func (p *BufferPool) GetCopy(src []byte) []byte {
	if len(src) > p.size {
		dst := make([]byte, len(src))
		copy(dst, src)
		return dst
	}
	dst := p.inner.Get()[:len(src)]
	copy(dst, src)
	return dst
}

// Put returns a buffer to the pool. Buffers not originally drawn from the
// pool (oversized copies) are simply dropped.
func (p *BufferPool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	p.inner.Put(b)
}
