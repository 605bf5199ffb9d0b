//go:build !unix

package hostmem

import (
	"sync"
	"unsafe"
)

// Pool manages host buffers. Without mmap support this uses regular Go
// memory, so alignment is whatever the allocator gives us.
type Pool struct {
	maxSize     int64
	currentSize int64
	buffers     map[uintptr]int // base address -> size
	freeList    [][]byte
	mu          sync.Mutex
	closed      bool
}

// NewPool creates a pool with the given max size in bytes.
func NewPool(maxSize int64) (*Pool, error) {
	return &Pool{
		maxSize: maxSize,
		buffers: make(map[uintptr]int),
	}, nil
}

// Alloc returns a buffer of size bytes.
func (p *Pool) Alloc(size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	for i, buf := range p.freeList {
		if len(buf) >= size {
			p.freeList = append(p.freeList[:i], p.freeList[i+1:]...)
			return buf[:size], nil
		}
	}

	if p.currentSize+int64(size) > p.maxSize {
		p.compactFreeList()
		if p.currentSize+int64(size) > p.maxSize {
			return nil, ErrPoolExhausted
		}
	}

	data := make([]byte, size)
	p.buffers[uintptr(unsafe.Pointer(&data[0]))] = size
	p.currentSize += int64(size)

	return data, nil
}

// Free returns a buffer to the pool.
func (p *Pool) Free(data []byte) {
	if len(data) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if _, ok := p.buffers[uintptr(unsafe.Pointer(&data[0]))]; !ok {
		return
	}

	p.freeList = append(p.freeList, data)
}

// compactFreeList drops freed buffers to make room (must hold lock).
func (p *Pool) compactFreeList() {
	for len(p.freeList) > 0 && p.currentSize > p.maxSize/2 {
		buf := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]

		base := uintptr(unsafe.Pointer(&buf[0]))
		if size, ok := p.buffers[base]; ok {
			delete(p.buffers, base)
			p.currentSize -= int64(size)
		}
	}
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		MaxSize:     p.maxSize,
		CurrentSize: p.currentSize,
		BufferCount: len(p.buffers),
		FreeCount:   len(p.freeList),
	}
}

// Close releases all memory.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.buffers = nil
	p.freeList = nil
	p.currentSize = 0

	return nil
}
