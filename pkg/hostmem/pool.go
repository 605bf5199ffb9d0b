//go:build unix

package hostmem

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Pool manages page-aligned host buffers backed by anonymous mmap.
type Pool struct {
	maxSize     int64
	currentSize int64
	buffers     map[uintptr][]byte // base address -> full region
	freeList    [][]byte
	mu          sync.Mutex
	closed      bool
}

// NewPool creates a pool with the given max size in bytes.
func NewPool(maxSize int64) (*Pool, error) {
	return &Pool{
		maxSize: maxSize,
		buffers: make(map[uintptr][]byte),
	}, nil
}

// Alloc returns a page-aligned buffer of at least size bytes, reusing a
// freed region when one is large enough.
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

	region, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	p.buffers[uintptr(unsafe.Pointer(&region[0]))] = region
	p.currentSize += int64(size)

	return region[:size], nil
}

// Free returns a buffer to the pool. Buffers not allocated from this
// pool are ignored.
func (p *Pool) Free(data []byte) {
	if len(data) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	region, ok := p.buffers[uintptr(unsafe.Pointer(&data[0]))]
	if !ok {
		return
	}

	p.freeList = append(p.freeList, region)
}

// compactFreeList unmaps freed regions to make room (must hold lock).
func (p *Pool) compactFreeList() {
	for len(p.freeList) > 0 && p.currentSize > p.maxSize/2 {
		region := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]

		base := uintptr(unsafe.Pointer(&region[0]))
		if full, ok := p.buffers[base]; ok {
			delete(p.buffers, base)
			p.currentSize -= int64(len(full))
			_ = unix.Munmap(full)
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

// Close unmaps all regions. Outstanding buffers become invalid.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	for _, region := range p.buffers {
		_ = unix.Munmap(region)
	}

	p.buffers = nil
	p.freeList = nil
	p.currentSize = 0

	return nil
}
