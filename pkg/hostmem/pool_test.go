package hostmem

import (
	"os"
	"testing"
	"unsafe"
)

func bufAddr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

func TestPool_AllocFree(t *testing.T) {
	p, err := NewPool(1 << 20)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	buf, err := p.Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if len(buf) != 4096 {
		t.Errorf("len = %d, want 4096", len(buf))
	}

	// Buffer must be writable end to end.
	for i := range buf {
		buf[i] = byte(i)
	}

	stats := p.Stats()
	if stats.BufferCount != 1 {
		t.Errorf("BufferCount = %d, want 1", stats.BufferCount)
	}
	if stats.CurrentSize != 4096 {
		t.Errorf("CurrentSize = %d, want 4096", stats.CurrentSize)
	}

	p.Free(buf)
	if got := p.Stats().FreeCount; got != 1 {
		t.Errorf("FreeCount = %d, want 1", got)
	}
}

func TestPool_Reuse(t *testing.T) {
	p, _ := NewPool(1 << 20)
	defer p.Close()

	buf, _ := p.Alloc(8192)
	p.Free(buf)

	// A smaller request reuses the freed region without growing.
	buf2, err := p.Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if &buf[0] != &buf2[0] {
		t.Error("freed buffer was not reused")
	}
	if got := p.Stats().CurrentSize; got != 8192 {
		t.Errorf("CurrentSize = %d, want 8192", got)
	}
}

func TestPool_Exhaustion(t *testing.T) {
	p, _ := NewPool(8192)
	defer p.Close()

	a, err := p.Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if _, err := p.Alloc(4096); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	if _, err := p.Alloc(4096); err != ErrPoolExhausted {
		t.Errorf("want ErrPoolExhausted, got %v", err)
	}

	// Freeing lets compaction make room again.
	p.Free(a)
	if _, err := p.Alloc(4096); err != nil {
		t.Errorf("Alloc after Free failed: %v", err)
	}
}

func TestPool_ForeignBufferIgnored(t *testing.T) {
	p, _ := NewPool(1 << 20)
	defer p.Close()

	p.Free(make([]byte, 128))
	if got := p.Stats().FreeCount; got != 0 {
		t.Errorf("FreeCount = %d, want 0", got)
	}
}

func TestPool_Close(t *testing.T) {
	p, _ := NewPool(1 << 20)

	if _, err := p.Alloc(4096); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if _, err := p.Alloc(64); err != ErrPoolClosed {
		t.Errorf("want ErrPoolClosed, got %v", err)
	}
}

func TestPool_PageAlignment(t *testing.T) {
	p, _ := NewPool(1 << 20)
	defer p.Close()

	buf, err := p.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	// mmap-backed allocations start on a page boundary; the fallback
	// allocator makes no such promise.
	if alignedBacking() {
		page := uintptr(os.Getpagesize())
		if addr := bufAddr(buf); addr%page != 0 {
			t.Errorf("buffer at %#x not page aligned", addr)
		}
	}
}
