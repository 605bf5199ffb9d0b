//go:build cuda

// Package cudamem allocates CUDA device memory for tools and examples
// that need a real GPU pointer to pin. Build with -tags cuda; without
// the tag every call reports ErrNotAvailable.
package cudamem

/*
// x86_64 with standard CUDA install
#cgo linux,amd64 LDFLAGS: -L/usr/local/cuda/lib64 -lcudart

// arm64 with system CUDA install (apt)
#cgo linux,arm64 LDFLAGS: -L/usr/lib/aarch64-linux-gnu -lcudart

#include <cuda_runtime.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Error wraps CUDA runtime error codes.
type Error int

func (e Error) Error() string {
	return fmt.Sprintf("cuda error: %d", int(e))
}

func check(ret C.cudaError_t) error {
	if ret != 0 {
		return Error(ret)
	}
	return nil
}

// Available reports whether CUDA support is compiled in.
func Available() bool { return true }

// Alloc allocates size bytes of device memory and returns the device
// pointer.
func Alloc(size int) (uintptr, error) {
	var ptr unsafe.Pointer
	if err := check(C.cudaMalloc(&ptr, C.size_t(size))); err != nil {
		return 0, err
	}
	return uintptr(ptr), nil
}

// Free releases device memory.
func Free(ptr uintptr) error {
	return check(C.cudaFree(unsafe.Pointer(ptr)))
}

// Memset fills size bytes of device memory with value.
func Memset(ptr uintptr, value byte, size int) error {
	return check(C.cudaMemset(unsafe.Pointer(ptr), C.int(value), C.size_t(size)))
}

// CopyToDevice copies src into device memory at dst.
func CopyToDevice(dst uintptr, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	return check(C.cudaMemcpy(unsafe.Pointer(dst), unsafe.Pointer(&src[0]),
		C.size_t(len(src)), C.cudaMemcpyHostToDevice))
}

// CopyFromDevice fills dst from device memory at src.
func CopyFromDevice(dst []byte, src uintptr) error {
	if len(dst) == 0 {
		return nil
	}
	return check(C.cudaMemcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(src),
		C.size_t(len(dst)), C.cudaMemcpyDeviceToHost))
}

// MemInfo returns free and total device memory in bytes.
func MemInfo() (free, total int64, err error) {
	var f, t C.size_t
	if err := check(C.cudaMemGetInfo(&f, &t)); err != nil {
		return 0, 0, err
	}
	return int64(f), int64(t), nil
}
