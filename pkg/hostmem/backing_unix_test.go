//go:build unix

package hostmem

func alignedBacking() bool { return true }
