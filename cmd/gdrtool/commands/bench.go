package commands

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kabu1204/gdrcopy/pkg/cudamem"
	"github.com/kabu1204/gdrcopy/pkg/driver"
	"github.com/kabu1204/gdrcopy/pkg/hostmem"
)

var (
	benchSizeMB    int
	benchIters     int
	benchForcePCIe bool
	benchAddr      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark copy throughput through a pinned mapping",
	Long: `Pin a device memory range, map it into host address space, and
time copy loops in both directions.

Device memory comes from CUDA when built with -tags cuda, from the
address given by --addr (a range already allocated by another GPU
runtime), or from the simulated device of the mock driver with --mock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		size := benchSizeMB << 20

		drv := selectedDriver()
		_, isMock := drv.(*driver.Mock)

		ctx, err := openContextOn(drv)
		if err != nil {
			return fmt.Errorf("open context: %w", err)
		}
		defer ctx.Close()

		var devPtr uintptr
		switch {
		case isMock:
			// Any address works; the mock backs each pin itself.
			devPtr = 0x70000000
		case cudamem.Available():
			p, err := cudamem.Alloc(size)
			if err != nil {
				return fmt.Errorf("alloc device memory: %w", err)
			}
			defer cudamem.Free(p)
			if err := cudamem.Memset(p, 0xA5, size); err != nil {
				return fmt.Errorf("memset device memory: %w", err)
			}
			devPtr = p
		case benchAddr != "":
			p, err := strconv.ParseUint(benchAddr, 0, 64)
			if err != nil {
				return fmt.Errorf("parse --addr: %w", err)
			}
			devPtr = uintptr(p)
		default:
			return errors.New("no device memory source: pass --mock or --addr, or build with -tags cuda")
		}

		flags := driver.PinDefault
		if benchForcePCIe {
			flags = driver.PinForcePCIe
		}

		h, err := ctx.Pin(devPtr, uint64(size), flags)
		if err != nil {
			return fmt.Errorf("pin: %w", err)
		}
		defer h.Unpin()

		va, err := h.Map(uint64(size))
		if err != nil {
			return fmt.Errorf("map: %w", err)
		}
		logrus.Debugf("mapped 0x%x..0x%x", va, va+uintptr(size))

		info, err := h.Info()
		if err != nil {
			return fmt.Errorf("get info: %w", err)
		}
		fmt.Printf("pinned %d MiB at 0x%x (page %s, mapping %s, wc=%v)\n",
			benchSizeMB, devPtr, info.PageSizeClass(), info.MappingType, info.WCMapping)

		pool, err := hostmem.NewPool(int64(2 * size))
		if err != nil {
			return fmt.Errorf("host pool: %w", err)
		}
		defer pool.Close()

		src, err := pool.Alloc(size)
		if err != nil {
			return fmt.Errorf("alloc host buffer: %w", err)
		}
		for i := range src {
			src[i] = byte(i)
		}

		start := time.Now()
		for i := 0; i < benchIters; i++ {
			if err := h.CopyToMapping(src); err != nil {
				return fmt.Errorf("copy to mapping: %w", err)
			}
		}
		toRate := rateGBs(size, benchIters, time.Since(start))

		dst, err := pool.Alloc(size)
		if err != nil {
			return fmt.Errorf("alloc host buffer: %w", err)
		}

		start = time.Now()
		for i := 0; i < benchIters; i++ {
			if err := h.CopyFromMapping(dst); err != nil {
				return fmt.Errorf("copy from mapping: %w", err)
			}
		}
		fromRate := rateGBs(size, benchIters, time.Since(start))

		if !bytes.Equal(src, dst) {
			return errors.New("verification failed: read-back differs from written pattern")
		}

		fmt.Printf("host -> gpu: %.2f GB/s\n", toRate)
		fmt.Printf("gpu -> host: %.2f GB/s\n", fromRate)
		return nil
	},
}

func rateGBs(size, iters int, elapsed time.Duration) float64 {
	return float64(size) * float64(iters) / elapsed.Seconds() / 1e9
}

func init() {
	benchCmd.Flags().IntVar(&benchSizeMB, "size-mb", 16, "transfer size in MiB")
	benchCmd.Flags().IntVar(&benchIters, "iters", 10, "iterations per direction")
	benchCmd.Flags().BoolVar(&benchForcePCIe, "force-pcie", false, "pin with the force-PCIe flag")
	benchCmd.Flags().StringVar(&benchAddr, "addr", "", "device address of a pre-allocated range (hex or decimal)")
	rootCmd.AddCommand(benchCmd)
}
