package commands

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List GPUs with framebuffer and BAR1 memory headroom",
	Long: `List NVIDIA GPUs via NVML. GDRCopy mappings consume BAR1
aperture, so the BAR1 column shows how much pinnable window remains on
each device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ret := nvml.Init(); ret != nvml.SUCCESS {
			return fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
		}
		defer nvml.Shutdown()

		if ver, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
			fmt.Printf("driver version: %s\n", ver)
		}

		count, ret := nvml.DeviceGetCount()
		if ret != nvml.SUCCESS {
			return fmt.Errorf("device count: %s", nvml.ErrorString(ret))
		}

		for i := 0; i < count; i++ {
			dev, ret := nvml.DeviceGetHandleByIndex(i)
			if ret != nvml.SUCCESS {
				return fmt.Errorf("device %d: %s", i, nvml.ErrorString(ret))
			}

			name, ret := dev.GetName()
			if ret != nvml.SUCCESS {
				name = "unknown"
			}

			fmt.Printf("GPU %d: %s\n", i, name)

			if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
				fmt.Printf("  memory: %d MiB free / %d MiB total\n",
					mem.Free>>20, mem.Total>>20)
			}

			bar1, ret := dev.GetBAR1MemoryInfo()
			if ret != nvml.SUCCESS {
				fmt.Printf("  bar1:   unavailable (%s)\n", nvml.ErrorString(ret))
				continue
			}
			fmt.Printf("  bar1:   %d MiB free / %d MiB total\n",
				bar1.Bar1Free>>20, bar1.Bar1Total>>20)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
