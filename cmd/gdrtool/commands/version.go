package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print library and kernel driver versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv := selectedDriver()

		major, minor := drv.RuntimeVersion()
		fmt.Printf("libgdrapi:  %d.%d\n", major, minor)

		ctx, err := openContext()
		if err != nil {
			return fmt.Errorf("open context: %w", err)
		}
		defer ctx.Close()

		dmajor, dminor, err := ctx.DriverVersion()
		if err != nil {
			return fmt.Errorf("query driver version: %w", err)
		}
		fmt.Printf("gdrdrv:     %d.%d\n", dmajor, dminor)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
