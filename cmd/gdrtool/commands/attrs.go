package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kabu1204/gdrcopy/pkg/driver"
)

var attrsCmd = &cobra.Command{
	Use:   "attrs",
	Short: "Query driver capability attributes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := openContext()
		if err != nil {
			return fmt.Errorf("open context: %w", err)
		}
		defer ctx.Close()

		attrs := []struct {
			name string
			attr driver.Attr
		}{
			{"use_persistent_mapping", driver.AttrUsePersistentMapping},
			{"support_pin_flag_force_pcie", driver.AttrSupportPinFlagForcePCIe},
		}

		for _, a := range attrs {
			v, err := ctx.Attribute(a.attr)
			if err != nil {
				fmt.Printf("%-28s unsupported (%v)\n", a.name, err)
				continue
			}
			fmt.Printf("%-28s %d\n", a.name, v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attrsCmd)
}
