// Package commands implements the gdrtool CLI.
package commands

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kabu1204/gdrcopy/pkg/driver"
	"github.com/kabu1204/gdrcopy/pkg/gdr"
)

var (
	libPath  string
	logLevel string
	useMock  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gdrtool",
	Short: "Inspect and benchmark GDRCopy pinned GPU memory mappings",
	Long: `gdrtool exercises the GDRCopy driver: it reports library and
driver versions, queries capability attributes, lists GPUs with their
BAR1 headroom, and benchmarks copy throughput through a pinned
mapping.

The native library is located via the system search path, or from the
directory named by --lib-path / GDRCOPY_LIBRARY_PATH.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		lvl, err := logrus.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logrus.SetLevel(lvl)

		if dir := viper.GetString("lib-path"); dir != "" {
			os.Setenv("GDRCOPY_LIBRARY_PATH", dir)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&libPath, "lib-path", "", "directory containing libgdrapi.so")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&useMock, "mock", false, "run against the in-process mock driver")

	viper.BindPFlag("lib-path", rootCmd.PersistentFlags().Lookup("lib-path"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("mock", rootCmd.PersistentFlags().Lookup("mock"))

	viper.SetEnvPrefix("GDRTOOL")
	viper.AutomaticEnv()
}

// selectedDriver returns the mock driver when --mock is set, otherwise
// the native libgdrapi binding.
func selectedDriver() driver.Driver {
	if viper.GetBool("mock") {
		logrus.Debug("using mock driver")
		return driver.NewMock()
	}
	return driver.Native()
}

// openContext opens a context on the selected driver.
func openContext() (*gdr.Context, error) {
	return openContextOn(selectedDriver())
}

// openContextOn opens a context on a specific driver instance.
func openContextOn(d driver.Driver) (*gdr.Context, error) {
	ctx := gdr.New(gdr.WithDriver(d))
	if err := ctx.Open(); err != nil {
		return nil, err
	}
	return ctx, nil
}
