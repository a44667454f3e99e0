// Command envelope estimates building envelope parameters, either as an HTTP
// service or offline from CSV files.
package main

import (
	"fmt"
	"os"

	"thermal_envelope/internal/config"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // set via -ldflags "-X main.buildTime=..."
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "envelope",
		Short: "Grey-box RC estimation of envelope resistance and indoor heat capacity",
		Long: `envelope fits the first-order heat balance

  T_out - T_in = R_env * (C_in * dT_in/dt - Q_in)

to indoor/outdoor temperature and internal gain series, reporting R_env (K/W)
and C_in (J/K) with confidence intervals and goodness-of-fit metrics.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file (default: configs/config.yml or ./config.yml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "envelope v%s (%s) built %s\n", version, commit, buildTime)
		},
	})
	root.AddCommand(newServeCmd(), newFitCmd(), newBatchCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
