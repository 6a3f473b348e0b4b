package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	flagProperties string
	flagLogLevel   string
	flagSet        map[string]string
	flagJSON       bool
)

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

// execute runs the root command with a context that is cancelled on
// interrupt, so every command stops its cloud and Appium calls on Ctrl-C.
func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "testdroidctl",
		Short: "Start Appium sessions on Testdroid cloud devices",
		Long: "A command-line interface for opening Appium sessions against Testdroid cloud devices " +
			"or a local Appium server, configured through testdroid.properties and the environment.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagProperties, "properties", "", "Properties file (default ./testdroid.properties)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringToStringVar(&flagSet, "set", nil, "Override a configuration key, e.g. --set testdroid.device=Pixel5")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("testdroidctl %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScreenshotsCmd())
	return rootCmd
}
