package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hairizuan-noorazman/testdroid-appium/bootstrap"
	"github.com/hairizuan-noorazman/testdroid-appium/config"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/spf13/cobra"
)

var (
	resolver *config.Resolver
	settings *config.Settings
	log      logger.Logger

	logOutput io.Writer = os.Stderr
)

func initConfig() error {
	// The logging keys are resolved quietly first so that messages about the
	// properties file itself honor the configured level.
	quiet := newResolver(logger.NewLogrusLogger("error", "text", io.Discard))
	log = logger.NewLogrusLogger(
		quiet.GetString(config.KeyLogLevel),
		quiet.GetString(config.KeyLogFormat),
		logOutput)

	resolver = newResolver(log)

	var err error
	settings, err = config.Load(resolver)
	return err
}

func newResolver(l logger.Logger) *config.Resolver {
	r := config.NewResolver(flagProperties, l)

	// CLI flags take highest priority
	for key, value := range flagSet {
		r.Set(key, value)
	}
	if flagLogLevel != "" {
		r.Set(config.KeyLogLevel, flagLogLevel)
	}
	return r
}

func newBootstrapper() (*bootstrap.Bootstrapper, error) {
	return bootstrap.New(settings, log)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every recognized key with its resolved value",
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(config.Keys))
			var rows [][]string
			for _, key := range config.Keys {
				value, ok := resolver.Get(key)
				display := value
				switch {
				case !ok:
					display = "(not set)"
				case config.IsSecret(key):
					display = mask(value)
				}
				values[key] = display
				rows = append(rows, []string{key, display})
			}

			if flagJSON {
				printJSON(values)
				return nil
			}

			printTable([]string{"KEY", "VALUE"}, rows)
			if cfgFile := resolver.ConfigFileUsed(); cfgFile != "" {
				printMessage(fmt.Sprintf("\nProperties file: %s", cfgFile))
			} else {
				printMessage(fmt.Sprintf("\nProperties file: %s (not loaded)", resolver.Path()))
			}
			return nil
		},
	}
}

func mask(secret string) string {
	if len(secret) > 8 {
		return secret[:2] + "..." + secret[len(secret)-2:]
	}
	return "****"
}
