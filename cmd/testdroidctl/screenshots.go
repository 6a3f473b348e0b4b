package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hairizuan-noorazman/testdroid-appium/artifact"
	"github.com/hairizuan-noorazman/testdroid-appium/screenshot"
	"github.com/spf13/cobra"
)

func newScreenshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenshots",
		Short: "Find screenshots saved by earlier runs",
	}

	cmd.AddCommand(newScreenshotsGetCmd())
	return cmd
}

func newScreenshotsGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print where a screenshot is stored, or copy it with --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := screenshot.FileName(args[0])

			b, err := newBootstrapper()
			if err != nil {
				return err
			}
			store, err := b.ArtifactStore(ctx)
			if err != nil {
				return err
			}

			ok, err := store.Exists(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", artifact.ErrFileNotFound, name)
			}

			location := output
			if output == "" {
				if location, err = store.Location(ctx, name); err != nil {
					return err
				}
			} else if err := copyArtifact(cmd, store, name, output); err != nil {
				return err
			}

			if flagJSON {
				printJSON(map[string]string{"name": name, "location": location})
				return nil
			}
			printMessage(location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Copy the screenshot to this file")
	return cmd
}

func copyArtifact(cmd *cobra.Command, store artifact.Store, name, dst string) error {
	rc, err := store.Open(cmd.Context(), name)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return f.Close()
}
