// Package screenshot saves screenshots of a remote session and optionally
// shows them on the local display.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/hairizuan-noorazman/testdroid-appium/artifact"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
)

// Source produces PNG screenshots.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Viewer displays a saved screenshot.
type Viewer interface {
	Show(ctx context.Context, location string) error
}

// NoopViewer shows nothing.
type NoopViewer struct{}

func (NoopViewer) Show(context.Context, string) error { return nil }

// CommandViewer opens screenshots with an external program, by default the
// desktop opener of the platform.
type CommandViewer struct {
	Command string
	Args    []string
}

// NewCommandViewer returns a viewer using xdg-open, or open on macOS.
func NewCommandViewer() *CommandViewer {
	if runtime.GOOS == "darwin" {
		return &CommandViewer{Command: "open"}
	}
	return &CommandViewer{Command: "xdg-open"}
}

// Show starts the viewer without waiting for it to exit.
func (v *CommandViewer) Show(ctx context.Context, location string) error {
	args := append(append([]string{}, v.Args...), location)
	cmd := exec.Command(v.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", v.Command, err)
	}
	go cmd.Wait()
	return nil
}

// Capturer saves screenshots into a store.
type Capturer struct {
	store  artifact.Store
	viewer Viewer
	logger logger.Logger
}

// NewCapturer creates a capturer. A nil viewer shows nothing.
func NewCapturer(store artifact.Store, viewer Viewer, log logger.Logger) *Capturer {
	if viewer == nil {
		viewer = NoopViewer{}
	}
	return &Capturer{store: store, viewer: viewer, logger: log}
}

// FileName returns the artifact name a screenshot called name is stored
// under: name itself, with ".png" added when it has no extension.
func FileName(name string) string {
	if !strings.Contains(name[strings.LastIndex(name, "/")+1:], ".") {
		return name + ".png"
	}
	return name
}

// Capture takes a screenshot from src, saves it under FileName(name) and
// returns where it was saved. Failing to display the screenshot is logged and
// otherwise ignored.
func (c *Capturer) Capture(ctx context.Context, src Source, name string) (string, error) {
	name = FileName(name)

	data, err := src.Screenshot(ctx)
	if err != nil {
		c.logger.Error(ctx, "failed to take screenshot", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}

	location, err := c.store.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		c.logger.Error(ctx, "failed to save screenshot", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}

	c.logger.Info(ctx, "screenshot saved", map[string]interface{}{
		"location": location,
		"bytes":    len(data),
	})

	if err := c.viewer.Show(ctx, location); err != nil {
		c.logger.Warn(ctx, "failed to display screenshot", map[string]interface{}{
			"location": location,
			"error":    err.Error(),
		})
	}
	return location, nil
}
