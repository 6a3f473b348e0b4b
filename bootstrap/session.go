package bootstrap

import (
	"context"
	"sync"

	"github.com/hairizuan-noorazman/testdroid-appium/artifact"
	"github.com/hairizuan-noorazman/testdroid-appium/capability"
	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/hairizuan-noorazman/testdroid-appium/monitor"
	"github.com/hairizuan-noorazman/testdroid-appium/screenshot"
	"github.com/hairizuan-noorazman/testdroid-appium/webdriver"
)

// Session is a live remote session and the monitor following it. Device,
// RunName and Monitor are only set for cloud sessions.
type Session struct {
	Driver       *webdriver.Session
	Capabilities capability.Set
	Device       *cloud.Device
	RunName      string
	AttemptID    string
	Monitor      *monitor.Monitor

	store  func(ctx context.Context) (artifact.Store, error)
	viewer screenshot.Viewer
	logger logger.Logger

	quitOnce sync.Once
	quitErr  error
}

// CaptureScreenshot saves the current screen under name and returns where it
// was stored.
func (s *Session) CaptureScreenshot(ctx context.Context, name string) (string, error) {
	store, err := s.store(ctx)
	if err != nil {
		return "", err
	}
	return screenshot.NewCapturer(store, s.viewer, s.logger).Capture(ctx, s.Driver, name)
}

// Quit stops the monitor, deletes the remote session and waits for the
// monitor to exit. Only the first call does anything.
func (s *Session) Quit(ctx context.Context) error {
	s.quitOnce.Do(func() {
		s.logger.Info(ctx, "quitting appium driver", nil)
		if s.Monitor != nil {
			s.Monitor.Stop()
		}
		s.quitErr = s.Driver.Quit(ctx)
		if s.Monitor != nil {
			s.Monitor.Wait()
		}
	})
	return s.quitErr
}
