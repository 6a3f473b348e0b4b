package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
)

// Device returns a device fixture.
func Device(id int64, name string, locked bool) cloud.Device {
	return cloud.Device{ID: id, DisplayName: name, Locked: locked, Online: true}
}

// DeviceRun returns a device run fixture executed on the named device.
func DeviceRun(id int64, device, state string) cloud.DeviceRun {
	return cloud.DeviceRun{ID: id, State: state, Device: &cloud.Device{DisplayName: device}}
}

// WriteFile creates name with content under a fresh temporary directory and
// returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}
