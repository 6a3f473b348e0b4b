package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProperties(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testdroid.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestResolver_Precedence(t *testing.T) {
	path := writeProperties(t, "testdroid.device=FileDevice\ntestdroid.project=FileProject\ntestdroid.username=file-user\n")

	t.Setenv("TESTDROID_PROJECT", "EnvProject")
	t.Setenv("TESTDROID_USERNAME", "env-user")

	r := NewResolver(path, logger.NewTestLogger())
	r.Set(KeyUsername, "explicit-user")

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "explicit beats environment", key: KeyUsername, want: "explicit-user"},
		{name: "environment beats file", key: KeyProject, want: "EnvProject"},
		{name: "file beats default", key: KeyDevice, want: "FileDevice"},
		{name: "default when nothing else", key: KeyCloudURL, want: DefaultCloudURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Get(tt.key)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_FileBeatsDefault(t *testing.T) {
	path := writeProperties(t, "testdroid.cloudUrl=https://private.example.com\n")
	r := NewResolver(path, logger.NewTestLogger())

	assert.Equal(t, "https://private.example.com", r.GetString(KeyCloudURL))
	assert.Equal(t, path, r.ConfigFileUsed())
}

func TestResolver_LiteralEnvironmentName(t *testing.T) {
	t.Setenv(KeyDevice, "LiteralDevice")
	t.Setenv(EnvName(KeyDevice), "SnakeDevice")

	r := NewResolver(filepath.Join(t.TempDir(), "missing.properties"), logger.NewTestLogger())
	assert.Equal(t, "LiteralDevice", r.GetString(KeyDevice))
}

func TestResolver_EmptyEnvironmentIgnored(t *testing.T) {
	path := writeProperties(t, "testdroid.device=FileDevice\n")
	t.Setenv(EnvName(KeyDevice), "")

	r := NewResolver(path, logger.NewTestLogger())
	assert.Equal(t, "FileDevice", r.GetString(KeyDevice))
}

func TestResolver_MissingFileIsSilent(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewResolver(filepath.Join(t.TempDir(), "nope.properties"), log)

	_, ok := r.Get(KeyDevice)
	assert.False(t, ok)
	assert.Empty(t, r.ConfigFileUsed())
	assert.Empty(t, log.Entries())
}

func TestResolver_MalformedFileTreatedAsEmpty(t *testing.T) {
	path := writeProperties(t, "testdroid.project=FileProject\ntestdroid.device=${testdroid.device}\n")
	log := logger.NewTestLogger()
	r := NewResolver(path, log)

	_, ok := r.Get(KeyProject)
	assert.False(t, ok)
	assert.Equal(t, DefaultAppiumURL, r.GetString(KeyAppiumURL))
	assert.Empty(t, r.ConfigFileUsed())
	assert.True(t, log.HasMessage("warn", "failed loading properties file"))
}

func TestResolver_LoadsFileOnce(t *testing.T) {
	path := writeProperties(t, "testdroid.device=First\n")
	r := NewResolver(path, logger.NewTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "First", r.GetString(KeyDevice))
		}()
	}
	wg.Wait()

	// Later edits to the file are not observed by the same resolver.
	require.NoError(t, os.WriteFile(path, []byte("testdroid.device=Second\n"), 0600))
	assert.Equal(t, "First", r.GetString(KeyDevice))
}

func TestResolver_GUIFlag(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "true", value: "true", want: true},
		{name: "upper true", value: "TRUE", want: true},
		{name: "one", value: "1", want: true},
		{name: "zero", value: "0", want: false},
		{name: "no", value: "false", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProperties(t, "testdroid.gui="+tt.value+"\n")
			r := NewResolver(path, logger.NewTestLogger())
			assert.Equal(t, tt.want, r.GetBool(KeyGUI))
		})
	}
}

func TestResolver_GetDuration(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "none.properties"), logger.NewTestLogger())

	assert.Equal(t, 120*time.Second, r.GetDuration(KeyDeviceWaitTime))

	r.Set(KeyDeviceWaitTime, "3600")
	assert.Equal(t, time.Hour, r.GetDuration(KeyDeviceWaitTime))

	r.Set(KeyDeviceWaitTime, "90s")
	assert.Equal(t, 90*time.Second, r.GetDuration(KeyDeviceWaitTime))

	r.Set(KeyDeviceWaitTime, "soon")
	assert.Equal(t, time.Duration(0), r.GetDuration(KeyDeviceWaitTime))
}

func TestResolver_Require(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "none.properties"), logger.NewTestLogger())
	r.Set(KeyUsername, "user")

	err := r.Require(KeyUsername, KeyPassword, KeyProject)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Contains(t, err.Error(), KeyPassword)
	assert.Contains(t, err.Error(), KeyProject)
	assert.NotContains(t, err.Error(), KeyUsername)

	assert.NoError(t, r.Require(KeyUsername, KeyCloudURL))
}
