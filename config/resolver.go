package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/spf13/viper"
)

// ErrConfigurationMissing is returned when a required key resolves to nothing.
var ErrConfigurationMissing = errors.New("required configuration missing")

// Resolver merges explicit overrides, the process environment, a properties
// file and built-in defaults, in that order of precedence. The properties file
// is read lazily, at most once, on first access.
type Resolver struct {
	path   string
	logger logger.Logger

	once   sync.Once
	mu     sync.RWMutex
	v      *viper.Viper
	loaded string
}

// NewResolver creates a resolver reading path. An empty path means
// DefaultPropertiesFile in the working directory.
func NewResolver(path string, log logger.Logger) *Resolver {
	if path == "" {
		path = DefaultPropertiesFile
	}

	v := viper.New()
	setDefaults(v)

	// Each key may be set in the environment either verbatim or upper-snake.
	for _, key := range Keys {
		_ = v.BindEnv(key, key, EnvName(key))
	}

	return &Resolver{
		path:   path,
		logger: log,
		v:      v,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyCloudURL, DefaultCloudURL)
	v.SetDefault(KeyAppiumURL, DefaultAppiumURL)
	v.SetDefault(KeyUploadURL, DefaultUploadURL)
	v.SetDefault(KeyGUI, false)

	v.SetDefault(KeyDeviceWaitTime, "120s")
	v.SetDefault(KeyDevicePollInterval, "10s")
	v.SetDefault(KeyDevicePollStrategy, "constant")

	v.SetDefault(KeyMonitorInterval, "30s")
	v.SetDefault(KeyMonitorProjectSearchAttempts, 20)

	v.SetDefault(KeyScreenshotStorage, "local")
	v.SetDefault(KeyScreenshotDir, ".")
	v.SetDefault(KeyScreenshotRegion, "us-east-1")
	v.SetDefault(KeyScreenshotPresignExpiry, "15m")

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Path returns the properties file location.
func (r *Resolver) Path() string {
	return r.path
}

// ConfigFileUsed returns the properties file that was actually loaded, or ""
// if none was.
func (r *Resolver) ConfigFileUsed() string {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

func (r *Resolver) ensureLoaded() {
	r.once.Do(r.load)
}

// load is best effort: a missing file is silent, a malformed one is logged
// and treated as empty.
func (r *Resolver) load() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn(context.Background(), "cannot stat properties file", map[string]interface{}{
				"path":  r.path,
				"error": err.Error(),
			})
		}
		return
	}

	r.v.SetConfigFile(r.path)
	r.v.SetConfigType("properties")
	if err := r.v.ReadInConfig(); err != nil {
		r.logger.Warn(context.Background(), "failed loading properties file, ignoring it", map[string]interface{}{
			"path":  r.path,
			"error": err.Error(),
		})
		return
	}
	r.loaded = r.path

	r.logger.Info(context.Background(), "loaded default properties", map[string]interface{}{
		"path": r.path,
	})
}

// Set records an explicit override. Overrides beat every other source.
func (r *Resolver) Set(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Set(key, value)
}

// Get resolves key. The boolean is false when no source provides a non-empty
// value.
func (r *Resolver) Get(key string) (string, bool) {
	value := r.GetString(key)
	return value, value != ""
}

// GetString resolves key as a string, "" when absent.
func (r *Resolver) GetString(key string) string {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return strings.TrimSpace(r.v.GetString(key))
}

// GetBool resolves key as a boolean. "true" and "1" are truthy.
func (r *Resolver) GetBool(key string) bool {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v.GetBool(key)
}

// GetInt resolves key as an integer.
func (r *Resolver) GetInt(key string) int {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v.GetInt(key)
}

// GetDuration resolves key as a duration. Bare integers are read as seconds,
// so "120" and "120s" are equivalent. Unparseable values resolve to 0.
func (r *Resolver) GetDuration(key string) time.Duration {
	raw := r.GetString(key)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.logger.Warn(context.Background(), "ignoring invalid duration", map[string]interface{}{
			"key":   key,
			"value": raw,
		})
		return 0
	}
	return d
}

// Require fails with ErrConfigurationMissing naming every key that resolves
// to nothing.
func (r *Resolver) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if _, ok := r.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}
