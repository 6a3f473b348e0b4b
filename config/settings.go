package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Settings is the typed view of a Resolver used by the bootstrapper.
type Settings struct {
	Cloud      CloudSettings
	Appium     AppiumSettings
	Device     DeviceSettings
	Monitor    MonitorSettings
	Screenshot ScreenshotSettings
	Log        LogSettings

	CapabilitiesFile string
}

// CloudSettings holds Testdroid account and endpoint configuration.
type CloudSettings struct {
	URL       *url.URL
	UploadURL *url.URL
	Username  string
	Password  string
	Project   string
	FileUUID  string
}

// AppiumSettings holds the WebDriver endpoint and application configuration.
type AppiumSettings struct {
	URL            *url.URL
	AppFile        string
	AutomationName string
}

// DeviceSettings controls device lookup and the busy-wait poll.
type DeviceSettings struct {
	Name         string
	WaitTime     time.Duration
	PollInterval time.Duration
	PollStrategy string // "constant" or "exponential"
}

// MonitorSettings controls the background run monitor.
type MonitorSettings struct {
	Interval              time.Duration
	ProjectSearchAttempts int // 0 means unbounded
}

// ScreenshotSettings selects where screenshots are written.
type ScreenshotSettings struct {
	Storage string // "local" or "s3"
	Dir     string
	Bucket  string
	Region  string
	GUI     bool

	// Prefix and PresignExpiry apply to S3 storage only.
	Prefix        string
	PresignExpiry time.Duration
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level  string
	Format string
}

// Load resolves every recognized key into Settings.
func Load(r *Resolver) (*Settings, error) {
	var s Settings
	var err error

	if s.Cloud.URL, err = parseURL(r, KeyCloudURL); err != nil {
		return nil, err
	}
	if s.Cloud.UploadURL, err = parseURL(r, KeyUploadURL); err != nil {
		return nil, err
	}
	if s.Appium.URL, err = parseURL(r, KeyAppiumURL); err != nil {
		return nil, err
	}

	s.Cloud.Username = r.GetString(KeyUsername)
	s.Cloud.Password = r.GetString(KeyPassword)
	s.Cloud.Project = r.GetString(KeyProject)
	s.Cloud.FileUUID = r.GetString(KeyFileUUID)

	s.Appium.AppFile = r.GetString(KeyAppFile)
	s.Appium.AutomationName = r.GetString(KeyAutomationName)

	s.Device.Name = r.GetString(KeyDevice)
	s.Device.WaitTime = r.GetDuration(KeyDeviceWaitTime)
	s.Device.PollInterval = r.GetDuration(KeyDevicePollInterval)
	s.Device.PollStrategy = r.GetString(KeyDevicePollStrategy)

	s.Monitor.Interval = r.GetDuration(KeyMonitorInterval)
	s.Monitor.ProjectSearchAttempts = r.GetInt(KeyMonitorProjectSearchAttempts)

	s.Screenshot.Storage = r.GetString(KeyScreenshotStorage)
	s.Screenshot.Dir = r.GetString(KeyScreenshotDir)
	s.Screenshot.Bucket = r.GetString(KeyScreenshotBucket)
	s.Screenshot.Region = r.GetString(KeyScreenshotRegion)
	s.Screenshot.GUI = r.GetBool(KeyGUI)
	s.Screenshot.Prefix = r.GetString(KeyScreenshotPrefix)
	s.Screenshot.PresignExpiry = r.GetDuration(KeyScreenshotPresignExpiry)

	s.Log.Level = r.GetString(KeyLogLevel)
	s.Log.Format = r.GetString(KeyLogFormat)

	s.CapabilitiesFile = r.GetString(KeyCapabilitiesFile)

	return &s, nil
}

func parseURL(r *Resolver, key string) (*url.URL, error) {
	raw := r.GetString(key)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s %q: scheme and host are required", key, raw)
	}
	return u, nil
}

// IsLocal reports whether the Appium endpoint points at this machine, in which
// case every cloud-specific step is skipped.
func (s *Settings) IsLocal() bool {
	return IsLocalHost(s.Appium.URL)
}

// IsLocalHost reports whether u names localhost or a loopback address.
func IsLocalHost(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
