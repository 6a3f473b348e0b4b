// Package capability assembles the desired-capability payload sent to the
// remote WebDriver endpoint when a session is opened.
package capability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingApplicationReference is returned when neither a local application
// file nor an uploaded file reference is available.
var ErrMissingApplicationReference = errors.New("provide either an application file or an uploaded file reference")

// Platform names understood by Appium.
const (
	PlatformIOS     = "iOS"
	PlatformAndroid = "Android"
)

// Testdroid execution targets.
const (
	TargetIOS        = "ios"
	TargetAndroid    = "android"
	TargetChrome     = "chrome"
	TargetSafari     = "safari"
	TargetSelendroid = "selendroid"
)

// Reference files preinstalled in the cloud for trying the service.
const (
	SampleAndroidFileUUID = "sample/BitbarSampleApp.apk"
	SampleIOSFileUUID     = "sample/BitbarIOSSample.ipa"
)

// Capability keys.
const (
	KeyPlatformName   = "platformName"
	KeyAutomationName = "automationName"
	KeyDeviceName     = "deviceName"
	KeyBundleID       = "bundleId"
	KeyAppPackage     = "app-package"
	KeyAppActivity    = "app-activity"
	KeyBrowserName    = "browserName"
	KeyApp            = "app"
	KeyNoSign         = "noSign"

	KeyProject       = "testdroid_project"
	KeyDescription   = "testdroid_description"
	KeyTestRun       = "testdroid_testrun"
	KeyFileUUID      = "testdroid_app"
	KeyDevice        = "testdroid_device"
	KeyTarget        = "testdroid_target"
	KeyLocale        = "testdroid_locale"
	KeyJUnitWaitTime = "testdroid_junitWaitTime"
	KeyUsername      = "testdroid_username"
	KeyPassword      = "testdroid_password"
)

// RunNameLayout formats the timestamp of generated run names.
const RunNameLayout = "2006-01-02 15:04:05"

// Set is a capability payload. Keys that do not apply are absent, never nil.
type Set map[string]interface{}

// Has reports whether key is present.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns the value of key if it is a string.
func (s Set) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a copy safe for logging.
func (s Set) Redacted() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	if out.Has(KeyPassword) {
		out[KeyPassword] = "****"
	}
	return out
}

// Options describes the session the caller wants. Zero values mean "not
// applicable" and leave the matching capability out.
type Options struct {
	PlatformName   string
	AutomationName string
	DeviceName     string

	BundleID        string // iOS
	AndroidPackage  string // Android
	AndroidActivity string // Android
	BrowserName     string // browser targets

	AppFile  string // local application binary
	FileUUID string // reference to an already uploaded binary

	// SignAppFile asks the cloud to resign the application. Defaults to true
	// via NewOptions; noSign is its negation.
	SignAppFile bool

	Project       string
	Description   string
	Target        string
	Locale        string
	JUnitWaitTime string
	TestRunName   string
	Username      string
	Password      string

	// Extra capabilities merged underneath the ones above.
	Extra map[string]interface{}
}

// NewOptions returns Options with SignAppFile enabled.
func NewOptions() Options {
	return Options{SignAppFile: true}
}

// Validate fails with ErrMissingApplicationReference when there is nothing to
// install.
func (o Options) Validate() error {
	if o.AppFile == "" && o.FileUUID == "" {
		return ErrMissingApplicationReference
	}
	return nil
}

// RunName is the default test run name: the device name and a timestamp.
func RunName(deviceName string, now time.Time) string {
	return fmt.Sprintf("%s %s", deviceName, now.Format(RunNameLayout))
}

// Build assembles the capability set. Cloud-only keys are included when cloud
// is true; the caller is expected to have filled FileUUID and TestRunName by
// then.
func Build(o Options, cloud bool) Set {
	caps := make(Set, len(o.Extra)+20)
	for k, v := range o.Extra {
		caps[k] = v
	}

	caps[KeyPlatformName] = o.PlatformName
	caps[KeyAutomationName] = o.AutomationName
	caps[KeyDeviceName] = o.DeviceName
	caps[KeyNoSign] = !o.SignAppFile

	putIfSet(caps, KeyBundleID, o.BundleID)
	putIfSet(caps, KeyAppPackage, o.AndroidPackage)
	putIfSet(caps, KeyAppActivity, o.AndroidActivity)
	putIfSet(caps, KeyBrowserName, o.BrowserName)

	if o.AppFile != "" {
		app := o.AppFile
		if abs, err := filepath.Abs(o.AppFile); err == nil {
			app = abs
		}
		caps[KeyApp] = app
	}

	if !cloud {
		return caps
	}

	caps[KeyProject] = o.Project
	caps[KeyDescription] = o.Description
	caps[KeyTestRun] = o.TestRunName
	caps[KeyFileUUID] = o.FileUUID
	caps[KeyDevice] = o.DeviceName
	caps[KeyTarget] = o.Target
	putIfSet(caps, KeyLocale, o.Locale)
	putIfSet(caps, KeyJUnitWaitTime, o.JUnitWaitTime)
	caps[KeyUsername] = o.Username
	caps[KeyPassword] = o.Password

	return caps
}

func putIfSet(caps Set, key, value string) {
	if value != "" {
		caps[key] = value
	}
}

// LoadExtras reads additional capabilities from a YAML mapping.
func LoadExtras(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided capabilities file
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities file: %w", err)
	}

	extras := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &extras); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities file %s: %w", path, err)
	}
	return extras, nil
}
