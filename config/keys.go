package config

import "strings"

// DefaultPropertiesFile is read from the working directory when no other path
// is given.
const DefaultPropertiesFile = "testdroid.properties"

// Recognized configuration keys. The same names are used in the properties
// file and, verbatim or in upper-snake form, in the environment.
const (
	KeyCloudURL       = "testdroid.cloudUrl"
	KeyAppiumURL      = "testdroid.appiumUrl"
	KeyUploadURL      = "testdroid.appiumUploadUrl"
	KeyUsername       = "testdroid.username"
	KeyPassword       = "testdroid.password"
	KeyProject        = "testdroid.project"
	KeyDevice         = "testdroid.device"
	KeyFileUUID       = "testdroid.uuid"
	KeyGUI            = "testdroid.gui"
	KeyAppFile        = "appium.appFile"
	KeyAutomationName = "appium.automationName"

	KeyDeviceWaitTime     = "testdroid.deviceWaitTime"
	KeyDevicePollInterval = "testdroid.devicePollInterval"
	KeyDevicePollStrategy = "testdroid.devicePollStrategy"

	KeyMonitorInterval              = "testdroid.monitorInterval"
	KeyMonitorProjectSearchAttempts = "testdroid.monitorProjectSearchAttempts"

	KeyCapabilitiesFile        = "testdroid.capabilitiesFile"
	KeyScreenshotStorage       = "testdroid.screenshotStorage"
	KeyScreenshotDir           = "testdroid.screenshotDir"
	KeyScreenshotBucket        = "testdroid.screenshotBucket"
	KeyScreenshotRegion        = "testdroid.screenshotRegion"
	KeyScreenshotPrefix        = "testdroid.screenshotPrefix"
	KeyScreenshotPresignExpiry = "testdroid.screenshotPresignExpiry"
	KeyLogLevel                = "testdroid.logLevel"
	KeyLogFormat               = "testdroid.logFormat"
)

// Built-in defaults.
const (
	DefaultCloudURL  = "https://cloud.testdroid.com"
	DefaultAppiumURL = "http://appium.testdroid.com/wd/hub"
	DefaultUploadURL = "http://appium.testdroid.com/upload"
)

// Keys lists every recognized key in a stable order.
var Keys = []string{
	KeyCloudURL,
	KeyAppiumURL,
	KeyUploadURL,
	KeyUsername,
	KeyPassword,
	KeyProject,
	KeyDevice,
	KeyFileUUID,
	KeyGUI,
	KeyAppFile,
	KeyAutomationName,
	KeyDeviceWaitTime,
	KeyDevicePollInterval,
	KeyDevicePollStrategy,
	KeyMonitorInterval,
	KeyMonitorProjectSearchAttempts,
	KeyCapabilitiesFile,
	KeyScreenshotStorage,
	KeyScreenshotDir,
	KeyScreenshotBucket,
	KeyScreenshotRegion,
	KeyScreenshotPrefix,
	KeyScreenshotPresignExpiry,
	KeyLogLevel,
	KeyLogFormat,
}

var secretKeys = map[string]bool{
	KeyPassword: true,
}

// IsSecret reports whether key holds a credential that must not be printed.
func IsSecret(key string) bool {
	return secretKeys[key]
}

// EnvName returns the upper-snake environment name for key, e.g.
// testdroid.cloudUrl -> TESTDROID_CLOUDURL.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
