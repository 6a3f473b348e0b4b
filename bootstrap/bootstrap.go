// Package bootstrap turns resolved configuration into a live Appium session.
//
// Against a local Appium server only the capabilities are assembled and the
// session opened. Against Testdroid the bootstrapper additionally waits for a
// free device, uploads the application when no file reference is given, names
// the test run and follows it with a background monitor that lives until the
// session is quit.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/hairizuan-noorazman/testdroid-appium/artifact"
	"github.com/hairizuan-noorazman/testdroid-appium/capability"
	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/hairizuan-noorazman/testdroid-appium/config"
	"github.com/hairizuan-noorazman/testdroid-appium/device"
	"github.com/hairizuan-noorazman/testdroid-appium/internal/clock"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/hairizuan-noorazman/testdroid-appium/monitor"
	"github.com/hairizuan-noorazman/testdroid-appium/screenshot"
	"github.com/hairizuan-noorazman/testdroid-appium/webdriver"
)

// Bootstrapper creates sessions from one set of settings. A cloud client is
// created on first use for each account and shared by every session that
// authenticates as it.
type Bootstrapper struct {
	settings   *config.Settings
	logger     logger.Logger
	driver     *webdriver.Client
	sleeper    clock.Sleeper
	now        func() time.Time
	newBackOff func() backoff.BackOff
	viewer     screenshot.Viewer

	cloudMu      sync.Mutex
	cloudAPI     cloud.API
	cloudClients map[credentials]*cloud.Client

	storeOnce sync.Once
	store     artifact.Store
	storeErr  error
}

type credentials struct {
	username string
	password string
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithCloudAPI uses api for every account instead of clients built from the
// settings.
func WithCloudAPI(api cloud.API) Option {
	return func(b *Bootstrapper) { b.cloudAPI = api }
}

// WithWebDriver uses c to open sessions instead of a client for the configured
// Appium URL.
func WithWebDriver(c *webdriver.Client) Option {
	return func(b *Bootstrapper) { b.driver = c }
}

// WithSleeper replaces the wall-clock sleep of the device wait and the run
// monitor.
func WithSleeper(s clock.Sleeper) Option {
	return func(b *Bootstrapper) { b.sleeper = s }
}

// WithClock sets the time source used for default run names.
func WithClock(now func() time.Time) Option {
	return func(b *Bootstrapper) { b.now = now }
}

// WithStore sets where screenshots are saved.
func WithStore(s artifact.Store) Option {
	return func(b *Bootstrapper) {
		b.storeOnce.Do(func() { b.store = s })
	}
}

// WithViewer sets how saved screenshots are displayed.
func WithViewer(v screenshot.Viewer) Option {
	return func(b *Bootstrapper) { b.viewer = v }
}

// New creates a Bootstrapper. It fails only on settings that can never work,
// such as a missing Appium URL or an unknown device poll strategy.
func New(settings *config.Settings, log logger.Logger, opts ...Option) (*Bootstrapper, error) {
	if settings.Appium.URL == nil {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigurationMissing, config.KeyAppiumURL)
	}
	newBackOff, err := device.NewBackOff(settings.Device.PollStrategy, settings.Device.PollInterval)
	if err != nil {
		return nil, err
	}

	b := &Bootstrapper{
		settings:     settings,
		logger:       log,
		sleeper:      clock.Real{},
		now:          time.Now,
		newBackOff:   newBackOff,
		cloudClients: make(map[credentials]*cloud.Client),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.driver == nil {
		b.driver = webdriver.NewClient(settings.Appium.URL.String(), log)
	}
	if b.viewer == nil {
		if settings.Screenshot.GUI {
			b.viewer = screenshot.NewCommandViewer()
		} else {
			b.viewer = screenshot.NoopViewer{}
		}
	}
	return b, nil
}

// DefaultOptions fills capability options from the settings, including extra
// capabilities from the configured YAML file.
func DefaultOptions(s *config.Settings) (capability.Options, error) {
	o := capability.NewOptions()
	o.AutomationName = s.Appium.AutomationName
	o.AppFile = s.Appium.AppFile
	o.FileUUID = s.Cloud.FileUUID
	o.DeviceName = s.Device.Name
	o.Project = s.Cloud.Project
	o.Username = s.Cloud.Username
	o.Password = s.Cloud.Password

	if s.CapabilitiesFile != "" {
		extra, err := capability.LoadExtras(s.CapabilitiesFile)
		if err != nil {
			return o, err
		}
		o.Extra = extra
	}
	return o, nil
}

// Cloud returns the shared cloud client for the account in the settings,
// creating it on first use.
func (b *Bootstrapper) Cloud() (cloud.API, error) {
	return b.cloudFor(b.settings.Cloud.Username, b.settings.Cloud.Password)
}

func (b *Bootstrapper) cloudFor(username, password string) (cloud.API, error) {
	b.cloudMu.Lock()
	defer b.cloudMu.Unlock()

	if b.cloudAPI != nil {
		return b.cloudAPI, nil
	}

	key := credentials{username: username, password: password}
	if c, ok := b.cloudClients[key]; ok {
		return c, nil
	}

	cfg := cloud.Config{
		Username: username,
		Password: password,
	}
	if b.settings.Cloud.URL != nil {
		cfg.CloudURL = b.settings.Cloud.URL.String()
	}
	if b.settings.Cloud.UploadURL != nil {
		cfg.UploadURL = b.settings.Cloud.UploadURL.String()
	}
	c, err := cloud.NewClient(cfg, b.logger)
	if err != nil {
		return nil, err
	}
	b.cloudClients[key] = c
	return c, nil
}

// ArtifactStore returns the store screenshots are saved to, creating it from
// the settings on first use.
func (b *Bootstrapper) ArtifactStore(ctx context.Context) (artifact.Store, error) {
	b.storeOnce.Do(func() {
		b.store, b.storeErr = artifact.New(ctx, storeOptions(b.settings.Screenshot))
	})
	return b.store, b.storeErr
}

func storeOptions(s config.ScreenshotSettings) artifact.Options {
	return artifact.Options{
		Kind:          s.Storage,
		Dir:           s.Dir,
		Bucket:        s.Bucket,
		Region:        s.Region,
		Prefix:        s.Prefix,
		PresignExpiry: s.PresignExpiry,
	}
}

// Start validates opts and opens a session. For cloud endpoints it acquires
// the device, uploads the application when opts has no file reference and
// starts the run monitor once the session is live.
func (b *Bootstrapper) Start(ctx context.Context, opts capability.Options) (*Session, error) {
	attemptID := uuid.New().String()
	log := b.logger.WithField("attempt_id", attemptID)

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sess := &Session{
		AttemptID: attemptID,
		store:     b.ArtifactStore,
		viewer:    b.viewer,
		logger:    log,
	}

	if b.settings.IsLocal() {
		log.Info(ctx, "initializing appium against local server", map[string]interface{}{
			"server_url": b.settings.Appium.URL.String(),
		})
		sess.Capabilities = capability.Build(opts, false)
		driver, err := b.driver.NewSession(ctx, sess.Capabilities)
		if err != nil {
			return nil, err
		}
		sess.Driver = driver
		return sess, nil
	}

	if err := b.requireCloudOptions(opts); err != nil {
		return nil, err
	}

	log.Info(ctx, "initializing appium against testdroid cloud", map[string]interface{}{
		"cloud_url": b.settings.Cloud.URL.String(),
		"username":  opts.Username,
	})

	// The account carried in the capabilities is the one the API calls use.
	api, err := b.cloudFor(opts.Username, opts.Password)
	if err != nil {
		return nil, err
	}

	me, err := api.Me(ctx)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "connected to testdroid cloud", map[string]interface{}{
		"account": me.Name,
		"email":   me.Email,
	})

	acquirer := device.NewAcquirer(api, log,
		device.WithSleeper(b.sleeper),
		device.WithBackOff(b.newBackOff))
	dev, err := acquirer.Acquire(ctx, opts.DeviceName, b.settings.Device.WaitTime)
	if err != nil {
		return nil, err
	}
	sess.Device = dev

	if opts.FileUUID == "" {
		ref, err := api.Upload(ctx, opts.AppFile)
		if err != nil {
			return nil, err
		}
		opts.FileUUID = ref
	} else {
		log.Info(ctx, "file reference given, skipping application upload", map[string]interface{}{
			"file_uuid": opts.FileUUID,
		})
	}

	if opts.TestRunName == "" {
		opts.TestRunName = capability.RunName(opts.DeviceName, b.now())
	}
	sess.RunName = opts.TestRunName
	log.Info(ctx, "test run", map[string]interface{}{
		"project":  opts.Project,
		"test_run": opts.TestRunName,
	})

	sess.Capabilities = capability.Build(opts, true)
	driver, err := b.driver.NewSession(ctx, sess.Capabilities)
	if err != nil {
		return nil, err
	}
	sess.Driver = driver

	sess.Monitor = monitor.New(api, monitor.Config{
		ProjectName:              opts.Project,
		RunName:                  opts.TestRunName,
		Interval:                 b.settings.Monitor.Interval,
		MaxProjectSearchAttempts: b.settings.Monitor.ProjectSearchAttempts,
	}, log, monitor.WithSleeper(b.sleeper))
	// The monitor lives until Quit, not until ctx ends.
	sess.Monitor.Start(context.WithoutCancel(ctx))

	log.Info(ctx, "appium connected", map[string]interface{}{
		"session_id": driver.ID(),
	})
	return sess, nil
}

func (b *Bootstrapper) requireCloudOptions(o capability.Options) error {
	var cloudURL string
	if b.settings.Cloud.URL != nil {
		cloudURL = b.settings.Cloud.URL.String()
	}

	var missing []string
	for _, f := range []struct{ key, value string }{
		{config.KeyCloudURL, cloudURL},
		{config.KeyUsername, o.Username},
		{config.KeyPassword, o.Password},
		{config.KeyProject, o.Project},
		{config.KeyDevice, o.DeviceName},
	} {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", config.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}
