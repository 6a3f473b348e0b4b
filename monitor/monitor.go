// Package monitor follows a cloud test run in the background and logs its
// progress together with the result archive location of every device run.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/hairizuan-noorazman/testdroid-appium/internal/clock"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
)

// DefaultInterval is the pause between two polling cycles.
const DefaultInterval = 30 * time.Second

const searchPageSize = 10

// State is the position of the monitor in its lifecycle.
type State int

const (
	SearchingProject State = iota
	SearchingRun
	PollingRun
	Stopped
)

func (s State) String() string {
	switch s {
	case SearchingProject:
		return "searching-project"
	case SearchingRun:
		return "searching-run"
	case PollingRun:
		return "polling-run"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config names the run to follow.
type Config struct {
	ProjectName string
	RunName     string
	Interval    time.Duration

	// MaxProjectSearchAttempts bounds the project lookup. Zero means no bound.
	MaxProjectSearchAttempts int
}

// Monitor polls one test run until it is stopped or a query fails.
type Monitor struct {
	api     cloud.API
	cfg     Config
	sleeper clock.Sleeper
	logger  logger.Logger

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSleeper replaces the wall-clock sleep between cycles.
func WithSleeper(s clock.Sleeper) Option {
	return func(m *Monitor) { m.sleeper = s }
}

// New creates a monitor. It does nothing until Start is called.
func New(api cloud.API, cfg Config, log logger.Logger, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Monitor{
		api:     api,
		cfg:     cfg,
		sleeper: clock.Real{},
		logger: log.WithFields(map[string]interface{}{
			"component": "run-monitor",
			"test_run":  cfg.RunName,
		}),
		state: SearchingProject,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the polling goroutine. Calling Start more than once has no
// effect.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop requests the monitor to exit. The request is observed at the next
// sleep; a query already in flight completes first.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Wait blocks until the goroutine started by Start has exited.
func (m *Monitor) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that stopped the monitor, or nil when it was stopped
// by cancellation or is still running.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	err := m.poll(ctx)

	m.mu.Lock()
	m.state = Stopped
	if ctx.Err() == nil {
		m.err = err
	}
	m.mu.Unlock()

	if ctx.Err() != nil {
		m.logger.Info(ctx, "interrupted, stopping", nil)
		return
	}
	m.logger.Error(ctx, "failed API query, aborting", map[string]interface{}{
		"error": err.Error(),
	})
}

func (m *Monitor) poll(ctx context.Context) error {
	// Queries are not cancelled mid-flight.
	queryCtx := context.WithoutCancel(ctx)

	me, err := m.api.Me(queryCtx)
	if err != nil {
		return err
	}

	var project *cloud.Project
	attempts := 0
	for {
		if project == nil {
			attempts++
			project, err = m.findProject(queryCtx)
			if err != nil {
				return err
			}
			if project != nil {
				m.logger.Info(ctx, "found project", map[string]interface{}{
					"project_id":   project.ID,
					"project_name": project.Name,
				})
				m.setState(SearchingRun)
			} else if m.cfg.MaxProjectSearchAttempts > 0 && attempts >= m.cfg.MaxProjectSearchAttempts {
				return fmt.Errorf("%w: project %q not found after %d attempts",
					cloud.ErrAPIQueryFailed, m.cfg.ProjectName, attempts)
			}
		}

		if project != nil {
			if err := m.report(queryCtx, me, project); err != nil {
				return err
			}
		}

		if err := m.sleeper.Sleep(ctx, m.cfg.Interval); err != nil {
			return err
		}
	}
}

func (m *Monitor) findProject(ctx context.Context) (*cloud.Project, error) {
	projects, err := m.api.Projects(ctx, cloud.Query{Search: m.cfg.ProjectName, Limit: searchPageSize})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return &projects[0], nil
}

// report logs the run state and device-run result locations once the run
// exists.
func (m *Monitor) report(ctx context.Context, me *cloud.User, project *cloud.Project) error {
	runs, err := m.api.TestRuns(ctx, project.ID, cloud.Query{Search: m.cfg.RunName, Limit: searchPageSize})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	run := runs[0]
	m.setState(PollingRun)

	m.logger.Info(ctx, "test run status", map[string]interface{}{
		"run_id":   run.ID,
		"run_name": run.DisplayName,
		"state":    run.State,
	})

	deviceRuns, err := m.api.DeviceRuns(ctx, project.ID, run.ID)
	if err != nil {
		return err
	}
	for _, dr := range deviceRuns {
		m.logger.Info(ctx, "device run", map[string]interface{}{
			"device":        dr.DeviceName(),
			"device_run_id": dr.ID,
			"state":         dr.State,
			"result_url":    m.api.ResultDataURL(me.ID, project.ID, run.ID, dr.ID),
		})
	}
	return nil
}
