// Package device finds a cloud device by name and waits, within a budget, for
// it to become free.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/hairizuan-noorazman/testdroid-appium/internal/clock"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
)

var (
	// ErrDeviceNotFound is returned when the inventory has no device matching
	// the requested name. It is never retried.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceBusyTimeout is returned when the matching device is still
	// locked once the wait budget is spent.
	ErrDeviceBusyTimeout = errors.New("device busy")
)

// DefaultPollInterval is the wait between inventory checks.
const DefaultPollInterval = 10 * time.Second

const inventoryPageSize = 10

// Inventory is the device listing of the cloud.
type Inventory interface {
	Devices(ctx context.Context, q cloud.Query) ([]cloud.Device, error)
}

// Acquirer looks up devices and polls while they are locked.
type Acquirer struct {
	inventory  Inventory
	sleeper    clock.Sleeper
	newBackOff func() backoff.BackOff
	logger     logger.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithSleeper replaces the wall-clock sleep between polls.
func WithSleeper(s clock.Sleeper) Option {
	return func(a *Acquirer) { a.sleeper = s }
}

// WithBackOff sets the strategy producing poll intervals. A fresh BackOff is
// requested for every Acquire call.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(a *Acquirer) { a.newBackOff = newBackOff }
}

// NewAcquirer creates an Acquirer polling every DefaultPollInterval.
func NewAcquirer(inventory Inventory, log logger.Logger, opts ...Option) *Acquirer {
	a := &Acquirer{
		inventory: inventory,
		sleeper:   clock.Real{},
		newBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(DefaultPollInterval)
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewBackOff builds the poll strategy named by strategy ("constant" or
// "exponential") starting at interval.
func NewBackOff(strategy string, interval time.Duration) (func() backoff.BackOff, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	switch strategy {
	case "", "constant":
		return func() backoff.BackOff {
			return backoff.NewConstantBackOff(interval)
		}, nil
	case "exponential":
		return func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = interval
			b.RandomizationFactor = 0
			b.MaxInterval = 8 * interval
			// The wait budget bounds the loop, not the backoff.
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		}, nil
	default:
		return nil, fmt.Errorf("unknown device poll strategy %q", strategy)
	}
}

// Acquire returns the first inventory match for namePattern once it is
// unlocked. While it is locked and waitBudget has time left, Acquire sleeps
// for the next poll interval (capped at the remaining budget) and checks
// again. A zero budget never sleeps.
func (a *Acquirer) Acquire(ctx context.Context, namePattern string, waitBudget time.Duration) (*cloud.Device, error) {
	log := a.logger.WithField("device", namePattern)
	query := cloud.Query{Search: namePattern, Limit: inventoryPageSize}

	b := a.newBackOff()
	remaining := waitBudget

	for {
		devices, err := a.inventory.Devices(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query devices for %q: %w", namePattern, err)
		}
		if len(devices) == 0 {
			log.Error(ctx, "unable to find device", nil)
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, namePattern)
		}

		device := devices[0]
		if !device.Locked {
			log.Info(ctx, "found device", map[string]interface{}{
				"device_id":   device.ID,
				"device_name": device.DisplayName,
			})
			return &device, nil
		}

		interval := b.NextBackOff()
		if remaining <= 0 || interval == backoff.Stop {
			log.Error(ctx, "every matching device is busy", map[string]interface{}{
				"wait_budget": waitBudget.String(),
			})
			return nil, fmt.Errorf("%w: every %q is in use after waiting %s", ErrDeviceBusyTimeout, namePattern, waitBudget)
		}
		if interval > remaining {
			interval = remaining
		}

		log.Info(ctx, "all devices are in use, waiting", map[string]interface{}{
			"remaining": remaining.String(),
			"interval":  interval.String(),
		})
		if err := a.sleeper.Sleep(ctx, interval); err != nil {
			return nil, err
		}
		remaining -= interval
	}
}
