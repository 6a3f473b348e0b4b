package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/hairizuan-noorazman/testdroid-appium/internal/clock"
	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInventory reports the first device locked until the simulated clock has
// advanced by unlockAfter. A negative unlockAfter never unlocks.
type fakeInventory struct {
	mu          sync.Mutex
	clock       *clock.Fake
	devices     []cloud.Device
	unlockAfter time.Duration
	err         error
	queries     []cloud.Query
}

func (f *fakeInventory) Devices(ctx context.Context, q cloud.Query) ([]cloud.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	out := make([]cloud.Device, len(f.devices))
	copy(out, f.devices)
	if len(out) > 0 {
		out[0].Locked = f.unlockAfter < 0 || f.clock.Elapsed() < f.unlockAfter
	}
	return out, nil
}

func newFixture(devices []cloud.Device, unlockAfter time.Duration) (*Acquirer, *fakeInventory, *clock.Fake) {
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	inv := &fakeInventory{clock: fc, devices: devices, unlockAfter: unlockAfter}
	return NewAcquirer(inv, logger.NewTestLogger(), WithSleeper(fc)), inv, fc
}

var pixel = []cloud.Device{
	{ID: 1, DisplayName: "Google Pixel5"},
	{ID: 2, DisplayName: "Google Pixel5 (2)"},
}

func TestAcquire_AvailableImmediately(t *testing.T) {
	a, inv, fc := newFixture(pixel, 0)

	d, err := a.Acquire(context.Background(), "Pixel5", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ID)
	assert.Empty(t, fc.Sleeps())
	require.Len(t, inv.queries, 1)
	assert.Equal(t, "Pixel5", inv.queries[0].Search)
	assert.Equal(t, 0, inv.queries[0].Offset)
}

func TestAcquire_NotFoundFailsWithoutRetry(t *testing.T) {
	a, inv, fc := newFixture(nil, 0)

	_, err := a.Acquire(context.Background(), "Nokia 3310", time.Hour)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Len(t, inv.queries, 1)
	assert.Empty(t, fc.Sleeps())
}

func TestAcquire_ZeroBudgetFailsFast(t *testing.T) {
	a, inv, fc := newFixture(pixel, -1)

	_, err := a.Acquire(context.Background(), "Pixel5", 0)
	assert.ErrorIs(t, err, ErrDeviceBusyTimeout)
	assert.Empty(t, fc.Sleeps(), "no sleep with a zero budget")
	assert.Len(t, inv.queries, 1)
}

func TestAcquire_UnlocksJustInsideBudget(t *testing.T) {
	tests := []struct {
		name   string
		budget time.Duration
	}{
		{name: "budget multiple of interval", budget: 30 * time.Second},
		{name: "budget not a multiple of interval", budget: 25 * time.Second},
		{name: "one hour", budget: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, fc := newFixture(pixel, tt.budget-time.Second)

			d, err := a.Acquire(context.Background(), "Pixel5", tt.budget)
			require.NoError(t, err)
			assert.Equal(t, int64(1), d.ID)
			assert.LessOrEqual(t, fc.Elapsed(), tt.budget)
		})
	}
}

func TestAcquire_BusyTimeout(t *testing.T) {
	a, inv, fc := newFixture(pixel, -1)

	_, err := a.Acquire(context.Background(), "Pixel5", 25*time.Second)
	assert.ErrorIs(t, err, ErrDeviceBusyTimeout)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 5 * time.Second}, fc.Sleeps())
	assert.Equal(t, 25*time.Second, fc.Elapsed())
	assert.Len(t, inv.queries, 4)
}

func TestAcquire_InventoryError(t *testing.T) {
	a, inv, _ := newFixture(pixel, 0)
	inv.err = cloud.ErrAPIQueryFailed

	_, err := a.Acquire(context.Background(), "Pixel5", time.Minute)
	assert.ErrorIs(t, err, cloud.ErrAPIQueryFailed)
}

func TestAcquire_CancelledWhileWaiting(t *testing.T) {
	a, _, fc := newFixture(pixel, -1)
	ctx, cancel := context.WithCancel(context.Background())
	fc.OnSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	_, err := a.Acquire(ctx, "Pixel5", time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, fc.Sleeps(), 2)
}

func TestAcquire_ExponentialStrategy(t *testing.T) {
	newBackOff, err := NewBackOff("exponential", 10*time.Second)
	require.NoError(t, err)

	fc := clock.NewFake(time.Now())
	inv := &fakeInventory{clock: fc, devices: pixel, unlockAfter: -1}
	a := NewAcquirer(inv, logger.NewTestLogger(), WithSleeper(fc), WithBackOff(newBackOff))

	_, err = a.Acquire(context.Background(), "Pixel5", 75*time.Second)
	assert.ErrorIs(t, err, ErrDeviceBusyTimeout)
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second, 22500 * time.Millisecond, 27500 * time.Millisecond}, fc.Sleeps())
}

func TestAcquire_BackOffStop(t *testing.T) {
	fc := clock.NewFake(time.Now())
	inv := &fakeInventory{clock: fc, devices: pixel, unlockAfter: -1}
	a := NewAcquirer(inv, logger.NewTestLogger(), WithSleeper(fc), WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 2)
	}))

	_, err := a.Acquire(context.Background(), "Pixel5", time.Hour)
	assert.ErrorIs(t, err, ErrDeviceBusyTimeout)
	assert.Len(t, fc.Sleeps(), 2)
}

func TestNewBackOff_UnknownStrategy(t *testing.T) {
	_, err := NewBackOff("fibonacci", time.Second)
	assert.Error(t, err)
}
