// Package cloud is a small client for the parts of the Testdroid REST API the
// session bootstrapper needs: the device inventory, the caller's projects,
// test runs and device runs, and the Appium application upload endpoint.
package cloud

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAPIQueryFailed wraps any failed inventory, project or run query.
	ErrAPIQueryFailed = errors.New("cloud API query failed")

	// ErrUploadFailed wraps any failure of the application upload.
	ErrUploadFailed = errors.New("application upload failed")
)

// APIError is a non-2xx answer from the cloud.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// User is the authenticated account.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Device is one entry of the device inventory.
type Device struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Locked      bool   `json:"locked"`
	Online      bool   `json:"online"`
}

// Project is a Testdroid project owned by the caller.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TestRun is one run inside a project.
type TestRun struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
}

// DeviceRun is the execution of a test run on a single device.
type DeviceRun struct {
	ID     int64   `json:"id"`
	State  string  `json:"state"`
	Device *Device `json:"device"`
}

// DeviceName returns the display name of the device the run executed on.
func (d DeviceRun) DeviceName() string {
	if d.Device == nil {
		return ""
	}
	return d.Device.DisplayName
}

// Query filters and paginates list endpoints.
type Query struct {
	Search string
	Offset int
	Limit  int
}

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// API is the subset of the cloud used by device acquisition, the upload step
// and the run monitor. *Client implements it; tests substitute fakes.
type API interface {
	Me(ctx context.Context) (*User, error)
	Devices(ctx context.Context, q Query) ([]Device, error)
	Projects(ctx context.Context, q Query) ([]Project, error)
	TestRuns(ctx context.Context, projectID int64, q Query) ([]TestRun, error)
	DeviceRuns(ctx context.Context, projectID, runID int64) ([]DeviceRun, error)
	Upload(ctx context.Context, appFile string) (string, error)
	ResultDataURL(userID, projectID, runID, deviceRunID int64) string
}
