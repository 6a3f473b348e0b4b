package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
)

// Method names recorded by FakeCloud.
const (
	CallMe         = "Me"
	CallDevices    = "Devices"
	CallProjects   = "Projects"
	CallTestRuns   = "TestRuns"
	CallDeviceRuns = "DeviceRuns"
	CallUpload     = "Upload"
)

// FakeCloud is an in-memory cloud.API. List methods filter by substring of
// the query's search term. Errors set in Errs are returned by the named
// method.
type FakeCloud struct {
	mu sync.Mutex

	URL        string
	User       cloud.User
	devices    []cloud.Device
	projects   []cloud.Project
	runs       map[int64][]cloud.TestRun
	deviceRuns map[int64][]cloud.DeviceRun
	UploadRef  string
	Errs       map[string]error

	calls   []string
	queries map[string][]cloud.Query
	uploads []string

	// BeforeCall runs before every method with the number of calls made to
	// that method so far, this one included.
	BeforeCall func(method string, n int)
}

// NewFakeCloud returns an empty fake authenticated as user 1.
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		URL:        "https://cloud.example.com",
		User:       cloud.User{ID: 1, Name: "alice", Email: "alice@example.com"},
		runs:       make(map[int64][]cloud.TestRun),
		deviceRuns: make(map[int64][]cloud.DeviceRun),
		UploadRef:  "uploads/app-1.apk",
		Errs:       make(map[string]error),
		queries:    make(map[string][]cloud.Query),
	}
}

// SetDevices replaces the device inventory.
func (f *FakeCloud) SetDevices(devices ...cloud.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

// SetProjects replaces the project list.
func (f *FakeCloud) SetProjects(projects ...cloud.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = projects
}

// SetTestRuns replaces the runs of a project.
func (f *FakeCloud) SetTestRuns(projectID int64, runs ...cloud.TestRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[projectID] = runs
}

// SetDeviceRuns replaces the device runs of a run.
func (f *FakeCloud) SetDeviceRuns(runID int64, deviceRuns ...cloud.DeviceRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceRuns[runID] = deviceRuns
}

// SetError makes method fail with err. A nil err clears it.
func (f *FakeCloud) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, method)
		return
	}
	f.Errs[method] = err
}

// Calls returns every method invoked, in order.
func (f *FakeCloud) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how often method was invoked.
func (f *FakeCloud) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count(method)
}

// Queries returns the queries passed to method.
func (f *FakeCloud) Queries(method string) []cloud.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cloud.Query(nil), f.queries[method]...)
}

// Uploads returns the paths passed to Upload.
func (f *FakeCloud) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *FakeCloud) count(method string) int {
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// record notes the call, runs BeforeCall outside the lock and returns the
// configured error for method.
func (f *FakeCloud) record(method string, q *cloud.Query) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	if q != nil {
		f.queries[method] = append(f.queries[method], *q)
	}
	n := f.count(method)
	hook := f.BeforeCall
	f.mu.Unlock()

	if hook != nil {
		hook(method, n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errs[method]
}

func (f *FakeCloud) Me(ctx context.Context) (*cloud.User, error) {
	if err := f.record(CallMe, nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.User
	return &u, nil
}

func (f *FakeCloud) Devices(ctx context.Context, q cloud.Query) ([]cloud.Device, error) {
	if err := f.record(CallDevices, &q); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cloud.Device
	for _, d := range f.devices {
		if strings.Contains(d.DisplayName, q.Search) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *FakeCloud) Projects(ctx context.Context, q cloud.Query) ([]cloud.Project, error) {
	if err := f.record(CallProjects, &q); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cloud.Project
	for _, p := range f.projects {
		if strings.Contains(p.Name, q.Search) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeCloud) TestRuns(ctx context.Context, projectID int64, q cloud.Query) ([]cloud.TestRun, error) {
	if err := f.record(CallTestRuns, &q); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cloud.TestRun
	for _, r := range f.runs[projectID] {
		if strings.Contains(r.DisplayName, q.Search) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeCloud) DeviceRuns(ctx context.Context, projectID, runID int64) ([]cloud.DeviceRun, error) {
	if err := f.record(CallDeviceRuns, nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cloud.DeviceRun(nil), f.deviceRuns[runID]...), nil
}

func (f *FakeCloud) Upload(ctx context.Context, appFile string) (string, error) {
	if err := f.record(CallUpload, nil); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, appFile)
	return f.UploadRef, nil
}

func (f *FakeCloud) ResultDataURL(userID, projectID, runID, deviceRunID int64) string {
	return fmt.Sprintf("%s/api/v2/users/%d/projects/%d/runs/%d/device-runs/%d/result-data.zip",
		f.URL, userID, projectID, runID, deviceRunID)
}

var _ cloud.API = (*FakeCloud)(nil)
