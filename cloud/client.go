package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/testdroid-appium/logger"
	"golang.org/x/oauth2"
)

const (
	defaultLimit = 10

	// oauthClientID is the public client id of the Testdroid API.
	oauthClientID = "testdroid-cloud-api"
)

// Config holds what the client needs to reach the cloud.
type Config struct {
	CloudURL  string
	UploadURL string
	Username  string
	Password  string

	// HTTPClient is the transport for both API and upload calls. Defaults to a
	// client with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the Testdroid REST API. One Client is created per
// bootstrapper and shared by every component that needs the cloud.
type Client struct {
	baseURL   string
	uploadURL string
	username  string
	password  string
	api       *http.Client
	uploader  *http.Client
	logger    logger.Logger
}

// NewClient creates a client. No network call happens until the first
// request; the OAuth token is fetched then and renewed on expiry.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.CloudURL == "" {
		return nil, fmt.Errorf("cloud: cloud URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("cloud: username and password are required")
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.CloudURL, "/")

	oauthCfg := &oauth2.Config{
		ClientID: oauthClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  baseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	source := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      oauthCtx,
		config:   oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	})

	api := oauth2.NewClient(oauthCtx, source)
	api.Timeout = base.Timeout

	return &Client{
		baseURL:   baseURL,
		uploadURL: cfg.UploadURL,
		username:  cfg.Username,
		password:  cfg.Password,
		api:       api,
		uploader:  base,
		logger:    log,
	}, nil
}

// passwordSource logs in with the resource-owner password grant each time the
// cached token expires.
type passwordSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	return s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

func (c *Client) get(ctx context.Context, path string, q *Query, out interface{}) error {
	u := c.baseURL + "/api/v2" + path
	if q != nil {
		u += "?" + q.values().Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIQueryFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug(ctx, "cloud request", map[string]interface{}{
		"method": req.Method,
		"url":    u,
	})

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrAPIQueryFailed, req.Method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrAPIQueryFailed, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s: %w", ErrAPIQueryFailed, path, newAPIError(resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrAPIQueryFailed, path, err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			return &APIError{StatusCode: status, Message: errResp.Message}
		}
		if errResp.Error != "" {
			return &APIError{StatusCode: status, Message: errResp.Error}
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func (q *Query) values() url.Values {
	v := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	v.Set("offset", strconv.Itoa(q.Offset))
	v.Set("limit", strconv.Itoa(limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Devices queries the device inventory.
func (c *Client) Devices(ctx context.Context, q Query) ([]Device, error) {
	var resp listResponse[Device]
	if err := c.get(ctx, "/devices", &q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Projects lists the caller's projects.
func (c *Client) Projects(ctx context.Context, q Query) ([]Project, error) {
	var resp listResponse[Project]
	if err := c.get(ctx, "/me/projects", &q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// TestRuns lists the runs of a project.
func (c *Client) TestRuns(ctx context.Context, projectID int64, q Query) ([]TestRun, error) {
	var resp listResponse[TestRun]
	path := fmt.Sprintf("/me/projects/%d/runs", projectID)
	if err := c.get(ctx, path, &q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeviceRuns lists the per-device executions of a run.
func (c *Client) DeviceRuns(ctx context.Context, projectID, runID int64) ([]DeviceRun, error) {
	var resp listResponse[DeviceRun]
	path := fmt.Sprintf("/me/projects/%d/runs/%d/device-runs", projectID, runID)
	if err := c.get(ctx, path, &Query{}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ResultDataURL is where the result archive of a device run can be fetched.
func (c *Client) ResultDataURL(userID, projectID, runID, deviceRunID int64) string {
	return fmt.Sprintf("%s/api/v2/users/%d/projects/%d/runs/%d/device-runs/%d/result-data.zip",
		c.baseURL, userID, projectID, runID, deviceRunID)
}
