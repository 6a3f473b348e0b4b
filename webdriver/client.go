// Package webdriver opens and drives remote Appium/WebDriver sessions. It
// speaks enough of both the legacy JSON wire protocol and W3C WebDriver for the
// Testdroid hub and a local Appium server.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/testdroid-appium/logger"
)

// W3C WebDriver element identifier key
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// ErrNoSession is returned when a command is sent on a session that was quit.
var ErrNoSession = errors.New("webdriver: no active session")

// Error is a WebDriver error payload.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("webdriver (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("webdriver (%d) %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client creates sessions on one WebDriver endpoint.
type Client struct {
	serverURL  string
	httpClient *http.Client
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client for serverURL, e.g. http://localhost:4723/wd/hub.
func NewClient(serverURL string, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		// Device allocation and app install happen inside session creation.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession opens a session with caps. The capabilities are sent both as
// legacy desiredCapabilities and as W3C alwaysMatch.
func (c *Client) NewSession(ctx context.Context, caps map[string]interface{}) (*Session, error) {
	body := map[string]interface{}{
		"desiredCapabilities": caps,
		"capabilities": map[string]interface{}{
			"alwaysMatch": caps,
		},
	}

	resp, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id, _ := resp["sessionId"].(string)
	granted, _ := resp["value"].(map[string]interface{})
	if id == "" && granted != nil {
		id, _ = granted["sessionId"].(string)
		if w3c, ok := granted["capabilities"].(map[string]interface{}); ok {
			granted = w3c
		}
	}
	if id == "" {
		return nil, fmt.Errorf("failed to create session: no session ID in response")
	}

	c.logger.Info(ctx, "webdriver session created", map[string]interface{}{
		"session_id": id,
		"server":     c.serverURL,
	})

	return &Session{
		client:       c,
		id:           id,
		capabilities: granted,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := map[string]interface{}{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			if resp.StatusCode >= 400 {
				return nil, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if wdErr := responseError(resp.StatusCode, result); wdErr != nil {
		return nil, wdErr
	}
	return result, nil
}

// responseError extracts a W3C error ({"value": {"error", "message"}}) or a
// JSON wire one (non-zero "status").
func responseError(status int, result map[string]interface{}) *Error {
	if v, ok := result["value"].(map[string]interface{}); ok {
		if code, ok := v["error"].(string); ok && code != "" {
			msg, _ := v["message"].(string)
			return &Error{StatusCode: status, Code: code, Message: msg}
		}
	}
	if s, ok := result["status"].(float64); ok && s != 0 {
		msg := ""
		if v, ok := result["value"].(map[string]interface{}); ok {
			msg, _ = v["message"].(string)
		}
		return &Error{StatusCode: status, Code: fmt.Sprintf("status %d", int(s)), Message: msg}
	}
	if status >= 400 {
		return &Error{StatusCode: status, Message: http.StatusText(status)}
	}
	return nil
}
