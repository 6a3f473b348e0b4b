package webdriver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Locator strategies.
const (
	ByXPath           = "xpath"
	ByID              = "id"
	ByName            = "name"
	ByAccessibilityID = "accessibility id"
	ByClassName       = "class name"
)

// Session is an open remote session.
type Session struct {
	client       *Client
	id           string
	capabilities map[string]interface{}

	mu     sync.Mutex
	closed bool
}

// ID returns the remote session id.
func (s *Session) ID() string {
	return s.id
}

// Capabilities returns what the server granted.
func (s *Session) Capabilities() map[string]interface{} {
	return s.capabilities
}

func (s *Session) path(suffix string) string {
	return "/session/" + s.id + suffix
}

func (s *Session) cmd(ctx context.Context, method, suffix string, body interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrNoSession
	}
	return s.client.do(ctx, method, s.path(suffix), body)
}

// FindElement returns the id of the first element matching using/value.
func (s *Session) FindElement(ctx context.Context, using, value string) (string, error) {
	resp, err := s.cmd(ctx, http.MethodPost, "/element", map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	elem, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("element not found: %s=%s", using, value)
	}
	id := extractElementID(elem)
	if id == "" {
		return "", fmt.Errorf("element not found: %s=%s", using, value)
	}
	return id, nil
}

// Click clicks an element.
func (s *Session) Click(ctx context.Context, elementID string) error {
	_, err := s.cmd(ctx, http.MethodPost, "/element/"+elementID+"/click", map[string]interface{}{})
	return err
}

// SendKeys types text into an element.
func (s *Session) SendKeys(ctx context.Context, elementID, text string) error {
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	_, err := s.cmd(ctx, http.MethodPost, "/element/"+elementID+"/value", map[string]interface{}{
		"text":  text,
		"value": chars,
	})
	return err
}

// Back navigates back.
func (s *Session) Back(ctx context.Context) error {
	_, err := s.cmd(ctx, http.MethodPost, "/back", map[string]interface{}{})
	return err
}

// NavigateTo opens url in browser sessions.
func (s *Session) NavigateTo(ctx context.Context, url string) error {
	_, err := s.cmd(ctx, http.MethodPost, "/url", map[string]interface{}{"url": url})
	return err
}

// SetImplicitWait sets how long element lookups wait before failing.
func (s *Session) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := s.cmd(ctx, http.MethodPost, "/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// Screenshot returns the current screen as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := s.cmd(ctx, http.MethodGet, "/screenshot", nil)
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Quit deletes the remote session. Later calls are no-ops.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_, err := s.client.do(ctx, http.MethodDelete, s.path(""), nil)
	if err != nil {
		return fmt.Errorf("failed to quit session %s: %w", s.id, err)
	}
	s.client.logger.Info(ctx, "webdriver session closed", map[string]interface{}{
		"session_id": s.id,
	})
	return nil
}

func extractElementID(value map[string]interface{}) string {
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// JSON wire protocol
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
