package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/logger"
)

// Session is a long-lived headless browser attached to one page target. One
// session belongs to one conversation; it must be closed when the
// conversation ends.
type Session struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	conn      *cdpConn
	sessionID string
	closed    bool
}

// NewSession launches headless Chromium and attaches to a fresh page target.
func NewSession(ctx context.Context) (*Session, error) {
	cmd, url, err := launchChromium(ctx)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, consts.Timeout10Seconds)
	defer cancel()

	conn, err := dialCDP(dialCtx, url)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	s := &Session{cmd: cmd, conn: conn}
	if err := s.attach(dialCtx); err != nil {
		conn.Close()
		_ = cmd.Process.Kill()
		return nil, err
	}
	return s, nil
}

func (s *Session) attach(ctx context.Context) error {
	var created struct {
		TargetID string `json:"targetId"`
	}
	err := s.conn.call(ctx, "", "Target.createTarget", map[string]interface{}{
		"url": "about:blank",
	}, &created)
	if err != nil {
		return fmt.Errorf("failed to create page target: %w", err)
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	err = s.conn.call(ctx, "", "Target.attachToTarget", map[string]interface{}{
		"targetId": created.TargetID,
		"flatten":  true,
	}, &attached)
	if err != nil {
		return fmt.Errorf("failed to attach to page target: %w", err)
	}
	s.sessionID = attached.SessionID

	if err := s.conn.call(ctx, s.sessionID, "Page.enable", nil, nil); err != nil {
		return fmt.Errorf("failed to enable page events: %w", err)
	}
	return nil
}

// Navigate loads a URL and waits for the page load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("browser session is closed")
	}

	var nav struct {
		ErrorText string `json:"errorText"`
	}
	err := s.conn.call(ctx, s.sessionID, "Page.navigate", map[string]interface{}{
		"url": url,
	}, &nav)
	if err != nil {
		return err
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("navigation failed: %s", nav.ErrorText)
	}

	if err := s.conn.waitEvent(ctx, s.sessionID, "Page.loadEventFired"); err != nil {
		// Slow pages are still usable; the caller reads whatever loaded.
		logger.Debug("browser: load event not observed for %s: %v", url, err)
	}
	return nil
}

// Click dispatches a click on the first element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return "no element matches selector"; }
		el.click();
		return "";
	})()`, selector)

	result, err := s.Evaluate(ctx, script)
	if err != nil {
		return err
	}
	if result != "" && result != "undefined" {
		return fmt.Errorf("%s", result)
	}
	return nil
}

// Evaluate runs a JavaScript expression and returns its value rendered as a
// string.
func (s *Session) Evaluate(ctx context.Context, expression string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("browser session is closed")
	}
	return s.evaluateLocked(ctx, expression)
}

func (s *Session) evaluateLocked(ctx context.Context, expression string) (string, error) {
	var result struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}

	err := s.conn.call(ctx, s.sessionID, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ExceptionDetails != nil {
		return "", fmt.Errorf("javascript exception: %s", result.ExceptionDetails.Text)
	}

	if len(result.Result.Value) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(result.Result.Value, &asString); err == nil {
		return asString, nil
	}
	return strings.TrimSpace(string(result.Result.Value)), nil
}

// ReadState returns the current page rendered as markdown.
func (s *Session) ReadState(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("browser session is closed")
	}

	html, err := s.evaluateLocked(ctx, "document.documentElement.outerHTML")
	if err != nil {
		return "", err
	}
	return renderPage(html), nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("browser session is closed")
	}

	var shot struct {
		Data string `json:"data"`
	}
	err := s.conn.call(ctx, s.sessionID, "Page.captureScreenshot", map[string]interface{}{
		"format": "png",
	}, &shot)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(shot.Data)
}

// Close shuts down the devtools connection and the browser process. Safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()
	_ = s.conn.call(ctx, "", "Browser.close", nil, nil)
	_ = s.conn.Close()

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return nil
}
