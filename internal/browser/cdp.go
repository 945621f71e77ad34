// Package browser owns a headless Chromium process and drives it over the
// DevTools protocol for the browser-action tool.
package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/logger"
)

var chromiumCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

var devtoolsURLPattern = regexp.MustCompile(`DevTools listening on (ws://\S+)`)

// cdpConn is a minimal DevTools protocol connection: JSON commands matched to
// responses by id, protocol events fanned out to a channel.
type cdpConn struct {
	conn *websocket.Conn

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan cdpResponse
	events  chan cdpEvent
	closed  chan struct{}
}

type cdpCommand struct {
	ID        int64                  `json:"id"`
	Method    string                 `json:"method"`
	Params    map[string]interface{} `json:"params,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
}

type cdpResponse struct {
	Result json.RawMessage
	Err    error
}

type cdpEvent struct {
	Method    string
	SessionID string
	Params    json.RawMessage
}

type cdpMessage struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId"`
	Result    json.RawMessage `json:"result"`
	Params    json.RawMessage `json:"params"`
	Error     *cdpError       `json:"error"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func dialCDP(ctx context.Context, url string) (*cdpConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial devtools socket: %w", err)
	}

	c := &cdpConn{
		conn:    conn,
		pending: make(map[int64]chan cdpResponse),
		events:  make(chan cdpEvent, consts.DefaultChannelBufferSize),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *cdpConn) readLoop() {
	defer close(c.closed)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("browser: devtools socket closed: %v", err)
			}
			c.failAllPending(err)
			return
		}

		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("browser: malformed devtools message: %v", err)
			continue
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				resp := cdpResponse{Result: msg.Result}
				if msg.Error != nil {
					resp.Err = fmt.Errorf("devtools error %d: %s", msg.Error.Code, msg.Error.Message)
				}
				ch <- resp
			}
			continue
		}

		select {
		case c.events <- cdpEvent{Method: msg.Method, SessionID: msg.SessionID, Params: msg.Params}:
		default:
			// Event subscribers that fall behind lose events rather than
			// stalling the protocol.
		}
	}
}

func (c *cdpConn) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- cdpResponse{Err: err}
		delete(c.pending, id)
	}
}

// call sends one command and waits for its response.
func (c *cdpConn) call(ctx context.Context, sessionID, method string, params map[string]interface{}, result interface{}) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan cdpResponse, 1)
	c.pending[id] = ch

	err := c.conn.WriteJSON(cdpCommand{ID: id, Method: method, Params: params, SessionID: sessionID})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("devtools connection closed during %s", method)
	case resp := <-ch:
		if resp.Err != nil {
			return resp.Err
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// waitEvent blocks until an event with the given method arrives for the
// session, draining unrelated events.
func (c *cdpConn) waitEvent(ctx context.Context, sessionID, method string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return fmt.Errorf("devtools connection closed waiting for %s", method)
		case event := <-c.events:
			if event.Method == method && (sessionID == "" || event.SessionID == sessionID) {
				return nil
			}
		}
	}
}

func (c *cdpConn) Close() error {
	return c.conn.Close()
}

// launchChromium starts a headless browser and returns the process plus its
// devtools URL, scraped from stderr.
func launchChromium(ctx context.Context) (*exec.Cmd, string, error) {
	binary := ""
	for _, candidate := range chromiumCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			binary = path
			break
		}
	}
	if binary == "" {
		return nil, "", fmt.Errorf("no chromium binary found (tried %s)", strings.Join(chromiumCandidates, ", "))
	}

	cmd := exec.Command(binary,
		"--headless=new",
		"--disable-gpu",
		"--no-sandbox",
		"--no-first-run",
		"--remote-debugging-port=0",
		"about:blank",
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, "", err
	}
	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("failed to start %s: %w", binary, err)
	}

	urlCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if m := devtoolsURLPattern.FindStringSubmatch(scanner.Text()); m != nil {
				urlCh <- m[1]
				break
			}
		}
		// Keep draining so the browser never blocks on a full stderr pipe.
		for scanner.Scan() {
		}
	}()

	select {
	case url := <-urlCh:
		return cmd, url, nil
	case <-time.After(consts.Timeout10Seconds):
		_ = cmd.Process.Kill()
		return nil, "", fmt.Errorf("browser did not report a devtools URL")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, "", ctx.Err()
	}
}
