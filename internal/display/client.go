package display

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/creceideas/muralla/internal/domain"
)

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// State is the connection state of a display client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSynced       State = "synced"
)

// Client maintains a local copy of the visible set for one display. It
// seeds the view from a snapshot fetch and keeps it current by applying
// the event stream: NEW_IMAGE appends (skipping ids already present, since
// the snapshot and the stream may deliver the same record), UPDATE_IMAGES
// replaces the view wholesale.
//
// The client reconnects forever with bounded exponential backoff. A wall
// display should show "waiting for photos" while disconnected, never a
// permanent error.
type Client struct {
	baseURL  string
	httpc    *http.Client
	logger   *slog.Logger
	onChange func([]domain.Submission)

	mu    sync.Mutex
	state State
	view  []domain.Submission
}

// NewClient creates a display client for the server at baseURL
// (e.g. http://localhost:3001). onChange, if non-nil, is invoked with a
// copy of the view after every change.
func NewClient(baseURL string, onChange func([]domain.Submission), logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		onChange: onChange,
		state:    StateDisconnected,
	}
}

// Run connects to the server and keeps the local view synchronized until
// the context is cancelled. Transient errors trigger a reconnect with
// exponential backoff, reset after every successful sync.
func (c *Client) Run(ctx context.Context) error {
	delay := baseRetryDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		synced, err := c.sync(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.setState(StateDisconnected)

		if synced {
			delay = baseRetryDelay
		}
		if err != nil {
			c.logger.Warn("display sync interrupted, reconnecting", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// View returns a copy of the current local view.
func (c *Client) View() []domain.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Submission(nil), c.view...)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// sync performs one full cycle: connect, snapshot, apply events until the
// connection drops. Returns whether the client reached the synced state.
func (c *Client) sync(ctx context.Context) (bool, error) {
	c.setState(StateConnecting)

	wsURL, err := c.websocketURL()
	if err != nil {
		return false, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Seed the view only after subscribing, so an event landing during
	// the fetch is read afterwards instead of lost. The same record may
	// then arrive twice; applyNewImage de-duplicates by uid.
	snapshot, err := c.fetchSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}

	c.replaceView(snapshot)
	c.setState(StateSynced)
	c.logger.Info("display synced", "images", len(snapshot))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read event: %w", err)
		}

		if err := c.applyEvent(message); err != nil {
			c.logger.Error("failed to apply event", "error", err)
		}
	}
}

func (c *Client) applyEvent(message []byte) error {
	var event struct {
		Type domain.EventType `json:"type"`
		Data json.RawMessage  `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	switch event.Type {
	case domain.EventNewImage:
		var sub domain.Submission
		if err := json.Unmarshal(event.Data, &sub); err != nil {
			return fmt.Errorf("unmarshal submission: %w", err)
		}
		c.applyNewImage(sub)
		return nil

	case domain.EventUpdateImages:
		var subs []domain.Submission
		if err := json.Unmarshal(event.Data, &subs); err != nil {
			return fmt.Errorf("unmarshal submission list: %w", err)
		}
		c.replaceView(subs)
		return nil

	default:
		c.logger.Debug("ignoring unknown event type", "type", event.Type)
		return nil
	}
}

func (c *Client) applyNewImage(sub domain.Submission) {
	c.mu.Lock()
	duplicate := lo.SomeBy(c.view, func(s domain.Submission) bool {
		return s.ID == sub.ID
	})
	if !duplicate {
		c.view = append(c.view, sub)
	}
	c.mu.Unlock()

	if !duplicate {
		c.notify()
	}
}

func (c *Client) replaceView(subs []domain.Submission) {
	c.mu.Lock()
	c.view = append([]domain.Submission(nil), subs...)
	c.mu.Unlock()

	c.notify()
}

func (c *Client) notify() {
	if c.onChange != nil {
		c.onChange(c.View())
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) fetchSnapshot(ctx context.Context) ([]domain.Submission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/images", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success bool                `json:"success"`
		Data    []domain.Submission `json:"data"`
		Total   int                 `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("snapshot request rejected")
	}
	return body.Data, nil
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	return u.String(), nil
}
