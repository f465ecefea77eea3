package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/pkg/logger"
)

// State is the connection state of a Client.
type State string

// Client states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateAuthFailed   State = "auth_failed"
)

var (
	// ErrAuthenticationFailed is returned once the server kept rejecting the
	// credential after the configured number of retries.
	ErrAuthenticationFailed = errors.New("realtime: authentication failed")
	// ErrReconnectExhausted is returned when the server stayed unreachable.
	ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")
)

// TokenSource returns the bearer credential for the next dial, which lets a
// caller refresh an expired token between authentication retries.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// ClientConfig configures a reconnecting live channel client.
type ClientConfig struct {
	URL              string
	Token            TokenSource
	HandshakeTimeout time.Duration

	// MaxAuthRetries bounds redials after a 401; the n-th retry waits n*AuthRetryDelay.
	MaxAuthRetries int
	AuthRetryDelay time.Duration

	// MaxReconnectAttempts bounds consecutive failed dials and connections
	// that dropped before StableAfter; delays double from BaseDelay up to MaxDelay.
	MaxReconnectAttempts int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	// StableAfter is how long a connection must stay up to reset the
	// reconnect budget. Defaults to BaseDelay.
	StableAfter time.Duration

	// DedupTTL is how long delivered notification ids are remembered.
	DedupTTL time.Duration

	OnStateChange func(State)
	Dialer        *websocket.Dialer
	Sleep         func(ctx context.Context, d time.Duration) error
}

// Event is a live event received from the server.
type Event struct {
	Name           string          `json:"event"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	NotificationID string          `json:"-"`
}

// Client keeps one live connection open with capped exponential backoff and
// hands each distinct notification to the caller once.
type Client struct {
	cfg   ClientConfig
	seen  *gocache.Cache
	log   *zap.Logger
	mu    sync.RWMutex
	state State
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("realtime client: url is required")
	}
	if cfg.Token == nil {
		return nil, errors.New("realtime client: token source is required")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.MaxAuthRetries <= 0 {
		cfg.MaxAuthRetries = 3
	}
	if cfg.AuthRetryDelay <= 0 {
		cfg.AuthRetryDelay = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = cfg.BaseDelay
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	return &Client{
		cfg:   cfg,
		seen:  gocache.New(cfg.DedupTTL, 2*cfg.DedupTTL),
		log:   logger.WithModule("realtime-client"),
		state: StateDisconnected,
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Observe records a notification id and reports whether it was new. Live
// events and polled notifications share this set so each is handled once.
func (c *Client) Observe(notificationID string) bool {
	if notificationID == "" {
		return true
	}
	return c.seen.Add(notificationID, struct{}{}, gocache.DefaultExpiration) == nil
}

// Backoff returns the delay before reconnect attempt n (zero based).
func (c *Client) Backoff(n int) time.Duration {
	delay := c.cfg.BaseDelay
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	return delay
}

// Run connects and delivers events to handle until ctx is cancelled or the
// retry budget is spent. A successful upgrade resets the auth counter; the
// reconnect counter only resets once a connection outlives StableAfter, so a
// server that accepts and immediately drops is backed off like a failed dial.
func (c *Client) Run(ctx context.Context, handle func(Event)) error {
	authFailures := 0
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		c.setState(StateConnecting)
		conn, status, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}

			if status == http.StatusUnauthorized {
				authFailures++
				if authFailures > c.cfg.MaxAuthRetries {
					c.setState(StateAuthFailed)
					return ErrAuthenticationFailed
				}
				delay := time.Duration(authFailures) * c.cfg.AuthRetryDelay
				c.log.Warn("live channel rejected credential",
					zap.Int("attempt", authFailures),
					zap.Duration("retry_in", delay),
				)
				c.setState(StateDisconnected)
				if err := c.cfg.Sleep(ctx, delay); err != nil {
					return err
				}
				continue
			}

			failures++
			if err := c.retryAfter(ctx, failures, "live channel unavailable", err); err != nil {
				return err
			}
			continue
		}

		authFailures = 0
		c.setState(StateConnected)
		connectedAt := time.Now()
		err = c.consume(ctx, conn, handle)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(connectedAt) >= c.cfg.StableAfter {
			failures = 0
			c.log.Info("live channel dropped, reconnecting", zap.Error(err))
			continue
		}

		failures++
		if err := c.retryAfter(ctx, failures, "live channel dropped right after connecting", err); err != nil {
			return err
		}
	}
}

// retryAfter sleeps the backoff for the given consecutive failure count, or
// reports ErrReconnectExhausted once the budget is spent.
func (c *Client) retryAfter(ctx context.Context, failures int, msg string, cause error) error {
	if failures > c.cfg.MaxReconnectAttempts {
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: %v", ErrReconnectExhausted, cause)
	}
	delay := c.Backoff(failures - 1)
	c.log.Warn(msg,
		zap.Int("attempt", failures),
		zap.Duration("retry_in", delay),
		zap.Error(cause),
	)
	c.setState(StateDisconnected)
	return c.cfg.Sleep(ctx, delay)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, int, error) {
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("realtime client: token: %w", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, status, err
	}
	return conn, http.StatusSwitchingProtocols, nil
}

func (c *Client) consume(ctx context.Context, conn *websocket.Conn, handle func(Event)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}

		var ref struct {
			NotificationID string `json:"notificationId"`
		}
		if len(event.Data) > 0 {
			_ = json.Unmarshal(event.Data, &ref)
		}
		event.NotificationID = ref.NotificationID
		if !c.Observe(event.NotificationID) {
			continue
		}
		if handle != nil {
			handle(event)
		}
	}
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
