package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/internal/services"
)

// Notice is one notification printed by the watcher, from either source.
type Notice struct {
	ID      string
	Type    string
	Title   string
	Message string
	At      time.Time
	Source  string
}

// Poller reads unread notifications over REST.
type Poller struct {
	baseURL string
	token   string
	limit   int
	client  *http.Client
}

// NewPoller builds a poller against the API root (e.g. http://localhost:5000).
func NewPoller(baseURL, token string, limit int, client *http.Client) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if limit <= 0 {
		limit = 20
	}
	return &Poller{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		limit:   limit,
		client:  client,
	}
}

type notificationEnvelope struct {
	Success bool                      `json:"success"`
	Data    services.NotificationPage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch returns the newest unread notifications.
func (p *Poller) Fetch(ctx context.Context) ([]services.NotificationDTO, error) {
	endpoint := fmt.Sprintf("%s/api/notifications?unreadOnly=true&limit=%d", p.baseURL, p.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll notifications: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("poll notifications: read body: %w", err)
	}

	var envelope notificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("poll notifications: status %d: decode: %w", resp.StatusCode, err)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return nil, fmt.Errorf("poll notifications: %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("poll notifications: status %d", resp.StatusCode)
	}
	return envelope.Data.Items, nil
}

// LiveURL maps the API root onto the websocket endpoint.
func LiveURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Watcher follows the live channel and polls while it is down. Both paths go
// through the client's de-duplication set.
type Watcher struct {
	client   *realtime.Client
	poller   *Poller
	interval time.Duration
	emit     func(Notice)
	log      *zap.Logger
}

// Run blocks until ctx is cancelled or the live client gives up on the
// credential. Exhausted reconnect budgets restart the client after a poll.
func (w *Watcher) Run(ctx context.Context) error {
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go w.pollLoop(pollCtx)

	for {
		err := w.client.Run(ctx, w.handleEvent)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, realtime.ErrAuthenticationFailed):
			return err
		}
		w.log.Warn("live channel gave up; falling back to polling", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.interval):
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context) {
	w.pollOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.client.State() == realtime.StateConnected {
				continue
			}
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	items, err := w.poller.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("poll failed", zap.Error(err))
		}
		return
	}

	// Oldest first so output reads chronologically.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if !w.client.Observe(item.ID) {
			continue
		}
		w.emit(Notice{
			ID:      item.ID,
			Type:    string(item.Type),
			Title:   item.Title,
			Message: item.Message,
			At:      item.CreatedAt,
			Source:  "poll",
		})
	}
}

func (w *Watcher) handleEvent(event realtime.Event) {
	if event.Name == realtime.EventConnected {
		w.log.Info("live channel connected")
		return
	}

	var payload services.LivePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		w.log.Debug("ignoring undecodable event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	at := payload.Timestamp
	if at.IsZero() {
		at = event.Timestamp
	}
	w.emit(Notice{
		ID:      event.NotificationID,
		Type:    event.Name,
		Title:   payload.Title,
		Message: payload.Message,
		At:      at,
		Source:  "live",
	})
}

func formatNotice(n Notice) string {
	return fmt.Sprintf("%s [%s] %s: %s (%s)", n.At.Local().Format(time.RFC3339), n.Type, n.Title, n.Message, n.Source)
}
