package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/middleware"
	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/pkg/errors"
	"github.com/charlesng35/talenthub/pkg/metrics"
	"github.com/charlesng35/talenthub/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into authenticated live channels.
type RealtimeHandler struct {
	hub   *realtime.Hub
	authn middleware.Authenticator
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, authn middleware.Authenticator) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, authn: authn}
}

// Stream authenticates the caller before the upgrade so a missing or invalid
// credential is answered with a plain 401 instead of a websocket close.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.authn == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		token = middleware.BearerToken(c)
	}

	if token == "" {
		metrics.LiveHandshakes.WithLabelValues("unauthorized").Inc()
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	principal, err := h.authn.Authenticate(token)
	if err != nil || strings.TrimSpace(principal.ID) == "" {
		metrics.LiveHandshakes.WithLabelValues("unauthorized").Inc()
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.hub.Serve(principal, c.Writer, c.Request)
}
