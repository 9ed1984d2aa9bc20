package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/app/fanout"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/domain/account"
)

const defaultHeartbeat = 25 * time.Second

// EventsHandler streams booking events to staff dashboards over SSE.
type EventsHandler struct {
	Hub       *fanout.Hub
	Heartbeat time.Duration
	Buffer    int
	Logger    *slog.Logger
}

func (h EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	p := policies.PrincipalFrom(ctx)
	if !p.Authenticated() {
		respondError(c, h.Logger, policies.ErrUnauthenticated)
		return
	}
	if !account.HasRole(p.Roles, account.RoleStaff) {
		respondError(c, h.Logger, policies.ErrForbidden)
		return
	}

	events, cancel := h.Hub.Subscribe(ctx, h.Buffer)
	defer cancel()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"subscribers": h.Hub.Subscribers()})
	c.Writer.Flush()

	if h.Logger != nil {
		h.Logger.Debug("event stream opened", "account_id", p.AccountID)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, ev)
		case at := <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": at.UTC()})
		}
		c.Writer.Flush()
	}
}
