package ginserver

import (
	"errors"
	"log/slog"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/app/policies"
	domainauth "tripdesk/internal/domain/auth"
)

// AuthMiddleware resolves bearer sessions into a principal on the request
// context. Requests without a valid token continue anonymously; the command
// bus decides what they may do.
type AuthMiddleware struct {
	Sessions domainauth.SessionStore
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Sessions == nil {
		c.Next()
		return
	}
	session, err := m.Sessions.Get(c.Request.Context(), domainauth.Token(token))
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Warn("session lookup failed", "error", err)
		}
		c.Next()
		return
	}
	p := policies.Principal{AccountID: session.AccountID, Roles: session.Roles}
	c.Request = c.Request.WithContext(policies.WithPrincipal(c.Request.Context(), p))
	c.Next()
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
