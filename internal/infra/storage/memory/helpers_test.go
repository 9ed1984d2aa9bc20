package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/middleware"
	"tripdesk/internal/domain/account"
	domainauth "tripdesk/internal/domain/auth"
)

func middlewareRecord(key string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(`{}`), OccurredAt: at}
}

func mustSession(t *testing.T, token string, now time.Time) *domainauth.Session {
	t.Helper()
	s, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:     domainauth.Token(token),
		AccountID: "staff-1",
		Roles:     []account.Role{account.RoleStaff},
		TTL:       time.Hour,
		Now:       now,
	})
	require.NoError(t, err)
	return s
}
