package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"tripdesk/internal/domain/account"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrAccountRequired = errors.New("auth: account is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

type Token string

// Session binds a bearer token to an account and the roles it acts with.
type Session struct {
	Token     Token
	AccountID account.ID
	Roles     []account.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

type CreateSessionParams struct {
	Token     Token
	AccountID account.ID
	Roles     []account.Role
	TTL       time.Duration
	Now       time.Time
}

func NewSession(params CreateSessionParams) (*Session, error) {
	token := strings.TrimSpace(string(params.Token))
	if token == "" {
		return nil, ErrTokenRequired
	}
	if strings.TrimSpace(string(params.AccountID)) == "" {
		return nil, ErrAccountRequired
	}
	if params.TTL <= 0 {
		return nil, ErrTTLInvalid
	}
	roles, err := account.NormalizeRoles(params.Roles)
	if err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	return &Session{
		Token:     Token(token),
		AccountID: params.AccountID,
		Roles:     roles,
		CreatedAt: now,
		ExpiresAt: now.Add(params.TTL),
	}, nil
}

func (s *Session) Expired(at time.Time) bool {
	return !s.ExpiresAt.After(at.UTC())
}

type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token Token) (*Session, error)
	Delete(ctx context.Context, token Token) error
}
