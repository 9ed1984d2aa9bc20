package memory

import (
	"context"
	"sync"
	"time"

	"tripdesk/internal/domain/account"
	domainauth "tripdesk/internal/domain/auth"
)

// AccountDirectory mirrors accounts owned by account management.
type AccountDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]*account.Account
}

func NewAccountDirectory(accounts ...*account.Account) *AccountDirectory {
	d := &AccountDirectory{byEmail: make(map[string]*account.Account)}
	for _, acc := range accounts {
		d.Put(acc)
	}
	return d
}

func (d *AccountDirectory) Put(acc *account.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byEmail[account.NormalizeEmail(acc.Email)] = cloneAccount(acc)
}

func (d *AccountDirectory) ByEmail(ctx context.Context, email string) (*account.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(acc), nil
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.Roles = append([]account.Role(nil), a.Roles...)
	return &c
}

// SessionStore keeps bearer sessions in memory.
type SessionStore struct {
	mu     sync.RWMutex
	tokens map[domainauth.Token]*domainauth.Session
	now    func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		tokens: make(map[domainauth.Token]*domainauth.Session),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrTokenRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[session.Token] = cloneSession(session)
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	s.mu.RLock()
	session, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		_ = s.Delete(ctx, token)
		return nil, domainauth.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func cloneSession(s *domainauth.Session) *domainauth.Session {
	c := *s
	c.Roles = append([]account.Role(nil), s.Roles...)
	return &c
}

var (
	_ account.Directory       = (*AccountDirectory)(nil)
	_ domainauth.SessionStore = (*SessionStore)(nil)
)
