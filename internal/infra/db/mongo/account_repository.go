package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripdesk/internal/domain/account"
	domainauth "tripdesk/internal/domain/auth"
)

// AccountDirectory reads accounts managed by the account service.
type AccountDirectory struct {
	col *mongo.Collection
}

func NewAccountDirectory(db *mongo.Database) *AccountDirectory {
	return &AccountDirectory{col: db.Collection("accounts")}
}

func (d *AccountDirectory) EnsureIndexes(ctx context.Context) error {
	_, err := d.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type accountDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Roles     []string  `bson:"roles"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *AccountDirectory) ByEmail(ctx context.Context, email string) (*account.Account, error) {
	var doc accountDocument
	if err := d.col.FindOne(ctx, bson.M{"email": account.NormalizeEmail(email)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, account.ErrNotFound
		}
		return nil, translate(err)
	}
	roles := make([]account.Role, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		roles = append(roles, account.Role(r))
	}
	return &account.Account{ID: account.ID(doc.ID), Email: doc.Email, Name: doc.Name, Roles: roles, CreatedAt: doc.CreatedAt}, nil
}

// SessionStore keeps bearer sessions; a TTL index drops expired ones.
type SessionStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	return &SessionStore{col: db.Collection("sessions"), now: func() time.Time { return time.Now().UTC() }}
}

func (s *SessionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

type sessionDocument struct {
	Token     string    `bson:"_id"`
	AccountID string    `bson:"account_id"`
	Roles     []string  `bson:"roles"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrTokenRequired
	}
	roles := make([]string, 0, len(session.Roles))
	for _, r := range session.Roles {
		roles = append(roles, string(r))
	}
	doc := sessionDocument{
		Token:     string(session.Token),
		AccountID: string(session.AccountID),
		Roles:     roles,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.Token}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

// Get treats an expired session as missing; the TTL monitor only runs once a
// minute.
func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	var doc sessionDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": string(token)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainauth.ErrSessionNotFound
		}
		return nil, translate(err)
	}
	roles := make([]account.Role, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		roles = append(roles, account.Role(r))
	}
	session := &domainauth.Session{
		Token:     domainauth.Token(doc.Token),
		AccountID: account.ID(doc.AccountID),
		Roles:     roles,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}
	if session.Expired(s.now()) {
		return nil, domainauth.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": string(token)})
	return translate(err)
}

var (
	_ account.Directory       = (*AccountDirectory)(nil)
	_ domainauth.SessionStore = (*SessionStore)(nil)
)
