package session

import (
	"context"
	"fmt"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/store"
	"go.uber.org/zap"
)

// ErrNotSignedIn is returned by Restore when no valid sign-in is stored.
var ErrNotSignedIn = api.ErrNotSignedIn

// CredentialStore persists the single bearer token of a session.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, c *store.Credentials) error
	LoadCredentials(ctx context.Context) (*store.Credentials, error)
	ClearCredentials(ctx context.Context) error
}

// Session is a signed-in user of a named session. It is created at sign-in
// (or restored from the credential store) and torn down by SignOut.
type Session struct {
	Name   string
	User   api.User
	Client *api.Client
}

// Token returns the bearer token used for both the REST API and the realtime channel.
func (s *Session) Token() string { return s.Client.Token() }

func (s *Session) UserID() string      { return s.User.ID }
func (s *Session) DisplayName() string { return s.User.Name }
func (s *Session) Email() string       { return s.User.Email }

// Manager creates and tears down Sessions for one session name.
type Manager struct {
	name   string
	client *api.Client
	store  CredentialStore
	logger *zap.Logger
}

// NewManager binds an anonymous API client and a credential store to a session name.
func NewManager(name string, client *api.Client, st CredentialStore, logger *zap.Logger) *Manager {
	return &Manager{name: name, client: client, store: st, logger: logger}
}

// SignIn authenticates and persists the token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, token, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return m.establish(ctx, user, token)
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, name, email, password, role string) (*Session, error) {
	user, token, err := m.client.Register(ctx, name, email, password, role)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return m.establish(ctx, user, token)
}

func (m *Manager) establish(ctx context.Context, user api.User, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("sign in: server returned no token")
	}
	if err := m.store.SaveCredentials(ctx, &store.Credentials{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		UserRole:  user.Role,
	}); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	m.logger.Info("signed in", zap.String("user_id", user.ID))
	return &Session{Name: m.name, User: user, Client: m.client.Authorized(token)}, nil
}

// Restore revives the stored sign-in. The token is checked against the API;
// a rejected token is forgotten and ErrNotSignedIn returned. When the API
// cannot be reached the cached user is trusted so the client still starts.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	creds, err := m.store.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil || creds.Token == "" {
		return nil, ErrNotSignedIn
	}

	client := m.client.Authorized(creds.Token)
	user, err := client.Me(ctx)
	switch {
	case err == nil:
	case api.IsUnauthorized(err):
		m.logger.Info("stored token rejected, signing out")
		if clearErr := m.store.ClearCredentials(ctx); clearErr != nil {
			m.logger.Warn("clear credentials failed", zap.Error(clearErr))
		}
		return nil, ErrNotSignedIn
	default:
		m.logger.Warn("could not verify stored token, using cached user", zap.Error(err))
		user = api.User{ID: creds.UserID, Name: creds.UserName, Email: creds.UserEmail, Role: creds.UserRole}
	}
	return &Session{Name: m.name, User: user, Client: client}, nil
}

// SignOut invalidates the token server-side (best effort) and forgets it locally.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	if s != nil {
		if err := s.Client.Logout(ctx); err != nil {
			m.logger.Warn("server logout failed", zap.Error(err))
		}
	}
	if err := m.store.ClearCredentials(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	m.logger.Info("signed out")
	return nil
}
