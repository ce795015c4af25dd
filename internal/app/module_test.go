package app

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/config"
	"github.com/matheus3301/dealroom/internal/lock"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func testParams(t *testing.T) Params {
	t.Helper()
	t.Setenv(session.EnvHome, t.TempDir())
	return Params{Config: config.Default(), SessionName: "test"}
}

func TestBaseGraph(t *testing.T) {
	p := testParams(t)

	var (
		db *store.DB
		m  *session.Manager
	)
	app := fx.New(Base(p), fx.Populate(&db, &m))
	if err := app.Err(); err != nil {
		t.Fatalf("fx.New() error = %v", err)
	}
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	creds, err := db.LoadCredentials(ctx)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds != nil {
		t.Errorf("fresh store has credentials %+v", creds)
	}
	if m == nil {
		t.Fatal("manager not provided")
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func newManager(t *testing.T, p Params) *session.Manager {
	t.Helper()
	if err := session.EnsureDir(p.SessionName); err != nil {
		t.Fatal(err)
	}
	db, err := provideStore(p, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return session.NewManager(p.SessionName, api.New("http://127.0.0.1:1"), db, zap.NewNop())
}

func TestProvideSessionAsksForSignIn(t *testing.T) {
	p := testParams(t)
	m := newManager(t, p)

	want := &session.Session{Name: p.SessionName, User: api.User{ID: "u1"}}
	asked := 0
	p.SignIn = func(ctx context.Context, got *session.Manager) (*session.Session, error) {
		asked++
		if got != m {
			t.Error("SignIn got a different manager")
		}
		return want, nil
	}

	s, err := provideSession(p, m, nil)
	if err != nil {
		t.Fatalf("provideSession() error = %v", err)
	}
	if s != want || asked != 1 {
		t.Errorf("provideSession() = %v after %d sign-ins, want the signed-in session once", s, asked)
	}
}

func TestProvideSessionWithoutSignIn(t *testing.T) {
	p := testParams(t)
	m := newManager(t, p)

	_, err := provideSession(p, m, nil)
	if !errors.Is(err, session.ErrNotSignedIn) {
		t.Errorf("provideSession() error = %v, want ErrNotSignedIn", err)
	}
}

func TestProvideLockExclusive(t *testing.T) {
	p := testParams(t)
	if err := session.EnsureDir(p.SessionName); err != nil {
		t.Fatal(err)
	}
	first, err := provideLock(p, zap.NewNop())
	if err != nil {
		t.Fatalf("first provideLock() error = %v", err)
	}
	defer func() { _ = first.Release() }()

	_, err = provideLock(p, zap.NewNop())
	var held *lock.LockHeldError
	if !errors.As(err, &held) {
		t.Errorf("second provideLock() error = %v, want LockHeldError", err)
	}
}
