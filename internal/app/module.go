// Package app wires the dealroom client together with fx.
package app

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/archive"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/config"
	"github.com/matheus3301/dealroom/internal/conversation"
	"github.com/matheus3301/dealroom/internal/lock"
	"github.com/matheus3301/dealroom/internal/logging"
	"github.com/matheus3301/dealroom/internal/metrics"
	"github.com/matheus3301/dealroom/internal/realtime"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/status"
	"github.com/matheus3301/dealroom/internal/store"
	"github.com/matheus3301/dealroom/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds what the command line resolved before the graph is built.
type Params struct {
	Config      *config.Config
	SessionName string
	// Console also writes warnings to stderr. The TUI leaves it off.
	Console bool
	// SignIn is asked for a session when none is stored.
	SignIn func(ctx context.Context, m *session.Manager) (*session.Session, error)
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Base provides the pieces every command needs: logger, store, metrics,
// the anonymous API client and the session manager.
func Base(p Params) fx.Option {
	return fx.Options(
		fx.Supply(p, p.Config),
		fx.Provide(
			provideLogger,
			provideClock,
			provideStore,
			metrics.New,
			provideClient,
			provideManager,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
		fx.Invoke(registerStore),
	)
}

// Live is Base plus the signed-in session and the realtime client: the
// channel, the conversation synchronizer, the archive and the TUI.
func Live(p Params) fx.Option {
	return fx.Options(
		Base(p),
		fx.Module("live",
			fx.Provide(
				provideLock,
				provideSession,
				bus.New,
				status.NewMachine,
				provideChannel,
				provideSynchronizer,
				provideArchive,
				provideTUI,
			),
			fx.Invoke(registerLive),
		),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	path := session.LogPath(p.SessionName)
	if p.Console {
		return logging.New(path, p.SessionName)
	}
	return logging.NewFileOnly(path, p.SessionName)
}

func provideClock(p Params) clockwork.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clockwork.NewRealClock()
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	path := session.DBPath(p.SessionName)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Debug("store initialized", zap.String("path", path))
	return db, nil
}

func provideClient(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *api.Client {
	return api.New(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout.Std()),
		api.WithLogger(logger.Named("api")),
		api.WithObserver(m),
	)
}

func provideManager(p Params, client *api.Client, db *store.DB, logger *zap.Logger) *session.Manager {
	return session.NewManager(p.SessionName, client, db, logger)
}

func registerStore(lc fx.Lifecycle, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		if err := db.Close(); err != nil {
			logger.Warn("error closing store", zap.Error(err))
		}
		_ = logger.Sync()
	}))
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideSession restores the stored sign-in or asks for one. It depends on
// the lock so a second client for the same session fails before sign-in.
func provideSession(p Params, m *session.Manager, _ *lock.Lock) (*session.Session, error) {
	ctx := context.Background()
	s, err := m.Restore(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, session.ErrNotSignedIn) || p.SignIn == nil {
		return nil, err
	}
	return p.SignIn(ctx, m)
}

func provideChannel(cfg *config.Config, s *session.Session, b *bus.Bus, machine *status.Machine, clock clockwork.Clock, m *metrics.Metrics, logger *zap.Logger) *realtime.Channel {
	return realtime.New(realtime.Options{
		URL:         cfg.RealtimeURL(),
		Token:       s.Token(),
		MinBackoff:  cfg.ReconnectMin.Std(),
		MaxBackoff:  cfg.ReconnectMax.Std(),
		Observer:    m,
		TypingGrace: cfg.TypingGrace.Std(),
	}, b, machine, clock, logger.Named("realtime"))
}

func provideSynchronizer(cfg *config.Config, s *session.Session, ch *realtime.Channel, b *bus.Bus, clock clockwork.Clock, m *metrics.Metrics, logger *zap.Logger) *conversation.Synchronizer {
	return conversation.New(conversation.Options{
		Identity:       s,
		API:            s.Client,
		Channel:        ch,
		Bus:            b,
		Notifier:       conversation.BusNotifier{Bus: b},
		Clock:          clock,
		Logger:         logger.Named("conversation"),
		Metrics:        m,
		TypingDebounce: cfg.TypingDebounce.Std(),
		PresenceTTL:    cfg.PresenceTTL.Std(),
	})
}

func provideArchive(db *store.DB, b *bus.Bus, s *session.Session, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, s.UserID(), logger.Named("archive"))
}

func provideTUI(s *session.Session, m *session.Manager, db *store.DB, sync *conversation.Synchronizer, ch *realtime.Channel, b *bus.Bus, clock clockwork.Clock, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Deps{
		Session:      s,
		SignOut:      func(ctx context.Context) error { return m.SignOut(ctx, s) },
		Deals:        s.Client,
		Archive:      db,
		Conversation: sync,
		Channel:      channelState{ch},
		Bus:          b,
		Clock:        clock,
		Logger:       logger.Named("tui"),
	})
}

type channelState struct{ ch *realtime.Channel }

func (c channelState) Current() status.State { return c.ch.State() }
func (c channelState) Room() string          { return c.ch.Room() }

func registerLive(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, ch *realtime.Channel, sync *conversation.Synchronizer, engine *archive.Engine, m *metrics.Metrics, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	channelDone := make(chan struct{})
	var srv *metrics.Server
	if cfg.MetricsAddr != "" {
		srv = metrics.NewServer(cfg.MetricsAddr, m, logger.Named("metrics"))
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Subscribers first so the first connect is not missed.
			engine.Start(runCtx)
			sync.Start(runCtx)
			go func() {
				defer close(channelDone)
				if err := ch.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("realtime channel stopped", zap.Error(err))
				}
			}()
			if srv != nil {
				srv.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-channelDone:
			case <-ctx.Done():
				logger.Warn("realtime channel did not stop in time")
			}
			sync.Stop()
			engine.Stop()
			if srv != nil {
				if err := srv.Stop(ctx); err != nil {
					logger.Warn("metrics server shutdown", zap.Error(err))
				}
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
