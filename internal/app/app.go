package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
	"github.com/kintamahadji/baileys-api/internal/handler"
	"github.com/kintamahadji/baileys-api/internal/infra/config"
	"github.com/kintamahadji/baileys-api/internal/infra/logger"
	"github.com/kintamahadji/baileys-api/internal/service/notify"
	"github.com/kintamahadji/baileys-api/internal/service/session"
)

const shutdownTimeout = 10 * time.Second

// App is the main application orchestrator.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Stores   *store.Container
	Sessions *session.Manager
	Notifier *notify.Publisher
	Server   *http.Server

	listeners []session.Notifier

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes an App.
type Option func(*App)

// WithListener additionally reports every connection update to n.
func WithListener(n session.Notifier) Option {
	return func(a *App) { a.listeners = append(a.listeners, n) }
}

// New creates a new App instance. Nothing connects until Run or an
// explicit session creation.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	log, err := logger.New("baileys", cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.Infof("Initializing Baileys API...")

	if err := cfg.EnsureStorePath(); err != nil {
		return nil, fmt.Errorf("failed to ensure store path: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	appStore, err := store.New(ctx, cfg.Database.Driver, cfg.DSN(), log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	stores := store.NewContainer(appStore)

	a := &App{
		Config:   cfg,
		Log:      log,
		Stores:   stores,
		Notifier: notify.New(log, newSinks(ctx, cfg.Notify, log)...),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Sessions = session.NewManager(ctx, session.Config{
		ReconnectInterval:   cfg.ReconnectInterval,
		MaxReconnectRetries: cfg.MaxReconnectRetries,
		MaxQRGeneration:     cfg.SSEMaxQRGeneration,
	}, stores, NewDialer(stores.Messages, cfg.BrowserName), log, session.WithNotifier(a))

	h := handler.New(a.Sessions, stores, cfg.APIKey, log)
	a.Server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(log.Zap()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newSinks dials every configured publisher. A publisher that cannot be
// reached is skipped so the API still comes up.
func newSinks(ctx context.Context, cfg config.NotifyConfig, log *logger.Logger) []notify.Sink {
	var sinks []notify.Sink
	if cfg.RedisURL != "" {
		sink, err := notify.NewRedisSink(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			log.Warnf("Redis notifications disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.AMQPURL != "" {
		sink, err := notify.NewAMQPSink(ctx, cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warnf("AMQP notifications disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Publish implements session.Notifier.
func (a *App) Publish(ctx context.Context, sessionID string, u *event.ConnectionUpdate) {
	a.Notifier.Publish(ctx, sessionID, u)
	for _, l := range a.listeners {
		l.Publish(ctx, sessionID, u)
	}
}

// Context is canceled once the application shuts down.
func (a *App) Context() context.Context { return a.ctx }

// Run restores the persisted sessions and serves the API until a signal
// arrives or the listener fails.
func (a *App) Run() error {
	a.Log.Infof("Starting Baileys API...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			a.Log.Infof("Received %v, initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
	}()

	if err := a.Sessions.RestoreAll(a.ctx); err != nil {
		a.Log.Errorf("Failed to restore sessions: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Infof("Listening on %s", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-a.ctx.Done():
	case serveErr = <-errCh:
	}
	return errors.Join(serveErr, a.Shutdown())
}

// Shutdown stops the listener and drops every connection. Persisted
// sessions are restored on the next start.
func (a *App) Shutdown() error {
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	a.Sessions.CloseAll()
	if err := a.Notifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
	}
	if err := a.Stores.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
