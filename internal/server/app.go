// Package server initializes and runs the TokenKeeper server: it opens the
// storage backends, applies migrations, wires the session service into the
// HTTP transport and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/password"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/rest"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

// openDB is a test seam for sql.Open.
var openDB = sql.Open

type App struct {
	config   *config.Config
	logger   *logging.SlogLogger
	db       *sql.DB
	redis    *redis.Client
	sessions *services.SessionService
	reaper   *services.Reaper
	handler  http.Handler
}

// NewApp builds every component from c, logging JSON to stdout.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (_ *App, err error) {
	logger, err := logging.NewJSONLogger(logOut, c.LogLevel)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	app.db, err = openDB(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if c.DatabaseDriver == config.DriverSQLite {
		app.db.SetMaxOpenConns(1)
	}
	if err := app.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return nil, err
	}

	var ledger refreshtokens.Repository
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		ledger = refreshtokens.NewRedisRepository(app.redis, refreshtokens.DefaultRedisPrefix)
	} else {
		ledger = rm.RefreshTokens(app.db)
	}

	codec, err := auth.NewCodec(c)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	app.sessions, err = services.NewSessionService(rm.Users(app.db), ledger, hasher, codec, logger, m)
	if err != nil {
		return nil, err
	}
	app.reaper = services.NewReaper(ledger, c.LedgerSweepInterval, logger, m)
	app.handler = rest.NewHandler(app.sessions, app.db, logger, m).Routes()

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.EndpointAddrHTTP, app.handler, app.logger, app.logger.Slog(), app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases storage.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.reaper.Run(ctx)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "closing storage", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

// Close releases database and Redis connections. It may be called more than
// once, and on a nil App.
func (app *App) Close() error {
	if app == nil {
		return nil
	}
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
		app.redis = nil
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
		app.db = nil
	}
	return errors.Join(errs...)
}
