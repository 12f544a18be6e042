// Package server wires configuration, storage, the master key and the
// services together and runs the HTTP server until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/notify"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/schedkeeper/internal/server/secrets"
	"github.com/dmitrijs2005/schedkeeper/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	publisher notify.Publisher
	server    *http.Server
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.Env, os.Stdout)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	keys, err := secrets.LoadMasterKey(ctx, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	publisher, err := newPublisher(c, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	met := metrics.New()

	api := httpapi.New(logger, []byte(c.SecretKey),
		services.NewAccountService(db, rm, c, keys, logger, met),
		services.NewResetService(db, rm, c, keys, publisher, logger, met),
		services.NewMessageService(db, rm, keys, logger, met),
		services.NewAdminService(db, rm, c, keys, logger, met),
	)

	srv := &http.Server{
		Addr:              c.HTTPAddr,
		Handler:           api.Routes(met.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{config: c, logger: logger, db: db, publisher: publisher, server: srv}, nil
}

// newPublisher picks AMQP delivery when a broker URL is configured and
// falls back to logging the notice.
func newPublisher(c *config.Config, logger logging.Logger) (notify.Publisher, error) {
	if c.AMQPURL == "" {
		return notify.NewLogPublisher(logger), nil
	}
	p, err := notify.NewAMQPPublisher(c.AMQPURL, c.ResetQueue)
	if err != nil {
		return nil, fmt.Errorf("amqp init error: %w", err)
	}
	return p, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a shutdown signal arrives, then
// drains connections and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server listening", "addr", app.config.HTTPAddr, "env", app.config.Env)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}
	if err := app.publisher.Close(); err != nil {
		app.logger.Warn(shutdownCtx, "publisher close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(shutdownCtx, "db close error", "error", err)
	}

	return runErr
}
