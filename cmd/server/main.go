package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/internal/config"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
	"github.com/scau009/dwlite-sub002/migrations"
	"github.com/scau009/dwlite-sub002/rules"
)

// openStore builds the configured store. db is nil for the memory driver.
func openStore(ctx context.Context, cfg *config.Configuration) (rules.Store, *sql.DB, error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		return rules.NewInMemoryStore(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, nil, ierr.WithError(err).WithMessage("failed to open database").Mark(ierr.ErrDatabase)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, ierr.WithError(err).WithMessage("failed to ping database").Mark(ierr.ErrDatabase)
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, nil, ierr.WithError(err).WithMessage("failed to run migrations").Mark(ierr.ErrDatabase)
	}
	return rules.NewPostgresStore(db), db, nil
}

// bootstrap wires the engine from cfg and loads the seed fixtures, if any.
func bootstrap(ctx context.Context, cfg *config.Configuration, log *logger.Logger) (*Server, func(), error) {
	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if db != nil {
			db.Close()
		}
	}

	// Parsed programs expire even when candidate lists do not.
	programTTL := cfg.Cache.TTL
	if programTTL == 0 {
		programTTL = expression.DefaultProgramTTL
	}
	programs := expression.NewProgramCache(programTTL)
	engine := rules.NewEngine(store,
		rules.WithCacheTTL(cfg.Cache.TTL),
		rules.WithProgramCache(programs),
		rules.WithLogger(log),
		rules.WithBatchConcurrency(cfg.Engine.BatchConcurrency),
	)

	if cfg.Seed.File != "" {
		if err := rules.LoadFixturesFile(ctx, engine, cfg.Seed.File); err != nil {
			cleanup()
			return nil, nil, err
		}
		log.Infow("loaded seed fixtures", "file", cfg.Seed.File)
	}

	// Stored rules are re-checked against the current contracts
	changed, err := engine.Revalidate(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if changed > 0 {
		log.Warnw("rules changed validity on startup", "count", changed)
	}

	return NewServer(engine, rules.NewTester(programs), db, log), cleanup, nil
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, ErrorSampleRate: cfg.Logging.ErrorSampleRate})
	if err != nil {
		logger.Fatal("failed to build logger", "error", err)
	}
	logger.L = log
	defer log.Sync()

	server, cleanup, err := bootstrap(context.Background(), cfg, log)
	if err != nil {
		log.Fatalw("failed to start", "error", err, "storage", cfg.Storage.Driver)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown handling
	go func() {
		log.Infow("server starting", "address", cfg.Server.Address, "storage", cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Infow("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}

	log.Infow("server stopped")
}
