// Package daemon wires the kaiwa components together and manages their
// lifecycle. Stores are constructed here and injected into the ledger
// service; nothing holds package-level handles.
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/harun/kaiwa/internal/config"
	"github.com/harun/kaiwa/internal/logger"
	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/internal/server"
	"github.com/harun/kaiwa/internal/tracing"
	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/harun/kaiwa/pkg/store"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Daemon represents the kaiwa service process.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	db       *store.DB
	service  *ledger.Service
	server   *server.Server
	sweeper  *ledger.Sweeper
	serveErr chan error

	mu      sync.Mutex
	running bool
}

// New constructs the daemon and all of its components.
func New(cfg *config.Config) (*Daemon, error) {
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		Console:  true,
		Pretty:   true,
		MaxSize:  cfg.Logging.MaxSize,
		MaxAge:   cfg.Logging.MaxAge,
		Compress: cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if cfg.Logging.Audit != "" {
		if err := observability.InitAuditLogger(cfg.Logging.Audit); err != nil {
			log.Warn().Err(err).Msg("Audit log unavailable, falling back to stderr")
		}
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry("kaiwa"); err != nil {
			log.Warn().Err(err).Msg("Tracing initialization failed")
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	sessions := store.NewSessionStore(db)
	events := store.NewEventStore(db)
	service := ledger.NewService(sessions, events)

	d := &Daemon{
		config:   cfg,
		logger:   lg,
		db:       db,
		service:  service,
		server:   server.New(service, db),
		serveErr: make(chan error, 1),
	}

	if cfg.Sweeper.Enabled {
		d.sweeper = ledger.NewSweeper(service, sessions, cfg.Sweeper.IdleTimeout, cfg.Sweeper.Batch)
	}

	return d, nil
}

// Start launches the HTTP server and the sweeper.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	addr := net.JoinHostPort(d.config.Server.Host, strconv.Itoa(d.config.Server.Port))
	go func() {
		d.serveErr <- d.server.Start(addr)
	}()

	if d.sweeper != nil {
		if err := d.sweeper.Start(d.config.Sweeper.Schedule); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
	}

	d.running = true
	log.Info().Str("addr", addr).Str("db", d.config.Storage.Path).Msg("kaiwa started")
	return nil
}

// Stop shuts everything down in reverse order of startup.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}

	if d.sweeper != nil {
		d.sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := d.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Database close failed")
	}

	if d.config.Tracing.Enabled {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("Tracing shutdown failed")
		}
	}

	observability.GetAuditLogger().Close()
	d.logger.Close()

	d.running = false
	log.Info().Msg("kaiwa stopped")
	return nil
}

// Run starts the daemon and blocks until a termination signal or a server
// failure, then stops it.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-d.serveErr:
		if err != nil {
			stopErr := d.Stop()
			if stopErr != nil {
				log.Warn().Err(stopErr).Msg("Stop failed after server error")
			}
			return fmt.Errorf("http server: %w", err)
		}
	}

	return d.Stop()
}

// Service exposes the ledger service, mainly for tests.
func (d *Daemon) Service() *ledger.Service {
	return d.service
}
