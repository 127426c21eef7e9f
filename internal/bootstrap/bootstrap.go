// Package bootstrap brings the API server up: one bounded database attempt with an
// in-memory fallback, then a sequential search for a free port.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/shared"
)

const (
	maxPort           = 65535
	defaultPortWindow = 10
)

// Mode is the storage mode the server runs in.
type Mode string

const (
	ModeDatabase Mode = "database"
	ModeFallback Mode = "in-memory"
)

// Phase is a step of [Bootstrap.Start].
type Phase int

const (
	PhaseInit Phase = iota
	PhaseConnectingDB
	PhaseDBReady
	PhaseDBFallback
	PhaseBinding
	PhasePortRetry
	PhaseListening
	PhaseFatal
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseConnectingDB:
		return "connecting_db"
	case PhaseDBReady:
		return "db_ready"
	case PhaseDBFallback:
		return "db_fallback"
	case PhaseBinding:
		return "binding"
	case PhasePortRetry:
		return "port_retry"
	case PhaseListening:
		return "listening"
	case PhaseFatal:
		return "fatal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ListenFunc opens a listener, with the signature of [net.Listen].
type ListenFunc func(network, address string) (net.Listener, error)

// ConnectFunc makes one database attempt and returns a ready connection.
type ConnectFunc func(ctx context.Context, path string, timeout time.Duration) (*sql.DB, error)

// Options configures a [Bootstrap].
type Options struct {
	Host string
	Port int

	// PortWindow bounds the search: ports initial..initial+PortWindow-1 are tried.
	// It may narrow the search but never beyond 10 ports, the default.
	PortWindow int

	DatabasePath   string
	ConnectTimeout time.Duration

	Listen  ListenFunc  // defaults to net.Listen
	Connect ConnectFunc // defaults to ConnectAndMigrate
	Logger  *log.Logger
	OnPhase func(Phase)
}

// Result is a running server's listener and storage.
type Result struct {
	Listener net.Listener
	Port     int
	Mode     Mode
	DB       *sql.DB // nil in fallback mode
	Attempts int     // bind attempts made
}

type Bootstrap struct {
	opts Options
}

func New(opts Options) *Bootstrap {
	if opts.Listen == nil {
		opts.Listen = net.Listen
	}
	if opts.Connect == nil {
		opts.Connect = ConnectAndMigrate
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.PortWindow <= 0 || opts.PortWindow > defaultPortWindow {
		opts.PortWindow = defaultPortWindow
	}
	return &Bootstrap{opts: opts}
}

// Start connects storage and binds a listener.
//
// A database failure is never fatal. The only fatal outcomes are an exhausted port
// window ([shared.ErrPortExhausted]) and a bind error other than "address in use" or
// "permission denied" ([shared.ErrBindFailed]).
func (b *Bootstrap) Start(ctx context.Context) (*Result, error) {
	b.phase(PhaseInit)
	res := &Result{Mode: ModeFallback}

	b.phase(PhaseConnectingDB)
	if db := b.connect(ctx); db != nil {
		res.DB, res.Mode = db, ModeDatabase
		b.phase(PhaseDBReady)
	} else {
		b.phase(PhaseDBFallback)
	}

	ln, port, attempts, err := b.bind(ctx)
	res.Attempts = attempts
	if err != nil {
		b.phase(PhaseFatal)
		if res.DB != nil {
			res.DB.Close()
		}
		return res, err
	}

	res.Listener, res.Port = ln, port
	b.phase(PhaseListening)
	b.opts.Logger.Info("server listening", "addr", ln.Addr().String(), "port", port, "mode", res.Mode, "attempts", attempts)
	return res, nil
}

func (b *Bootstrap) connect(ctx context.Context) *sql.DB {
	logger := b.opts.Logger
	if b.opts.DatabasePath == "" {
		logger.Warn("no database configured, running with in-memory storage")
		return nil
	}

	db, err := b.opts.Connect(ctx, b.opts.DatabasePath, b.opts.ConnectTimeout)
	if err != nil {
		logger.Warn("database connection failed, running with in-memory storage", "path", b.opts.DatabasePath, "error", err)
		return nil
	}

	logger.Info("database connected", "path", b.opts.DatabasePath)
	return db
}

// bind tries ports one at a time, starting from the configured port.
func (b *Bootstrap) bind(ctx context.Context) (net.Listener, int, int, error) {
	initial := b.initialPort()
	limit := initial + b.opts.PortWindow

	b.phase(PhaseBinding)
	port := initial
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, port, attempt - 1, fmt.Errorf("%w: %v", shared.ErrBindFailed, err)
		}

		addr := net.JoinHostPort(b.opts.Host, strconv.Itoa(port))
		ln, err := b.opts.Listen("tcp", addr)
		if err == nil {
			return ln, listenerPort(ln, port), attempt, nil
		}

		if !retryable(err) {
			return nil, port, attempt, fmt.Errorf("%w: %s: %v", shared.ErrBindFailed, addr, err)
		}

		next := port + 1
		if next > maxPort || next >= limit {
			return nil, port, attempt, fmt.Errorf("%w: tried ports %d-%d: %v", shared.ErrPortExhausted, initial, port, err)
		}

		b.opts.Logger.Warn("port unavailable, trying next", "port", port, "next", next, "error", err)
		b.phase(PhasePortRetry)
		port = next
	}
}

func (b *Bootstrap) initialPort() int {
	p := b.opts.Port
	if p < 0 || p > maxPort {
		b.opts.Logger.Warn("invalid port, using default", "port", p, "default", shared.DefaultPort)
		return shared.DefaultPort
	}
	return p
}

func (b *Bootstrap) phase(p Phase) {
	b.opts.Logger.Debug("bootstrap", "phase", p)
	if b.opts.OnPhase != nil {
		b.opts.OnPhase(p)
	}
}

func retryable(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EACCES)
}

func listenerPort(ln net.Listener, fallback int) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return fallback
}

// ConnectAndMigrate opens the SQLite database at path and applies pending migrations.
// An in-memory database is pinned to one connection so every query sees the schema.
func ConnectAndMigrate(ctx context.Context, path string, timeout time.Duration) (*sql.DB, error) {
	db, err := shared.ConnectDatabase(ctx, path, timeout)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
