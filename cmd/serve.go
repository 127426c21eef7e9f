package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/nutrivision/internal/bootstrap"
	"github.com/desertthunder/nutrivision/internal/repositories"
	"github.com/desertthunder/nutrivision/internal/server"
	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 5 * time.Second

// apiServer is a started API server.
type apiServer struct {
	http   *http.Server
	result *bootstrap.Result
	errs   chan error
}

func (s *apiServer) Addr() net.Addr { return s.result.Listener.Addr() }

// Serve runs the API until interrupted. A bootstrap failure exits with status 1.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.Int("port"); port >= 0 {
		cfg.Server.Port = port
	}
	if db := cmd.String("db"); db != "" {
		cfg.Database.Path = db
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := r.startAPI(ctx, &cfg)
	if err != nil {
		r.logger.Error("server failed to start", "error", err)
		switch {
		case errors.Is(err, shared.ErrPortExhausted):
			r.logger.Error("stop the process using the port or choose another one with --port or PORT")
		case errors.Is(err, shared.ErrBindFailed):
			r.logger.Error("check that the host address exists on this machine and the port is allowed")
		}
		return err
	}

	r.writePlain("✓ NutriVision API listening on http://%s/api (%s storage)\n", srv.Addr(), srv.result.Mode)

	select {
	case <-ctx.Done():
		r.logger.Info("shutting down")
	case err := <-srv.errs:
		r.logger.Error("server stopped", "error", err)
		srv.shutdown(r)
		return err
	}

	srv.shutdown(r)
	return nil
}

// startAPI bootstraps storage and a listener and starts serving in the background.
func (r *Runner) startAPI(ctx context.Context, cfg *shared.Config) (*apiServer, error) {
	boot := bootstrap.New(bootstrap.Options{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		PortWindow:     cfg.Server.MaxPortAttempts,
		DatabasePath:   cfg.Database.Path,
		ConnectTimeout: cfg.Database.ConnectTimeout(),
		Connect: func(ctx context.Context, path string, timeout time.Duration) (*sql.DB, error) {
			db, err := bootstrap.ConnectAndMigrate(ctx, path, timeout)
			if err == nil && path != ":memory:" {
				shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
			}
			return db, err
		},
		Logger: shared.WithLogger(r.logger, "component", "bootstrap"),
	})

	res, err := boot.Start(ctx)
	if err != nil {
		return nil, err
	}

	issuer, err := server.NewTokenIssuer(r.tokenSecret(cfg), cfg.Auth.TokenTTL())
	if err != nil {
		res.Listener.Close()
		if res.DB != nil {
			res.DB.Close()
		}
		return nil, err
	}

	api := server.NewAPI(server.APIOpts{
		Stores:            repositories.Open(res.DB),
		Issuer:            issuer,
		DatabaseConnected: res.Mode == bootstrap.ModeDatabase,
		Logger:            r.logger,
		Google:            r.identityVerifier("google", cfg.Credentials.Google.ClientID, server.NewGoogleVerifier),
		Apple:             r.identityVerifier("apple", cfg.Credentials.Apple.ClientID, server.NewAppleVerifier),
	})

	s := &apiServer{
		http: &http.Server{
			Handler:           server.NewAPIRouter(api, shared.WithLogger(r.logger, "component", "http")),
			ReadHeaderTimeout: 10 * time.Second,
		},
		result: res,
		errs:   make(chan error, 1),
	}

	go func() {
		if err := s.http.Serve(res.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()

	return s, nil
}

func (s *apiServer) shutdown(r *Runner) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}
	if s.result.DB != nil {
		if err := s.result.DB.Close(); err != nil {
			r.logger.Warn("error closing database", "error", err)
		}
	}
}

// identityVerifier returns nil, leaving that sign-in route unconfigured, when clientID is empty.
func (r *Runner) identityVerifier(provider, clientID string, build func(string, *http.Client) *server.JWKSVerifier) server.IdentityVerifier {
	if clientID == "" {
		r.logger.Info("federated sign-in disabled, no client ID configured", "provider", provider)
		return nil
	}
	return build(clientID, r.httpClient)
}

// tokenSecret returns the configured secret or, with a warning, a per-process one.
func (r *Runner) tokenSecret(cfg *shared.Config) string {
	if cfg.Auth.TokenSecret != "" {
		return cfg.Auth.TokenSecret
	}
	r.logger.Warn("auth.token_secret is not set; using an ephemeral secret, sessions end when the server stops")
	return shared.GenerateID() + shared.GenerateID()
}

// Health reports the backend's status.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, true)
	}

	r.writePlain("✓ %s (%s)\n", health.Message, health.Status)
	r.writePlain("Database: %s\n", health.Database)
	return nil
}
