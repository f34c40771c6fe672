package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/logistio/fleetauth/internal/db"
	"github.com/logistio/fleetauth/internal/handlers"
	"github.com/logistio/fleetauth/internal/logger"
	"github.com/logistio/fleetauth/internal/obs"
	"github.com/logistio/fleetauth/internal/repository/postgres"
	"github.com/logistio/fleetauth/internal/service/auth"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	// Missing or unreadable key material fails here, at startup, never
	// per request
	privatePEM, err := readKeyFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("error while reading private key. Err: %w", err)
	}
	publicPEM, err := readKeyFile(c.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("error while reading public key. Err: %w", err)
	}

	signer, err := auth.NewSigner(auth.SignerConfig{
		PrivateKeyPEM: privatePEM,
		PublicKeyPEM:  publicPEM,
		AccessTTL:     c.AccessTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token signer. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{RefreshTokenTTL: c.RefreshTokenTTL}, signer, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	obs.Init()

	mux := handlers.NewRouter(handlers.NewAuth(authService), log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     log,
	}, nil
}

// readKeyFile loads PEM key material.
// An empty path means the key is not configured and is fine; a set path
// that can't be read is a deployment mistake and must abort startup.
func readKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read key file %q: %w", path, err)
	}
	return pem, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
