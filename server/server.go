// Package server exposes the dataset authorization API over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/legit-games/dataset-iam/generates"
	"github.com/legit-games/dataset-iam/models"
	"github.com/legit-games/dataset-iam/security"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Directory resolves the users and roles named in requests.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
	GetRoles(ctx context.Context, ids []string) ([]models.Role, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Server Provide dataset authorization endpoints
type Server struct {
	Agent     *security.Agent
	Directory Directory
	Tokens    *generates.JWTAccessGenerate
	TokenTTL  time.Duration
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// NewServer create authorization server
func NewServer(agent *security.Agent, dir Directory, tokens *generates.JWTAccessGenerate) *Server {
	return &Server{
		Agent:     agent,
		Directory: dir,
		Tokens:    tokens,
		TokenTTL:  time.Hour,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    zap.NewNop(),
	}
}

// ListenAndServe serves the gin engine until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewGinEngine(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errC := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", zap.String("addr", addr))
		errC <- srv.ListenAndServe()
	}()
	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
