// Package admin serves the local HTTP control surface of a head: health,
// readiness, metrics, scene state, and command submission.
package admin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/headctl/internal/auth"
	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/observability"
	"github.com/danmuck/headctl/internal/orchestrator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// Backend is the orchestrator surface the admin API needs.
type Backend interface {
	Snapshot() orchestrator.Snapshot
	Submit(ctx context.Context, env command.Envelope) error
}

type Config struct {
	ID          string
	Addr        string
	CORSOrigins []string
	Version     string
	// Token, when set, is required as a bearer token on command routes.
	Token string
}

type Server struct {
	cfg      Config
	backend  Backend
	builtins []string
	appeared time.Time
	router   *gin.Engine
}

func New(cfg Config, backend Backend, builtins []string) *Server {
	observability.RegisterMetrics()
	if cfg.Version == "" {
		cfg.Version = "0.0.1"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestTelemetry(log.Logger, cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		backend:  backend,
		builtins: builtins,
		appeared: time.Now(),
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
			"version": s.cfg.Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		snap := s.backend.Snapshot()
		status := http.StatusOK
		if !snap.Connected {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   snap.Connected,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
		})
	})

	s.router.GET("/scenes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"snapshot": s.backend.Snapshot(),
			"catalog":  s.builtins,
		})
	})

	var guard auth.Validator
	if s.cfg.Token != "" {
		guard = auth.StaticToken{Token: s.cfg.Token}
	}
	s.router.POST("/commands/:kind", auth.RequireBearer(guard), s.postCommand)
}

func (s *Server) postCommand(c *gin.Context) {
	kind, ok := command.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command kind"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := command.Decode(kind, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env := command.Wrap("admin/"+string(kind), cmd)
	if err := s.backend.Submit(c.Request.Context(), env); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Set(envelopeKey, env.ID)
	log.Info().
		Str("id", env.ID).
		Str("kind", string(kind)).
		Str("scene", cmd.SceneName()).
		Msg("admin.postCommand queued")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "id": env.ID})
}

// Serve listens on cfg.Addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("admin.Server.Serve listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
