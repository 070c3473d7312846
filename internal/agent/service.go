package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/headctl/internal/admin"
	"github.com/danmuck/headctl/internal/bus"
	"github.com/danmuck/headctl/internal/bus/mqtt"
	"github.com/danmuck/headctl/internal/bus/redisbus"
	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/focus"
	"github.com/danmuck/headctl/internal/observability"
	"github.com/danmuck/headctl/internal/orchestrator"
	"github.com/danmuck/headctl/internal/scene"
	"github.com/danmuck/headctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// Service runs the head agent lifecycle as a standalone process.
type Service struct {
	cfg ServiceConfig

	transport bus.Transport
	channel   *bus.Channel
	host      *display.Host
	orch      *orchestrator.Orchestrator
	admin     *admin.Server
	closers   []io.Closer
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{cfg: cfg.withClientID()}
}

// Run blocks until SIGINT or SIGTERM, then shuts down in order.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(); err != nil {
		return errors.Join(err, s.closeAll())
	}
	return s.serve(ctx)
}

func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

func (s *Service) bootstrap() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	observability.RegisterMetrics()

	transport, err := newTransport(s.cfg.Bus)
	if err != nil {
		return err
	}
	s.transport = transport
	s.closers = append(s.closers, transport)

	channel, err := bus.NewChannel(s.cfg.Bus.Channel, transport)
	if err != nil {
		return err
	}
	s.channel = channel

	delegate, err := focus.Select(s.cfg.FocusBackend, tools.ExecRunner{})
	if err != nil {
		return err
	}

	out, err := s.termOutput()
	if err != nil {
		return err
	}
	s.host = display.NewHost(s.cfg.Host, display.ExecSpawner{Stderr: os.Stderr}, display.NewTermWindows(out))

	catalog := scene.NewCatalog(scene.NewResources())
	orch, err := orchestrator.New(s.cfg.Orchestrator, orchestrator.Deps{
		Host:      s.host,
		Focus:     delegate,
		Catalog:   catalog,
		Source:    channel,
		Publisher: channel,
	})
	if err != nil {
		return err
	}
	s.orch = orch

	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		s.admin = admin.New(admin.Config{
			ID:          s.cfg.Bus.Channel.ClientID,
			Addr:        addr,
			CORSOrigins: s.cfg.CORSOrigins,
			Token:       s.cfg.AdminToken,
		}, orch, catalog.Names())
	}

	log.Info().
		Str("client_id", s.cfg.Bus.Channel.ClientID).
		Str("bus", string(s.cfg.Bus.Kind)).
		Str("focus", delegate.Name()).
		Str("default_scene", s.cfg.Orchestrator.DefaultScene).
		Str("admin", s.cfg.AdminListenAddr).
		Msg("agent.Service.bootstrap ready")
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	adminCtx, cancelAdmin := context.WithCancel(ctx)
	defer cancelAdmin()
	adminErr := make(chan error, 1)
	if s.admin != nil {
		go func() { adminErr <- s.admin.Serve(adminCtx) }()
	} else {
		adminErr <- nil
	}

	runErr := s.orch.Run(ctx)
	cancelAdmin()
	if err := <-adminErr; err != nil {
		log.Warn().Err(err).Msg("agent.Service.serve admin server error")
	}

	err := errors.Join(runErr, s.closeAll())
	log.Info().Err(err).Msg("agent.Service.serve stopped")
	return err
}

func (s *Service) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) termOutput() (io.Writer, error) {
	if s.cfg.Output != nil {
		return s.cfg.Output, nil
	}
	switch target := strings.TrimSpace(s.cfg.TermOutput); target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("agent: open term output: %w", err)
		}
		s.closers = append(s.closers, f)
		return f, nil
	}
}

func newTransport(cfg BusConfig) (bus.Transport, error) {
	switch cfg.Kind {
	case BusMQTT:
		tr, err := mqtt.New(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("agent: mqtt transport: %w", err)
		}
		return tr, nil
	case BusRedis:
		return redisbus.New(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBusKind, cfg.Kind)
	}
}
