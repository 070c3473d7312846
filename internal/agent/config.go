package agent

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/danmuck/headctl/internal/bus"
	"github.com/danmuck/headctl/internal/bus/mqtt"
	"github.com/danmuck/headctl/internal/bus/redisbus"
	"github.com/danmuck/headctl/internal/display"
	"github.com/danmuck/headctl/internal/focus"
	"github.com/danmuck/headctl/internal/orchestrator"
	"github.com/danmuck/headctl/internal/scene"
)

var (
	ErrInvalidBusKind = errors.New("agent: invalid bus kind")
	ErrInvalidConfig  = errors.New("agent: invalid config")
)

type BusKind string

const (
	BusMQTT  BusKind = "mqtt"
	BusRedis BusKind = "redis"
)

type BusConfig struct {
	Kind         BusKind
	ClientPrefix string
	Channel      bus.Config
	MQTT         mqtt.Config
	Redis        redisbus.Config
}

// ServiceConfig configures one head agent process.
type ServiceConfig struct {
	Bus             BusConfig
	Host            display.HostConfig
	Orchestrator    orchestrator.Config
	FocusBackend    string
	AdminListenAddr string
	CORSOrigins     []string
	AdminToken      string
	// TermOutput names where built-in frames are drawn: "stdout", "stderr"
	// or a file path. Output, when set, takes precedence.
	TermOutput string
	Output     io.Writer
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Bus: BusConfig{
			Kind:         BusMQTT,
			ClientPrefix: bus.DefaultClientPrefix,
			Channel:      bus.DefaultConfig(),
			MQTT:         mqtt.DefaultConfig(),
			Redis:        redisbus.DefaultConfig(),
		},
		Host:         display.DefaultHostConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		FocusBackend: focus.BackendAuto,
		TermOutput:   "stdout",
	}
}

func (c ServiceConfig) Validate() error {
	switch c.Bus.Kind {
	case BusMQTT:
		if strings.TrimSpace(c.Bus.MQTT.Broker) == "" {
			return fmt.Errorf("%w: mqtt broker required", ErrInvalidConfig)
		}
		if c.Bus.MQTT.Port < 0 || c.Bus.MQTT.Port > 65535 {
			return fmt.Errorf("%w: mqtt port %d out of range", ErrInvalidConfig, c.Bus.MQTT.Port)
		}
		if err := c.Bus.MQTT.TLS.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	case BusRedis:
		if strings.TrimSpace(c.Bus.Redis.Addr) == "" {
			return fmt.Errorf("%w: redis addr required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBusKind, c.Bus.Kind)
	}
	if err := c.Bus.Channel.Backoff.Validate(); err != nil {
		return err
	}
	if c.Orchestrator.Tick <= 0 {
		return fmt.Errorf("%w: tick must be > 0", ErrInvalidConfig)
	}
	if c.Orchestrator.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be > 0", ErrInvalidConfig)
	}
	if c.Host.TerminateGrace < 0 {
		return fmt.Errorf("%w: terminate grace must be >= 0", ErrInvalidConfig)
	}
	if name := c.Orchestrator.DefaultScene; name != "" && !slices.Contains(scene.Builtins(), name) {
		return fmt.Errorf("%w: default scene %q is not a built-in", ErrInvalidConfig, name)
	}
	return nil
}

// withClientID resolves the bus identity into every transport config.
func (c ServiceConfig) withClientID() ServiceConfig {
	id := bus.ClientID(c.Bus.ClientPrefix)
	c.Bus.Channel.ClientID = id
	c.Bus.MQTT.ClientID = id
	if c.Bus.MQTT.KeepAlive <= 0 {
		c.Bus.MQTT.KeepAlive = mqtt.DefaultKeepAlive
	}
	if c.Bus.Channel.SubscribeTimeout <= 0 {
		c.Bus.Channel.SubscribeTimeout = 5 * time.Second
	}
	return c
}
