// Package config loads and renders the headctl TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/headctl/internal/agent"
	"github.com/danmuck/headctl/internal/bus/mqtt"
	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/scene"
	"github.com/rs/zerolog/log"
)

var ErrConfig = errors.New("config: invalid")

type fileConfig struct {
	Bus          busFile          `toml:"bus"`
	Display      displayFile      `toml:"display"`
	Focus        focusFile        `toml:"focus"`
	Admin        adminFile        `toml:"admin"`
	Orchestrator orchestratorFile `toml:"orchestrator"`
}

type busFile struct {
	Kind         string      `toml:"kind"`
	Broker       string      `toml:"broker"`
	Port         int         `toml:"port"`
	Username     string      `toml:"username"`
	Password     string      `toml:"password"`
	TopicPrefix  string      `toml:"topic_prefix"`
	ClientPrefix string      `toml:"client_prefix"`
	KeepAlive    string      `toml:"keep_alive"`
	QueueSize    int         `toml:"queue_size"`
	Backoff      backoffFile `toml:"backoff"`
	Redis        redisFile   `toml:"redis"`
	TLS          tlsFile     `toml:"tls"`
}

type backoffFile struct {
	InitialDelay   string  `toml:"initial_delay"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelay       string  `toml:"max_delay"`
	ErrorThreshold int     `toml:"error_threshold"`
	Ceiling        string  `toml:"ceiling"`
	MaxEscalations int     `toml:"max_escalations"`
}

type tlsFile struct {
	Enabled            bool   `toml:"enabled"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type redisFile struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type displayFile struct {
	DefaultScene   string `toml:"default_scene"`
	Tick           string `toml:"tick"`
	TerminateGrace string `toml:"terminate_grace"`
	Output         string `toml:"output"`
}

type focusFile struct {
	Backend string `toml:"backend"`
}

type adminFile struct {
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type orchestratorFile struct {
	FailFast      bool `toml:"fail_fast"`
	PublishStatus bool `toml:"publish_status"`
}

// Load reads path over agent.DefaultServiceConfig. Only keys present in the
// file override defaults. An empty path yields defaults. MQTT_BROKER and
// MQTT_PORT override the file.
func Load(path string) (agent.ServiceConfig, error) {
	cfg := agent.DefaultServiceConfig()
	if strings.TrimSpace(path) != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return agent.ServiceConfig{}, fmt.Errorf("load config (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			log.Warn().Str("path", path).Str("keys", fmt.Sprint(undecoded)).Msg("config.Load unknown keys ignored")
		}
		if err := apply(&cfg, raw, meta); err != nil {
			return agent.ServiceConfig{}, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return agent.ServiceConfig{}, err
	}
	checkDefaultScene(&cfg)
	if err := cfg.Validate(); err != nil {
		return agent.ServiceConfig{}, err
	}
	return cfg, nil
}

func apply(cfg *agent.ServiceConfig, raw fileConfig, meta toml.MetaData) error {
	b := raw.Bus
	if meta.IsDefined("bus", "kind") {
		cfg.Bus.Kind = agent.BusKind(strings.ToLower(strings.TrimSpace(b.Kind)))
	}
	if meta.IsDefined("bus", "broker") {
		cfg.Bus.MQTT.Broker = strings.TrimSpace(b.Broker)
	}
	if meta.IsDefined("bus", "port") {
		cfg.Bus.MQTT.Port = b.Port
	}
	if meta.IsDefined("bus", "username") {
		cfg.Bus.MQTT.Username = b.Username
	}
	if meta.IsDefined("bus", "password") {
		cfg.Bus.MQTT.Password = b.Password
	}
	if meta.IsDefined("bus", "topic_prefix") {
		cfg.Bus.Channel.Topics = command.NewTopics(b.TopicPrefix)
	}
	if meta.IsDefined("bus", "client_prefix") {
		cfg.Bus.ClientPrefix = strings.TrimSpace(b.ClientPrefix)
	}
	if err := setDuration(meta, &cfg.Bus.MQTT.KeepAlive, b.KeepAlive, "bus", "keep_alive"); err != nil {
		return err
	}
	if meta.IsDefined("bus", "queue_size") {
		cfg.Orchestrator.QueueSize = b.QueueSize
	}

	bo := &cfg.Bus.Channel.Backoff
	if err := setDuration(meta, &bo.InitialDelay, b.Backoff.InitialDelay, "bus", "backoff", "initial_delay"); err != nil {
		return err
	}
	if meta.IsDefined("bus", "backoff", "multiplier") {
		bo.Multiplier = b.Backoff.Multiplier
	}
	if err := setDuration(meta, &bo.MaxDelay, b.Backoff.MaxDelay, "bus", "backoff", "max_delay"); err != nil {
		return err
	}
	if meta.IsDefined("bus", "backoff", "error_threshold") {
		bo.ErrorThreshold = b.Backoff.ErrorThreshold
	}
	if err := setDuration(meta, &bo.Ceiling, b.Backoff.Ceiling, "bus", "backoff", "ceiling"); err != nil {
		return err
	}
	if meta.IsDefined("bus", "backoff", "max_escalations") {
		bo.MaxEscalations = b.Backoff.MaxEscalations
	}

	if meta.IsDefined("bus", "redis", "addr") {
		cfg.Bus.Redis.Addr = strings.TrimSpace(b.Redis.Addr)
	}
	if meta.IsDefined("bus", "redis", "password") {
		cfg.Bus.Redis.Password = b.Redis.Password
	}
	if meta.IsDefined("bus", "redis", "db") {
		cfg.Bus.Redis.DB = b.Redis.DB
	}

	if meta.IsDefined("bus", "tls") {
		cfg.Bus.MQTT.TLS = mqtt.TLSConfig{
			Enabled:            b.TLS.Enabled,
			CAFile:             strings.TrimSpace(b.TLS.CAFile),
			CertFile:           strings.TrimSpace(b.TLS.CertFile),
			KeyFile:            strings.TrimSpace(b.TLS.KeyFile),
			ServerName:         strings.TrimSpace(b.TLS.ServerName),
			InsecureSkipVerify: b.TLS.InsecureSkipVerify,
		}
	}

	d := raw.Display
	if meta.IsDefined("display", "default_scene") {
		cfg.Orchestrator.DefaultScene = strings.TrimSpace(d.DefaultScene)
	}
	if err := setDuration(meta, &cfg.Orchestrator.Tick, d.Tick, "display", "tick"); err != nil {
		return err
	}
	if err := setDuration(meta, &cfg.Host.TerminateGrace, d.TerminateGrace, "display", "terminate_grace"); err != nil {
		return err
	}
	if meta.IsDefined("display", "output") {
		cfg.TermOutput = strings.TrimSpace(d.Output)
	}

	if meta.IsDefined("focus", "backend") {
		cfg.FocusBackend = strings.TrimSpace(raw.Focus.Backend)
	}
	if meta.IsDefined("admin", "listen") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.Admin.Listen)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.Admin.CORSOrigins)
	}
	if meta.IsDefined("admin", "token") {
		cfg.AdminToken = strings.TrimSpace(raw.Admin.Token)
	}
	if meta.IsDefined("orchestrator", "fail_fast") {
		cfg.Orchestrator.FailFast = raw.Orchestrator.FailFast
	}
	if meta.IsDefined("orchestrator", "publish_status") {
		cfg.Orchestrator.PublishStatus = raw.Orchestrator.PublishStatus
	}
	return nil
}

// checkDefaultScene falls back to idle when the default is not a built-in.
func checkDefaultScene(cfg *agent.ServiceConfig) {
	name := cfg.Orchestrator.DefaultScene
	if name == "" || slices.Contains(scene.Builtins(), name) {
		return
	}
	log.Warn().
		Str("default_scene", name).
		Strs("builtins", scene.Builtins()).
		Msg("config.Load unknown default scene, using idle")
	cfg.Orchestrator.DefaultScene = scene.Idle
}
