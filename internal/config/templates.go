package config

import (
	"fmt"
	"os"

	"github.com/danmuck/headctl/internal/agent"
	"github.com/pelletier/go-toml/v2"
)

// Render writes cfg in the file layout Load reads.
func Render(cfg agent.ServiceConfig) ([]byte, error) {
	bo := cfg.Bus.Channel.Backoff
	raw := fileConfig{
		Bus: busFile{
			Kind:         string(cfg.Bus.Kind),
			Broker:       cfg.Bus.MQTT.Broker,
			Port:         cfg.Bus.MQTT.Port,
			Username:     cfg.Bus.MQTT.Username,
			Password:     cfg.Bus.MQTT.Password,
			TopicPrefix:  cfg.Bus.Channel.Topics.Prefix,
			ClientPrefix: cfg.Bus.ClientPrefix,
			KeepAlive:    cfg.Bus.MQTT.KeepAlive.String(),
			QueueSize:    cfg.Orchestrator.QueueSize,
			Backoff: backoffFile{
				InitialDelay:   bo.InitialDelay.String(),
				Multiplier:     bo.Multiplier,
				MaxDelay:       bo.MaxDelay.String(),
				ErrorThreshold: bo.ErrorThreshold,
				Ceiling:        bo.Ceiling.String(),
				MaxEscalations: bo.MaxEscalations,
			},
			TLS: tlsFile{
				Enabled:            cfg.Bus.MQTT.TLS.Enabled,
				CAFile:             cfg.Bus.MQTT.TLS.CAFile,
				CertFile:           cfg.Bus.MQTT.TLS.CertFile,
				KeyFile:            cfg.Bus.MQTT.TLS.KeyFile,
				ServerName:         cfg.Bus.MQTT.TLS.ServerName,
				InsecureSkipVerify: cfg.Bus.MQTT.TLS.InsecureSkipVerify,
			},
			Redis: redisFile{
				Addr:     cfg.Bus.Redis.Addr,
				Password: cfg.Bus.Redis.Password,
				DB:       cfg.Bus.Redis.DB,
			},
		},
		Display: displayFile{
			DefaultScene:   cfg.Orchestrator.DefaultScene,
			Tick:           cfg.Orchestrator.Tick.String(),
			TerminateGrace: cfg.Host.TerminateGrace.String(),
			Output:         cfg.TermOutput,
		},
		Focus: focusFile{Backend: cfg.FocusBackend},
		Admin: adminFile{
			Listen:      cfg.AdminListenAddr,
			CORSOrigins: normalizeList(cfg.CORSOrigins),
			Token:       cfg.AdminToken,
		},
		Orchestrator: orchestratorFile{
			FailFast:      cfg.Orchestrator.FailFast,
			PublishStatus: cfg.Orchestrator.PublishStatus,
		},
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	out, err := Render(agent.DefaultServiceConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
