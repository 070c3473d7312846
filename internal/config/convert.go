package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/headctl/internal/agent"
)

const (
	EnvMQTTBroker = "MQTT_BROKER"
	EnvMQTTPort   = "MQTT_PORT"
)

func setDuration(meta toml.MetaData, dst *time.Duration, raw string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfig, strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

func applyEnv(cfg *agent.ServiceConfig, getenv func(string) string) error {
	if broker := strings.TrimSpace(getenv(EnvMQTTBroker)); broker != "" {
		cfg.Bus.MQTT.Broker = broker
	}
	if raw := strings.TrimSpace(getenv(EnvMQTTPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: %s=%q is not a port", ErrConfig, EnvMQTTPort, raw)
		}
		cfg.Bus.MQTT.Port = port
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
