// Package mqtt implements bus.Transport over an MQTT 3.1.1 broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/headctl/internal/bus"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("mqtt: transport closed")

const (
	DefaultPort      = 1883
	DefaultKeepAlive = 5 * time.Second
)

type Config struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	QoS            byte
	EventBuffer    int
	TLS            TLSConfig
}

func DefaultConfig() Config {
	return Config{
		Broker:         "localhost",
		Port:           DefaultPort,
		ClientID:       bus.ClientID(bus.DefaultClientPrefix),
		KeepAlive:      DefaultKeepAlive,
		ConnectTimeout: 10 * time.Second,
		QoS:            1,
		EventBuffer:    64,
	}
}

// BrokerURL accepts either a bare host or a full scheme://host:port URL.
// Bare hosts get ssl:// when TLS is enabled.
func (c Config) BrokerURL() string {
	broker := strings.TrimSpace(c.Broker)
	if strings.Contains(broker, "://") {
		return broker
	}
	if broker == "" {
		broker = "localhost"
	}
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	scheme := "tcp://"
	if c.TLS.Enabled {
		scheme = "ssl://"
	}
	return scheme + broker + ":" + strconv.Itoa(port)
}

// Transport is a persistent MQTT session. Subscriptions are registered
// without a route callback so every publish goes through one handler.
type Transport struct {
	cfg    Config
	client paho.Client
	events chan bus.Event

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	closeErr sync.Once

	connectMu  sync.Mutex
	connecting bool
}

func New(cfg Config) (*Transport, error) {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	t := &Transport{
		cfg:    cfg,
		events: make(chan bus.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
	opts, err := t.clientOptions()
	if err != nil {
		return nil, err
	}
	t.client = paho.NewClient(opts)
	return t, nil
}

func (t *Transport) clientOptions() (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.BrokerURL()).
		SetClientID(t.cfg.ClientID).
		SetCleanSession(false).
		SetKeepAlive(t.cfg.KeepAlive).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetDefaultPublishHandler(t.onMessage).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(func(_ paho.Client, opts *paho.ClientOptions) {
			log.Debug().Str("client_id", opts.ClientID).Msg("mqtt.Transport reconnecting")
		})
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.TLS.Enabled {
		host := "localhost"
		if len(opts.Servers) > 0 {
			host = opts.Servers[0].Hostname()
		}
		tlsCfg, err := t.cfg.TLS.clientConfig(host)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (t *Transport) Events() <-chan bus.Event {
	return t.events
}

// Connect starts a connection attempt unless the client is connected or
// already reconnecting on its own. The result arrives as an event.
func (t *Transport) Connect(ctx context.Context) error {
	if t.isClosed() {
		return ErrClosed
	}
	if t.client.IsConnected() {
		return nil
	}
	t.connectMu.Lock()
	if t.connecting {
		t.connectMu.Unlock()
		return nil
	}
	t.connecting = true
	t.connectMu.Unlock()

	log.Info().
		Str("broker", t.cfg.BrokerURL()).
		Str("client_id", t.cfg.ClientID).
		Msg("mqtt.Transport.Connect dialing")
	token := t.client.Connect()
	go func() {
		defer func() {
			t.connectMu.Lock()
			t.connecting = false
			t.connectMu.Unlock()
		}()
		select {
		case <-token.Done():
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
		if err := token.Error(); err != nil {
			t.emit(bus.Event{Kind: bus.EventError, Err: fmt.Errorf("mqtt connect: %w", err)})
		}
	}()
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, filter string) error {
	return t.wait(ctx, t.client.Subscribe(filter, t.cfg.QoS, nil))
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.wait(ctx, t.client.Publish(topic, t.cfg.QoS, false, payload))
}

func (t *Transport) Close() error {
	t.closeErr.Do(func() {
		close(t.done)
		if t.client.IsConnectionOpen() {
			t.client.Disconnect(250)
		}
		t.mu.Lock()
		t.closed = true
		close(t.events)
		t.mu.Unlock()
		log.Info().Str("client_id", t.cfg.ClientID).Msg("mqtt.Transport.Close done")
	})
	return nil
}

func (t *Transport) wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrClosed
	}
}

func (t *Transport) onConnect(paho.Client) {
	t.emit(bus.Event{Kind: bus.EventConnected})
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.emit(bus.Event{Kind: bus.EventError, Err: fmt.Errorf("mqtt connection lost: %w", err)})
}

func (t *Transport) onMessage(_ paho.Client, msg paho.Message) {
	t.emit(bus.Event{Kind: bus.EventMessage, Topic: msg.Topic(), Payload: msg.Payload()})
}

func (t *Transport) emit(ev bus.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
