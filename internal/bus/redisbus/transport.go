// Package redisbus implements bus.Transport over Redis pub/sub.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/headctl/internal/bus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed       = errors.New("redisbus: transport closed")
	ErrNotConnected = errors.New("redisbus: not connected")
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{Addr: "localhost:6379", EventBuffer: 64}
}

// Transport receives on a single pub/sub connection. After a receive error
// the loop parks until Connect asks it to resume, so a dead server yields one
// error per backoff step rather than a stream.
type Transport struct {
	cfg    Config
	client *redis.Client
	events chan bus.Event
	resume chan struct{}

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	mu      sync.Mutex
	pubsub  *redis.PubSub
	filters map[string]struct{}
	started bool

	emitMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func New(cfg Config) *Transport {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(cfg, client)
}

func NewWithClient(cfg Config, client *redis.Client) *Transport {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:        cfg,
		client:     client,
		events:     make(chan bus.Event, cfg.EventBuffer),
		resume:     make(chan struct{}, 1),
		loopCtx:    ctx,
		loopCancel: cancel,
		loopDone:   make(chan struct{}),
		filters:    make(map[string]struct{}),
	}
}

func (t *Transport) Events() <-chan bus.Event {
	return t.events
}

// Connect starts the receive loop on first use and otherwise wakes a loop
// parked after an error.
func (t *Transport) Connect(context.Context) error {
	if t.loopCtx.Err() != nil {
		return ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		t.started = true
		t.pubsub = t.client.PSubscribe(t.loopCtx)
		log.Info().Str("addr", t.cfg.Addr).Msg("redisbus.Transport.Connect starting receive loop")
		go t.receive(t.pubsub)
		return nil
	}
	select {
	case t.resume <- struct{}{}:
	default:
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, filter string) error {
	t.mu.Lock()
	ps := t.pubsub
	t.filters[filter] = struct{}{}
	t.mu.Unlock()
	if ps == nil {
		return ErrNotConnected
	}
	if err := ps.PSubscribe(ctx, globFor(filter)); err != nil {
		return fmt.Errorf("redisbus: psubscribe %s: %w", filter, err)
	}
	return nil
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.loopCancel()
		t.mu.Lock()
		ps, started := t.pubsub, t.started
		t.mu.Unlock()
		if ps != nil {
			err = errors.Join(err, ps.Close())
		}
		if started {
			<-t.loopDone
		}
		t.emitMu.Lock()
		t.closed = true
		close(t.events)
		t.emitMu.Unlock()
		err = errors.Join(err, t.client.Close())
	})
	return err
}

func (t *Transport) receive(ps *redis.PubSub) {
	defer close(t.loopDone)
	ctx := t.loopCtx
	degraded := true
	if err := ps.Ping(ctx); err != nil {
		log.Debug().Err(err).Msg("redisbus.Transport.receive initial ping failed")
	}
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			degraded = true
			t.emit(bus.Event{Kind: bus.EventError, Err: fmt.Errorf("redisbus: receive: %w", err)})
			select {
			case <-t.resume:
			case <-ctx.Done():
				return
			}
			if err := ps.Ping(ctx); err != nil {
				log.Debug().Err(err).Msg("redisbus.Transport.receive resume ping failed")
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription, *redis.Pong:
			if degraded {
				degraded = false
				t.emit(bus.Event{Kind: bus.EventConnected})
			}
		case *redis.Message:
			if !t.wanted(m.Channel) {
				continue
			}
			t.emit(bus.Event{Kind: bus.EventMessage, Topic: m.Channel, Payload: []byte(m.Payload)})
		}
	}
}

func (t *Transport) wanted(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for filter := range t.filters {
		if matchFilter(filter, topic) {
			return true
		}
	}
	return false
}

func (t *Transport) emit(ev bus.Event) {
	t.emitMu.RLock()
	defer t.emitMu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	case <-t.loopCtx.Done():
	}
}
