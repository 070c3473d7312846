package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/headctl/internal/command"
	"github.com/danmuck/headctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransportClosed  = errors.New("bus: transport event stream closed")
	ErrRetriesExhausted = errors.New("bus: reconnect retries exhausted")
	ErrNilTransport     = errors.New("bus: nil transport")
)

type Config struct {
	ClientID         string
	Topics           command.Topics
	Backoff          BackoffConfig
	SubscribeTimeout time.Duration
	PublishTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClientID:         ClientID(DefaultClientPrefix),
		Topics:           command.NewTopics(command.DefaultTopicPrefix),
		Backoff:          DefaultBackoffConfig(),
		SubscribeTimeout: 5 * time.Second,
		PublishTimeout:   2 * time.Second,
	}
}

// Channel consumes Transport events and feeds the orchestrator's command and
// connectivity queues. Run must be called at most once.
type Channel struct {
	cfg       Config
	transport Transport
	backoff   *Backoff
	state     atomic.Int32
}

func NewChannel(cfg Config, transport Transport) (*Channel, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if cfg.Topics.Prefix == "" {
		cfg.Topics = command.NewTopics(command.DefaultTopicPrefix)
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, err
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	c := &Channel{
		cfg:       cfg,
		transport: transport,
		backoff:   NewBackoff(cfg.Backoff),
	}
	c.state.Store(int32(StateDisconnected))
	return c, nil
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

// Run drives the bus session until ctx is cancelled. The caller must keep
// draining status until Run returns; the final false is sent unconditionally.
func (c *Channel) Run(ctx context.Context, commands chan<- command.Envelope, status chan<- bool) error {
	c.setState(StateConnecting)
	log.Info().
		Str("client_id", c.cfg.ClientID).
		Str("filter", c.cfg.Topics.Filter()).
		Msg("bus.Channel.Run connecting")
	if err := c.transport.Connect(ctx); err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("bus: connect: %w", err)
	}

	events := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return c.shutdown(status)
		case ev, ok := <-events:
			if !ok {
				c.setState(StateStopped)
				c.emit(ctx, status, false)
				log.Error().Msg("bus.Channel.Run transport event stream closed")
				return ErrTransportClosed
			}
			if err := c.handle(ctx, ev, commands, status); err != nil {
				c.setState(StateStopped)
				return err
			}
			if ctx.Err() != nil {
				return c.shutdown(status)
			}
		}
	}
}

// PublishStatus reports a scene status on <prefix>/status/<name>.
func (c *Channel) PublishStatus(ctx context.Context, name, status string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()
	topic := c.cfg.Topics.Status(name)
	if err := c.transport.Publish(ctx, topic, []byte(status)); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	return nil
}

func (c *Channel) handle(ctx context.Context, ev Event, commands chan<- command.Envelope, status chan<- bool) error {
	switch ev.Kind {
	case EventConnected:
		return c.onConnected(ctx, status)
	case EventMessage:
		c.onMessage(ctx, ev, commands)
		return nil
	case EventError:
		return c.onError(ctx, ev.Err, status)
	default:
		log.Warn().Int("kind", int(ev.Kind)).Msg("bus.Channel.handle ignoring unknown event")
		return nil
	}
}

func (c *Channel) onConnected(ctx context.Context, status chan<- bool) error {
	c.backoff.Reset()
	filter := c.cfg.Topics.Filter()
	subCtx, cancel := context.WithTimeout(ctx, c.cfg.SubscribeTimeout)
	err := c.transport.Subscribe(subCtx, filter)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return c.onError(ctx, fmt.Errorf("subscribe %s: %w", filter, err), status)
	}
	c.setState(StateConnected)
	log.Info().
		Str("client_id", c.cfg.ClientID).
		Str("filter", filter).
		Msg("bus.Channel.onConnected subscribed")
	c.emit(ctx, status, true)
	return nil
}

func (c *Channel) onMessage(ctx context.Context, ev Event, commands chan<- command.Envelope) {
	c.backoff.Reset()
	kind, err := c.cfg.Topics.Classify(ev.Topic)
	if err != nil {
		observability.RecordBusMessage("unknown_topic")
		log.Warn().Err(err).Str("topic", ev.Topic).Msg("bus.Channel.onMessage dropped")
		return
	}
	cmd, err := command.Decode(kind, ev.Payload)
	if err != nil {
		observability.RecordBusMessage("decode_error")
		log.Warn().
			Err(err).
			Str("topic", ev.Topic).
			Int("payload_len", len(ev.Payload)).
			Msg("bus.Channel.onMessage dropped")
		return
	}

	env := command.Wrap(ev.Topic, cmd)
	select {
	case commands <- env:
		observability.RecordBusMessage("forwarded")
		log.Debug().
			Str("id", env.ID).
			Str("kind", string(kind)).
			Str("scene", cmd.SceneName()).
			Msg("bus.Channel.onMessage forwarded")
	case <-ctx.Done():
	}
}

func (c *Channel) onError(ctx context.Context, cause error, status chan<- bool) error {
	c.setState(StateDegraded)
	c.emit(ctx, status, false)

	step := c.backoff.Failure()
	observability.RecordBusTransportError(step.Escalated)
	if step.Exhausted {
		log.Error().Err(cause).Msg("bus.Channel.onError retries exhausted")
		return fmt.Errorf("%w: %v", ErrRetriesExhausted, cause)
	}
	log.Warn().
		Err(cause).
		Int("failures", step.Failures).
		Bool("escalated", step.Escalated).
		Dur("delay", step.Delay).
		Msg("bus.Channel.onError backing off")

	if !sleepContext(ctx, step.Delay) {
		return nil
	}
	c.setState(StateConnecting)
	if err := c.transport.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("bus.Channel.onError resume failed")
	}
	return nil
}

func (c *Channel) shutdown(status chan<- bool) error {
	c.setState(StateShuttingDown)
	status <- false
	c.setState(StateStopped)
	log.Info().Str("client_id", c.cfg.ClientID).Msg("bus.Channel.shutdown complete")
	return nil
}

func (c *Channel) emit(ctx context.Context, status chan<- bool, connected bool) {
	select {
	case status <- connected:
	case <-ctx.Done():
	}
}

func (c *Channel) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	observability.SetBusState(next.String())
	if prev != next {
		log.Debug().
			Str("from", prev.String()).
			Str("to", next.String()).
			Msg("bus.Channel state")
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
