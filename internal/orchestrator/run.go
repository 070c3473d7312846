package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/headctl/internal/command"
	"github.com/rs/zerolog/log"
)

// Run starts the command source, switches to the default scene and serves
// the loop until ctx is cancelled, then shuts down in order. With FailFast
// set, the first dispatch error also ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.source != nil {
		busCtx, cancel := context.WithCancel(ctx)
		o.busCancel = cancel
		o.busDone = make(chan error, 1)
		go func() { o.busDone <- o.source.Run(busCtx, o.commands, o.status) }()
	}
	busDone := o.busDone

	if name := o.cfg.DefaultScene; name != "" {
		if err := o.Dispatch(ctx, command.Switch{Name: name}); err != nil {
			log.Warn().Err(err).Str("scene", name).Msg("orchestrator.Run default scene failed")
		}
	}
	log.Info().
		Str("active", o.active.String()).
		Dur("tick", o.cfg.Tick).
		Bool("fail_fast", o.cfg.FailFast).
		Msg("orchestrator.Run ready")

	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case env := <-o.commands:
			if ctx.Err() != nil {
				break loop
			}
			if err := o.handle(ctx, env); err != nil && o.cfg.FailFast {
				runErr = err
				break loop
			}
		case connected := <-o.status:
			o.OnConnectivity(connected)
		case <-ticker.C:
			o.Tick()
		case err := <-busDone:
			// The channel is gone for good; the head keeps its scenes.
			log.Error().Err(err).Msg("orchestrator.Run command channel exited")
			busDone = nil
			o.busDone = nil
			o.OnConnectivity(false)
		}
		o.publishSnapshot()
	}

	return errors.Join(runErr, o.Shutdown(context.Background()))
}

func (o *Orchestrator) handle(ctx context.Context, env command.Envelope) error {
	if env.Command == nil {
		log.Warn().Str("id", env.ID).Msg("orchestrator.handle empty envelope")
		return nil
	}
	err := o.Dispatch(ctx, env.Command)
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("id", env.ID).
		Str("topic", env.Topic).
		Str("kind", string(env.Command.Kind())).
		Str("scene", env.Command.SceneName()).
		Msg("orchestrator.handle dispatched")
	return err
}

// Submit queues a command from a producer other than the bus.
func (o *Orchestrator) Submit(ctx context.Context, env command.Envelope) error {
	select {
	case <-o.stopped:
		return ErrStopped
	default:
	}
	select {
	case o.commands <- env:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels the command source and waits for it, draining both queues
// without dispatching, then stops every running scene. Errors from stopping
// are joined.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.stopped) })
	log.Info().Str("active", o.active.String()).Msg("orchestrator.Shutdown begin")

	if o.busCancel != nil {
		o.busCancel()
	}
	if o.busDone != nil {
		o.awaitSource(ctx)
		o.busDone = nil
	}

	var errs []error
	for _, name := range o.host.Running() {
		if err := o.stop(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	o.publishSnapshot()
	err := errors.Join(errs...)
	log.Info().Err(err).Msg("orchestrator.Shutdown complete")
	return err
}

func (o *Orchestrator) awaitSource(ctx context.Context) {
	timer := time.NewTimer(o.cfg.ShutdownTimeout)
	defer timer.Stop()
	dropped := 0
	for {
		select {
		case err := <-o.busDone:
			if err != nil {
				log.Warn().Err(err).Msg("orchestrator.Shutdown command channel error")
			}
			log.Debug().Int("dropped", dropped).Msg("orchestrator.Shutdown command channel stopped")
			return
		case connected := <-o.status:
			o.OnConnectivity(connected)
		case <-o.commands:
			dropped++
		case <-timer.C:
			log.Warn().Dur("timeout", o.cfg.ShutdownTimeout).Msg("orchestrator.Shutdown command channel did not stop")
			return
		case <-ctx.Done():
			return
		}
	}
}
