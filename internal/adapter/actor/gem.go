package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gem2prom/internal/config"
	"gem2prom/internal/core/domain"
	"gem2prom/internal/gem"
	"gem2prom/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// GEMListenerActor owns the device listen socket. Decoded readings are sent
// to the parent (the ingest actor) as domain.ReadingReceived messages; the
// listener callbacks only enqueue into the mailbox, so slow metric work
// never backpressures the network read path.
type GEMListenerActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	listener *gem.Listener
	cancel   context.CancelFunc
	logger   *zap.Logger
}

func NewGEMListenerActor(config *config.Config, logger *zap.Logger) *GEMListenerActor {
	act := &GEMListenerActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_LISTENER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *GEMListenerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GEMListenerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("listener@starting started")

		parent := ctx.Parent()
		root := ctx.ActorSystem().Root

		state.listener = gem.NewListener(state.config.GEMPort, func(reading domain.DeviceReading) {
			root.Send(parent, domain.ReadingReceived{Reading: reading})
		}, func(serial string) {
			root.Send(parent, domain.DeviceGone{Serial: serial})
		}, state.logger)

		listenCtx, cancel := context.WithCancel(context.Background())
		state.cancel = cancel
		if err := state.listener.Start(listenCtx); err != nil {
			// bind failure is a startup failure, let the parent decide
			panic(err)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("listener@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GEMListenerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("listener@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LISTENER,
			Healthy: true,
			State:   "listening",
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("listener@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GEMListenerActor) stop() {
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	listener := state.listener
	state.listener = nil
	if listener == nil {
		return
	}
	// bounded drain: in-flight connection handlers may finish, but the
	// graceful path must not hang
	actorutil.NewBackgroundTask(func() (*struct{}, error) {
		if !listener.Close(3 * time.Second) {
			return nil, errors.New("listener drain timed out")
		}
		return &struct{}{}, nil
	}).WithTimeout(5 * time.Second).OnError(func(err error) {
		state.logger.Warn("listener stop", zap.Error(err))
	}).OnSuccess(func(struct{}) {
		state.logger.Debug("listener stopped")
	}).Run()
}
