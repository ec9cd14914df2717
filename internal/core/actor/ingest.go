package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "gem2prom/internal/adapter/actor"
	"gem2prom/internal/config"
	"gem2prom/internal/core/domain"
	"gem2prom/internal/metrics"
	. "gem2prom/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type ListenerActorProvider func() *adactor.GEMListenerActor

type MQTTActorProvider func() *adactor.MQTTActor

// IngestActor is the coordinator: it owns the listener (and optional MQTT)
// children and routes every reading to a per-serial device actor. One actor
// per device keeps per-device ordering while different devices are processed
// concurrently.
type IngestActor struct {
	config   config.Config
	store    *metrics.Store
	behavior actor.Behavior
	stash    *Stash

	listenerActorProvider ListenerActorProvider
	mqttActorProvider     MQTTActorProvider

	listenerActor *actor.PID
	mqttActor     *actor.PID
	deviceActors  map[string]*actor.PID

	packetsTotal uint64
	serialsSeen  map[string]struct{}

	currentHealthCheck healthCheckResult
	logger             *zap.Logger
}

type healthCheckResult struct {
	listenerHealthy bool
	mqttHealthy     bool
	checksExpected  int
	checksReceived  int
	respondTo       *actor.PID
}

func NewIngestActor(config config.Config, store *metrics.Store, listenerActorProvider ListenerActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *IngestActor {
	act := &IngestActor{
		config:                config,
		store:                 store,
		behavior:              actor.NewBehavior(),
		stash:                 &Stash{},
		logger:                ActorLogger(domain.ACTOR_ID_INGEST, logger),
		listenerActorProvider: listenerActorProvider,
		mqttActorProvider:     mqttActorProvider,
		deviceActors:          map[string]*actor.PID{},
		serialsSeen:           map[string]struct{}{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *IngestActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *IngestActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("ingest@starting started")

		// start MQTT child first so device actors can route to it
		if state.config.MQTT.Enabled() {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
		}

		// start listener child
		listenerActorPID, err := state.startListenerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.listenerActor = listenerActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("ingest@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *IngestActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadingReceived:
		state.packetsTotal++
		state.serialsSeen[msg.Reading.Serial] = struct{}{}
		ctx.Send(state.deviceActor(ctx, msg.Reading.Serial), msg)
	case domain.DeviceGone:
		if pid, ok := state.deviceActors[msg.Serial]; ok {
			ctx.Stop(pid)
			delete(state.deviceActors, msg.Serial)
		}
	case domain.IngestStatsRequest:
		ctx.Respond(domain.IngestStatsResponse{
			PacketsTotal: state.packetsTotal,
			DevicesSeen:  len(state.serialsSeen),
		})
	case domain.ActorHealthRequest:
		state.logger.Debug("ingest@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		state.currentHealthCheck.checksExpected = 1
		// Listener Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.listenerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_LISTENER,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		if state.mqttActor != nil {
			state.currentHealthCheck.checksExpected++
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_MQTT,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case *actor.Terminated:
		// the listener cannot recover on its own, treat as fatal
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_INGEST, domain.ACTOR_ID_LISTENER) {
			state.logger.Error("ingest@default listener terminated")
			panic(errors.New("listener terminated"))
		}
	default:
		state.logger.Debug("ingest@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *IngestActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a child that does not answer in time counts as unhealthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("ingest@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_LISTENER {
				state.currentHealthCheck.listenerHealthy = true
			} else if msg.Id == domain.ACTOR_ID_MQTT {
				state.currentHealthCheck.mqttHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("ingest@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// deviceActor returns the per-serial child, spawning it on first sight.
func (state *IngestActor) deviceActor(ctx actor.Context, serial string) *actor.PID {
	if pid, ok := state.deviceActors[serial]; ok {
		return pid
	}
	state.logger.Info("device discovered", zap.String("serial", serial))

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewDeviceActor(serial, &state.config, state.store, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	// auto-generated child name: a device that reconnects may be respawned
	// before its previous incarnation finishes stopping
	pid := ctx.Spawn(props)
	state.deviceActors[serial] = pid
	return pid
}

func (state *IngestActor) startListenerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	listenerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.listenerActorProvider()
	}, actor.WithSupervisor(supervisor))
	listenerActorPID, err := ctx.SpawnNamed(listenerProps, domain.ACTOR_ID_LISTENER)
	if err != nil {
		return nil, err
	}

	return listenerActorPID, nil
}

func (state *IngestActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.listenerHealthy = false
	state.mqttHealthy = false
	state.checksExpected = 0
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	if state.checksExpected > 1 && !state.mqttHealthy {
		return false
	}
	return state.listenerHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_INGEST,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
