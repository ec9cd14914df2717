package actor

import (
	"fmt"

	"gem2prom/internal/config"
	"gem2prom/internal/core/domain"
	"gem2prom/internal/core/resolve"
	"gem2prom/internal/metrics"
	"gem2prom/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// DeviceActor handles every reading of one serial. Resolution plus store
// application is fast synchronous work, so it runs directly on the mailbox;
// a slow device can only ever delay itself.
type DeviceActor struct {
	serial    string
	config    *config.Config
	store     *metrics.Store
	mqttActor *actor.PID
	logger    *zap.Logger

	warnedLocation bool
	warnedChannels map[int]bool
}

func NewDeviceActor(serial string, config *config.Config, store *metrics.Store, mqttActor *actor.PID, logger *zap.Logger) *DeviceActor {
	return &DeviceActor{
		serial:         serial,
		config:         config,
		store:          store,
		mqttActor:      mqttActor,
		logger:         actorutil.ActorLogger("device-"+serial, logger),
		warnedChannels: map[int]bool{},
	}
}

func (state *DeviceActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@started")
	case domain.ReadingReceived:
		state.handleReading(ctx, msg)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      "device-" + state.serial,
			Healthy: true,
		})
	default:
		state.logger.Debug("device@ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DeviceActor) handleReading(ctx actor.Context, msg domain.ReadingReceived) {
	reading := msg.Reading

	state.logger.Debug("reading",
		zap.Float64("voltage", reading.Voltage),
		zap.Int("channels", len(reading.Channels)))

	updates := resolve.Resolve(reading, state.config)
	state.store.Apply(updates)

	state.reportIncomplete(reading)

	if state.mqttActor != nil {
		ctx.Send(state.mqttActor, msg)
	}
}

// reportIncomplete logs configured-but-incomplete entries once per device or
// channel. Unconfigured devices only rate a debug line, they just count
// packets.
func (state *DeviceActor) reportIncomplete(reading domain.DeviceReading) {
	location, configured := state.config.LocationOf(state.serial)
	if !configured {
		state.logger.Debug("device not configured, counting packets only")
		return
	}
	if location == "" && !state.warnedLocation {
		state.warnedLocation = true
		state.logger.Warn("configured device has no location, using empty label")
	}
	for _, channel := range reading.Channels {
		if channel.Index >= config.MaxChannels {
			break
		}
		hw := channel.Index + 1
		if state.warnedChannels[hw] {
			continue
		}
		if labels, ok := state.config.ChannelLabelsOf(state.serial, hw); ok && len(labels) == 0 {
			state.warnedChannels[hw] = true
			state.logger.Warn("configured channel has no extra labels", zap.Int("channel", hw))
		}
	}
}
