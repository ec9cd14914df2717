package actor

import (
	"testing"
	"time"

	"gem2prom/internal/config"
	"gem2prom/internal/core/domain"
	"gem2prom/internal/mqtt"
	"gem2prom/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testMQTTConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "gem",
		},
	}
}

func TestReadingPublishes(t *testing.T) {

	assert := assert.New(t)

	cfg := testMQTTConfig()
	client := mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), nil)

	reading := domain.DeviceReading{
		Serial:  "12345",
		Voltage: 121.04,
		Channels: []domain.ChannelReading{
			{Index: 0, Watts: 450.0},
			{Index: 2, Watts: 33.333},
		},
	}

	pubs := readingPublishes(client, reading)

	assert.Len(pubs, 3)
	assert.Equal("gem/12345/voltage", pubs[0].topic)
	assert.Equal("121.0", pubs[0].payload)
	assert.Equal("gem/12345/channel/1/power", pubs[1].topic)
	assert.Equal("450.00", pubs[1].payload)
	assert.Equal("gem/12345/channel/3/power", pubs[2].topic)
	assert.Equal("33.33", pubs[2].payload)
}

func TestReadingPublishesStopAtChannelCeiling(t *testing.T) {

	assert := assert.New(t)

	cfg := testMQTTConfig()
	client := mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), nil)

	reading := domain.DeviceReading{
		Serial:  "12345",
		Voltage: 120.0,
		Channels: []domain.ChannelReading{
			{Index: 0, Watts: 1},
			{Index: 32, Watts: 2},
			{Index: 1, Watts: 3},
		},
	}

	pubs := readingPublishes(client, reading)

	// voltage plus channel 1 only: index 32 cuts off everything after it
	assert.Len(pubs, 2)
	assert.Equal("gem/12345/channel/1/power", pubs[1].topic)
}

func TestMQTTActor(t *testing.T) {

	cfg := testMQTTConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(cfg, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	context.Stop(pid)

	as.Shutdown()
}
