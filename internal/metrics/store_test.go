package metrics

import (
	"testing"

	"gem2prom/internal/core/resolve"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore("testhost", []string{"circuit", "phase"})
}

func TestPacketsCounterAdds(t *testing.T) {
	store := testStore()

	store.IncPackets("12345")
	store.IncPackets("12345")
	store.IncPackets("67890")

	assert.Equal(t, 2.0, testutil.ToFloat64(store.packets.With(prometheus.Labels{"serial": "12345"})))
	assert.Equal(t, 1.0, testutil.ToFloat64(store.packets.With(prometheus.Labels{"serial": "67890"})))
}

func TestGaugesOverwrite(t *testing.T) {
	store := testStore()
	labels := resolve.Labels{"serial": "12345", "location": "garage"}

	store.SetVoltage(labels, 121.0)
	store.SetVoltage(labels, 119.5)

	assert.Equal(t, 119.5, testutil.ToFloat64(store.voltage.With(prometheus.Labels(labels))))
}

func TestPowerLabelsFilledToFixedNameSet(t *testing.T) {
	store := testStore()

	// sample carries only one of the two configured extra keys
	store.SetPower(resolve.Labels{
		"serial":   "12345",
		"location": "garage",
		"channel":  "1",
		"circuit":  "oven",
	}, 450.0)

	value := testutil.ToFloat64(store.power.With(prometheus.Labels{
		"serial":   "12345",
		"location": "garage",
		"channel":  "1",
		"circuit":  "oven",
		"phase":    "",
	}))
	assert.Equal(t, 450.0, value)
}

func TestApplyAppliesEverything(t *testing.T) {
	store := testStore()

	store.Apply(resolve.Updates{
		Packet: resolve.PacketIncrement{Serial: "12345"},
		Voltage: &resolve.VoltageUpdate{
			Labels: resolve.Labels{"serial": "12345", "location": "garage"},
			Volts:  121.0,
		},
		Power: []resolve.PowerUpdate{
			{
				Labels: resolve.Labels{"serial": "12345", "location": "garage", "channel": "1", "circuit": "oven"},
				Watts:  450.0,
			},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(store.packets.With(prometheus.Labels{"serial": "12345"})))
	assert.Equal(t, 121.0, testutil.ToFloat64(store.voltage.With(prometheus.Labels{"serial": "12345", "location": "garage"})))

	count, err := testutil.GatherAndCount(store.Registry(), "gem_ac_power")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestApplyCounterOnlyUpdates(t *testing.T) {
	store := testStore()

	// unconfigured devices resolve to a bare packet increment
	store.Apply(resolve.Updates{
		Packet: resolve.PacketIncrement{Serial: "99999"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(store.packets.With(prometheus.Labels{"serial": "99999"})))

	voltages, err := testutil.GatherAndCount(store.Registry(), "gem_ac_voltage")
	require.NoError(t, err)
	assert.Equal(t, 0, voltages)
}
