package gem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packetAt(seconds uint32, absolute ...uint64) *Packet {
	pkt := &Packet{
		Serial:  "12345",
		Voltage: 120.0,
		Seconds: seconds,
	}
	copy(pkt.Absolute[:], absolute)
	return pkt
}

func TestFirstPacketPrimesCounters(t *testing.T) {
	monitor := NewMonitor("12345")

	reading := monitor.Reading(packetAt(100, 1000))

	assert.Equal(t, "12345", reading.Serial)
	assert.Equal(t, 120.0, reading.Voltage)
	assert.Empty(t, reading.Channels, "no rate can be derived from a single packet")
}

func TestWattsFromCounterDelta(t *testing.T) {
	monitor := NewMonitor("12345")

	monitor.Reading(packetAt(100, 1000))
	reading := monitor.Reading(packetAt(110, 5500))

	// 4500 watt-seconds over 10 seconds
	require.Len(t, reading.Channels, packetChannels)
	assert.Equal(t, 0, reading.Channels[0].Index)
	assert.Equal(t, 450.0, reading.Channels[0].Watts)
	assert.Equal(t, 5500.0, reading.Channels[0].AbsoluteWattSeconds)
}

func TestSecondsCounterWrap(t *testing.T) {
	monitor := NewMonitor("12345")

	monitor.Reading(packetAt(secondsModulo-5, 0))
	reading := monitor.Reading(packetAt(5, 1000))

	require.NotEmpty(t, reading.Channels)
	assert.Equal(t, 100.0, reading.Channels[0].Watts)
}

func TestCounterResetSkipsChannel(t *testing.T) {
	monitor := NewMonitor("12345")

	monitor.Reading(packetAt(100, 5000, 2000))
	reading := monitor.Reading(packetAt(110, 100, 3000))

	// channel 0 went backwards (device reset) and is skipped for this
	// interval; channel 1 is still valid
	require.Len(t, reading.Channels, packetChannels-1)
	assert.Equal(t, 1, reading.Channels[0].Index)
	assert.Equal(t, 100.0, reading.Channels[0].Watts)

	// next interval re-primes channel 0
	reading = monitor.Reading(packetAt(120, 600, 4000))
	require.Len(t, reading.Channels, packetChannels)
	assert.Equal(t, 0, reading.Channels[0].Index)
	assert.Equal(t, 50.0, reading.Channels[0].Watts)
}

func TestDuplicateSecondsProducesNoChannels(t *testing.T) {
	monitor := NewMonitor("12345")

	monitor.Reading(packetAt(100, 1000))
	reading := monitor.Reading(packetAt(100, 2000))

	assert.Empty(t, reading.Channels)
}
