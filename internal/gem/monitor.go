package gem

import (
	"gem2prom/internal/core/domain"
)

// Monitor tracks one device's cumulative counters across packets and turns
// them into readings with instantaneous per-channel power. The wire carries
// only watt-second accumulators, so power is the counter delta over the
// seconds-counter delta.
type Monitor struct {
	serial string
	prev   *Packet
}

func NewMonitor(serial string) *Monitor {
	return &Monitor{serial: serial}
}

func (m *Monitor) Serial() string {
	return m.serial
}

// Reading folds one packet into the monitor state and returns the resulting
// reading. The first packet from a device only primes the counters: its
// reading carries voltage but no channels, since no rate can be derived yet.
// A channel whose absolute counter went backwards (device reset) is skipped
// for that interval and re-primed.
func (m *Monitor) Reading(pkt *Packet) domain.DeviceReading {
	reading := domain.DeviceReading{
		Serial:  m.serial,
		Voltage: pkt.Voltage,
	}

	prev := m.prev
	m.prev = pkt
	if prev == nil {
		return reading
	}

	elapsed := (int64(pkt.Seconds) - int64(prev.Seconds) + secondsModulo) % secondsModulo
	if elapsed <= 0 {
		return reading
	}

	for i := 0; i < packetChannels; i++ {
		if pkt.Absolute[i] < prev.Absolute[i] {
			continue
		}
		delta := pkt.Absolute[i] - prev.Absolute[i]
		reading.Channels = append(reading.Channels, domain.ChannelReading{
			Index:                i,
			Watts:                float64(delta) / float64(elapsed),
			AbsoluteWattSeconds:  float64(pkt.Absolute[i]),
			PolarizedWattSeconds: float64(pkt.Polarized[i]),
		})
	}
	return reading
}
