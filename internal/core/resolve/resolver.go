// Package resolve turns one device reading plus the device configuration
// into a list of metric updates. It performs no I/O and touches no
// instrument state, so translation rules stay testable on their own.
package resolve

import (
	"strconv"

	"gem2prom/internal/config"
	"gem2prom/internal/core/domain"
)

// Labels is one label set identifying a time series.
type Labels map[string]string

type PacketIncrement struct {
	Serial string
}

type VoltageUpdate struct {
	Labels Labels
	Volts  float64
}

type PowerUpdate struct {
	Labels Labels
	Watts  float64
}

// Updates describes everything a single reading should do to the metric
// store, in application order: packet counter, voltage, then channels in
// ascending protocol-index order.
type Updates struct {
	Packet  PacketIncrement
	Voltage *VoltageUpdate
	Power   []PowerUpdate
}

// Resolve maps a reading against the configuration. The packet increment is
// always present. Unconfigured devices produce nothing else. Channel
// processing stops entirely at the hardware ceiling: the device reports
// channels in ascending order, so indices past the ceiling carry no data.
func Resolve(reading domain.DeviceReading, cfg *config.Config) Updates {
	updates := Updates{
		Packet: PacketIncrement{Serial: reading.Serial},
	}

	location, configured := cfg.LocationOf(reading.Serial)
	if !configured {
		return updates
	}

	baseLabels := Labels{
		"serial":   reading.Serial,
		"location": location,
	}

	updates.Voltage = &VoltageUpdate{
		Labels: baseLabels,
		Volts:  reading.Voltage,
	}

	for _, channel := range reading.Channels {
		if channel.Index >= config.MaxChannels {
			break
		}
		hw := channel.Index + 1
		extra, ok := cfg.ChannelLabelsOf(reading.Serial, hw)
		if !ok {
			continue
		}
		labels := Labels{
			"serial":   reading.Serial,
			"location": location,
			"channel":  strconv.Itoa(hw),
		}
		for k, v := range extra {
			labels[k] = v
		}
		updates.Power = append(updates.Power, PowerUpdate{
			Labels: labels,
			Watts:  channel.Watts,
		})
	}

	return updates
}
