package metrics

import (
	"net/http"

	"gem2prom/internal/core/resolve"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store owns the three exported instruments. Instruments are created and
// registered once; only their per-label-set values change afterwards. The
// underlying vecs synchronize concurrent writers, so updates for different
// devices may be applied from different actors without extra locking.
type Store struct {
	registry *prometheus.Registry

	packets *prometheus.CounterVec
	voltage *prometheus.GaugeVec
	power   *prometheus.GaugeVec

	// powerLabelNames is the fixed label-name set of the power gauge:
	// serial, location, channel plus every configured extra label key.
	powerLabelNames []string
}

// NewStore builds and registers the instruments. host becomes a constant
// label on all of them. extraLabelKeys fixes the extra dimensions of the
// power gauge; samples lacking one of these keys carry it with an empty
// value so the label-name set stays stable.
func NewStore(host string, extraLabelKeys []string) *Store {
	constLabels := prometheus.Labels{"host": host}

	powerLabelNames := append([]string{"serial", "location", "channel"}, extraLabelKeys...)

	store := &Store{
		registry: prometheus.NewRegistry(),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "gem_packets_rcvd",
			Help:        "Number of packets",
			ConstLabels: constLabels,
		}, []string{"serial"}),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "gem_ac_voltage",
			Help:        "AC Voltage",
			ConstLabels: constLabels,
		}, []string{"serial", "location"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "gem_ac_power",
			Help:        "AC Watts",
			ConstLabels: constLabels,
		}, powerLabelNames),
		powerLabelNames: powerLabelNames,
	}
	store.registry.MustRegister(store.packets)
	store.registry.MustRegister(store.voltage)
	store.registry.MustRegister(store.power)

	return store
}

func (s *Store) IncPackets(serial string) {
	s.packets.With(prometheus.Labels{"serial": serial}).Inc()
}

func (s *Store) SetVoltage(labels resolve.Labels, volts float64) {
	s.voltage.With(prometheus.Labels(labels)).Set(volts)
}

func (s *Store) SetPower(labels resolve.Labels, watts float64) {
	s.power.With(s.fillPowerLabels(labels)).Set(watts)
}

// Apply applies one reading's resolved updates in resolution order.
func (s *Store) Apply(updates resolve.Updates) {
	s.IncPackets(updates.Packet.Serial)
	if updates.Voltage != nil {
		s.SetVoltage(updates.Voltage.Labels, updates.Voltage.Volts)
	}
	for _, power := range updates.Power {
		s.SetPower(power.Labels, power.Watts)
	}
}

// Registry exposes the backing registry, mainly for tests that want to
// gather current samples.
func (s *Store) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the store's registry in the exposition format.
func (s *Store) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Store) fillPowerLabels(labels resolve.Labels) prometheus.Labels {
	filled := make(prometheus.Labels, len(s.powerLabelNames))
	for _, name := range s.powerLabelNames {
		filled[name] = labels[name]
	}
	return filled
}
