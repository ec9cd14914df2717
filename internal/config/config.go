package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// MaxChannels is the hardware channel ceiling. Protocol indices at or above
// this value are never translated into metrics.
const MaxChannels = 32

type Config struct {
	LogLevel zapcore.Level

	// GEMPort is the TCP port the device listener binds.
	GEMPort uint `mapstructure:"gem_port"`
	// MetricsPort is the HTTP port for /metrics and /healthcheck.
	MetricsPort uint `mapstructure:"metrics_port"`
	HttpLog     bool `mapstructure:"http_log"`

	StatsIntervalSeconds uint32 `mapstructure:"stats_interval_seconds"`

	MQTT MQTTConfig `mapstructure:"mqtt"`

	// Devices maps device serial -> per-device metadata. A device missing
	// from this map still counts packets but produces no gauge updates.
	Devices map[string]DeviceConfig `mapstructure:"devices"`
}

type DeviceConfig struct {
	// Location is a human-readable placement hint, e.g. "garage".
	Location string `mapstructure:"location"`
	// Channels maps hardware channel number (one-based, decimal string so
	// it survives the config decoder) -> extra labels merged into every
	// power sample for that channel.
	Channels map[string]map[string]string `mapstructure:"channels"`
}

type MQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

// Enabled reports whether the optional MQTT re-publish bridge is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Host != ""
}

// LocationOf returns the configured location for a serial. The second return
// is false when the device is not configured at all.
func (c *Config) LocationOf(serial string) (string, bool) {
	dev, ok := c.Devices[serial]
	if !ok {
		return "", false
	}
	return dev.Location, true
}

// ChannelLabelsOf returns the extra labels configured for a hardware channel
// number (one-based). The second return is false when either the device or
// the channel is not configured.
func (c *Config) ChannelLabelsOf(serial string, hwChannel int) (map[string]string, bool) {
	dev, ok := c.Devices[serial]
	if !ok {
		return nil, false
	}
	labels, ok := dev.Channels[strconv.Itoa(hwChannel)]
	if !ok {
		return nil, false
	}
	return labels, true
}

// ExtraLabelKeys returns the sorted union of extra label names configured on
// any channel of any device. The power instrument's label-name set is fixed
// at startup from this list, so every power sample carries the same names.
func (c *Config) ExtraLabelKeys() []string {
	set := map[string]struct{}{}
	for _, dev := range c.Devices {
		for _, labels := range dev.Channels {
			for k := range labels {
				set[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var reservedLabelNames = map[string]struct{}{
	"host":     {},
	"serial":   {},
	"location": {},
	"channel":  {},
}

// Validate checks bounds the way the process expects them. It is called once
// from initConfig; failures abort startup.
func (c *Config) Validate() error {
	if c.GEMPort == 0 || c.GEMPort > 65535 {
		return errors.New("config param gem_port must be in range 1..65535")
	}
	if c.MetricsPort == 0 || c.MetricsPort > 65535 {
		return errors.New("config param metrics_port must be in range 1..65535")
	}
	if c.GEMPort == c.MetricsPort {
		return errors.New("config params gem_port and metrics_port must differ")
	}
	for serial, dev := range c.Devices {
		for key, labels := range dev.Channels {
			hw, err := strconv.Atoi(key)
			if err != nil || hw < 1 || hw > MaxChannels {
				return fmt.Errorf("device %s: channel %q out of range 1..%d", serial, key, MaxChannels)
			}
			for name := range labels {
				if _, reserved := reservedLabelNames[name]; reserved {
					return fmt.Errorf("device %s: channel %d: label name %q is reserved", serial, hw, name)
				}
			}
		}
	}
	if c.MQTT.Enabled() {
		topic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid mqtt base topic. can only contain letters, numbers and underscores")
		}
		c.MQTT.BaseTopic = topic
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
