package util

import (
	"gem2prom/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:             zap.DebugLevel,
		GEMPort:              0,
		MetricsPort:          0,
		StatsIntervalSeconds: 60,
		Devices: map[string]config.DeviceConfig{
			"12345": {
				Location: "garage",
				Channels: map[string]map[string]string{
					"1": {"circuit": "oven"},
					"2": {"circuit": "dryer", "phase": "b"},
					"3": {},
				},
			},
			"67890": {
				Channels: map[string]map[string]string{
					"1": {"circuit": "lights"},
				},
			},
		},
	}
}
