package domain

// DeviceReading is one decoded report from a metering device. The wire
// format is handled by the gem package; everything downstream of the
// listener works on this struct.
type DeviceReading struct {
	// Serial identifies the physical unit and is stable across reconnects.
	Serial string
	// Voltage is the instantaneous AC voltage in volts.
	Voltage float64
	// Channels holds per-channel readings in protocol order.
	Channels []ChannelReading
}

// ChannelReading is one monitored circuit within a reading.
type ChannelReading struct {
	// Index is the protocol-level channel index, zero-based.
	Index int
	// Watts is the instantaneous power on the channel.
	Watts float64
	// AbsoluteWattSeconds and PolarizedWattSeconds are the device's
	// cumulative energy counters. They only decrease on device reset.
	AbsoluteWattSeconds  float64
	PolarizedWattSeconds float64
}
