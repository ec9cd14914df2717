package domain

const (
	ACTOR_ID_INGEST   = "ingest"
	ACTOR_ID_LISTENER = "listener"
	ACTOR_ID_MQTT     = "mqtt"
)

// ReadingReceived is sent by the listener adapter for every decoded packet.
type ReadingReceived struct {
	Reading DeviceReading
}

// DeviceGone is sent by the listener adapter when a device connection closes.
type DeviceGone struct {
	Serial string
}

type ActorHealthRequest struct {
}

type ActorHealthResponse struct {
	Id      string
	Healthy bool
	State   string
}

type IngestStatsRequest struct {
}

type IngestStatsResponse struct {
	// PacketsTotal counts readings routed since startup, across all devices.
	PacketsTotal uint64
	// DevicesSeen counts distinct serials routed since startup.
	DevicesSeen int
}
