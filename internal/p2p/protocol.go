package p2p

// GossipSub topic names.
const (
	// TopicHeartbeat carries signed peer liveness-and-capacity events.
	TopicHeartbeat = "/vibemesh/heartbeat/1.0.0"
)
