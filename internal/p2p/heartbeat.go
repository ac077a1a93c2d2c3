package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/vibemesh/vibemesh/internal/ingest"
)

// SetHeartbeatHandler registers a callback for decoded incoming
// heartbeats. Validation and signature checks are the receiver's job;
// the transport only rejects bytes that are not a heartbeat at all.
func (n *Node) SetHeartbeatHandler(fn func(ev *ingest.HeartbeatEvent)) {
	n.heartbeatHandler = fn
}

// joinHeartbeat joins the heartbeat GossipSub topic and starts reading.
func (n *Node) joinHeartbeat() error {
	topic, err := n.pubsub.Join(TopicHeartbeat)
	if err != nil {
		return fmt.Errorf("join heartbeat topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return fmt.Errorf("subscribe heartbeat topic: %w", err)
	}
	n.topicHeartbeat = topic
	n.subHeartbeat = sub

	go n.heartbeatReadLoop()
	return nil
}

// BroadcastHeartbeat publishes a signed heartbeat event to the mesh.
func (n *Node) BroadcastHeartbeat(ev *ingest.HeartbeatEvent) error {
	if n.topicHeartbeat == nil {
		return fmt.Errorf("heartbeat topic not joined")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	return n.topicHeartbeat.Publish(n.ctx, data)
}

func (n *Node) heartbeatReadLoop() {
	for {
		msg, err := n.subHeartbeat.Next(n.ctx)
		if err != nil {
			return // Context cancelled or subscription closed.
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue // Skip own messages.
		}

		var ev ingest.HeartbeatEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue // Malformed message.
		}

		if n.heartbeatHandler != nil {
			func() {
				defer func() { recover() }()
				n.heartbeatHandler(&ev)
			}()
		}
	}
}
