package stream

import (
	"pulse_relay/internal/metrics"
	"pulse_relay/internal/pipeline"
)

// Bridge receives completed batches from the relay and broadcasts them to the hub.
type Bridge struct {
	hub     *Hub
	metrics *metrics.Metrics
}

func NewBridge(hub *Hub, m *metrics.Metrics) *Bridge {
	return &Bridge{hub: hub, metrics: m}
}

func (b *Bridge) OnBatch(batch pipeline.Batch) {
	b.hub.Broadcast([]byte(batch.String()))
	b.metrics.BatchBroadcast()
}
