// Package producer publishes auth events to a message broker so that cmd/worker can ship them to Loki.
package producer

import "synq/backend/internal/telemetry"

// Producer is an event emitter that owns a broker connection.
type Producer interface {
	telemetry.EventEmitter
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)
