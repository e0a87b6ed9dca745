package netapi

import (
	"io"

	"github.com/MrEthical07/netapi/internal/audit"
)

// AuditEvent is one audit record.
type AuditEvent = audit.Event

// AuditStats is a point-in-time view of audit delivery, per event type.
type AuditStats = audit.Stats

// AuditTypeStats counts delivered, dropped, and failed events of one type.
type AuditTypeStats = audit.TypeStats

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per audit event.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }
