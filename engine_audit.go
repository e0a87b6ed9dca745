package netapi

import (
	"context"
	"time"

	"github.com/MrEthical07/netapi/internal/audit"
	"go.uber.org/zap"
)

const (
	auditEventLogin       = "dispatch.login"
	auditEventLogout      = "dispatch.logout"
	auditEventDenied      = "dispatch.denied"
	auditEventFailure     = "dispatch.failure"
	auditEventRateLimited = "dispatch.login_rate_limited"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *zap.Logger) *audit.Dispatcher {
	onPanic := func(ev audit.Event, rec any) {
		logger.Error("audit sink panicked",
			zap.String("event_type", ev.EventType),
			zap.String("owner", ev.Owner),
			zap.String("operation", ev.Operation),
			zap.Any("panic", rec))
	}
	return audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Enabled,
		BufferSize:  cfg.BufferSize,
		DropIfFull:  cfg.DropIfFull,
		OnSinkPanic: onPanic,
	}, sink)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, d *dispatch, success bool, derr *DispatchError) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: RequestID(ctx),
		IP:        ClientIP(ctx),
		Success:   success,
	}
	if d != nil {
		if d.op != nil {
			event.Owner = d.op.Owner
			event.Operation = d.op.Name
		}
		if d.sess != nil {
			event.SessionID = d.sess.ID
			if p := d.sess.Profile(); p != nil {
				event.Groups = p.UserGroups()
			}
		}
	}
	if derr != nil {
		event.Code = string(derr.Code)
		event.Error = derr.Message
	}

	e.audit.Emit(ctx, event)
}

// AuditStats returns per-event-type delivery counters of the audit dispatcher.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
