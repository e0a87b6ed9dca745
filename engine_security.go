package netapi

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/MrEthical07/netapi/internal/rate"
	"github.com/MrEthical07/netapi/registry"
	"github.com/MrEthical07/netapi/security"
	"go.uber.org/zap"
)

// authorize runs before binding. Secured operations need an attached profile
// that allows the call; login operations are refused once the caller's IP has
// exhausted its failed-login budget.
func (e *Engine) authorize(ctx context.Context, d *dispatch) error {
	if d.op.Is(registry.FlagSecured) {
		profile := d.sess.Profile()
		if profile == nil {
			return dispatchError(CodeNotAllowed, fmt.Sprintf("%s requires an authenticated session", d.op.QualifiedName()), nil)
		}
		if profile.IsAllowed(d.op.Owner, d.op.Name) == nil {
			return dispatchError(CodeNotAllowed, fmt.Sprintf("%s is not allowed for groups %v", d.op.QualifiedName(), profile.UserGroups()), nil)
		}
	}

	if d.op.Is(registry.FlagLogin) && e.throttle != nil {
		err := e.throttle.CheckLogin(ctx, ClientIP(ctx))
		switch {
		case errors.Is(err, rate.ErrRateLimited):
			e.metrics.Inc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventRateLimited, d, false, nil)
			return dispatchError(CodeNotAllowed, "too many failed login attempts", err)
		case err != nil:
			return dispatchError(CodeIOError, "login throttle unavailable", err)
		}
	}
	return nil
}

// applySessionEffects attaches the profile returned by a login operation and
// clears it after a logout operation. A login result that is not a profile
// leaves the session untouched.
func (e *Engine) applySessionEffects(ctx context.Context, d *dispatch, result any) error {
	if d.op.Is(registry.FlagLogin) {
		profile, ok := result.(security.Profile)
		if !ok || isNil(profile) {
			return dispatchError(CodeIncompatibleInterface,
				fmt.Sprintf("%s is marked as login but returned %T instead of a security profile", d.op.QualifiedName(), result), nil)
		}
		d.sess.Attach(profile)
		e.metrics.Inc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLogin, d, true, nil)
		if e.throttle != nil {
			if err := e.throttle.Reset(ctx, ClientIP(ctx)); err != nil {
				e.logger.Warn("reset login throttle", e.fields(ctx, d, zap.Error(err))...)
			}
		}
	}

	if d.op.Is(registry.FlagLogout) {
		d.sess.Detach()
		e.metrics.Inc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, d, true, nil)
	}
	return nil
}

// isNil reports whether v is nil or an interface holding a nil pointer, map,
// slice, func, or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (e *Engine) recordLoginFailure(ctx context.Context, d *dispatch) {
	if !d.op.Is(registry.FlagLogin) || e.throttle == nil {
		return
	}
	if err := e.throttle.RecordFailure(ctx, ClientIP(ctx)); err != nil {
		e.logger.Warn("record failed login", e.fields(ctx, d, zap.Error(err))...)
	}
}
