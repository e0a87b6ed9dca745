package netapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/netapi/converter"
	"github.com/MrEthical07/netapi/internal/audit"
	"github.com/MrEthical07/netapi/internal/rate"
	"github.com/MrEthical07/netapi/jwt"
	"github.com/MrEthical07/netapi/params"
	"github.com/MrEthical07/netapi/registry"
	"github.com/MrEthical07/netapi/security"
	"github.com/MrEthical07/netapi/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine dispatches HTTP requests to registered operations. It is immutable after
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config     Config
	services   *registry.Registry
	converters *converter.Registry
	sessions   session.Store
	policy     *security.Policy
	tokens     *jwt.Manager
	validator  Validator
	throttle   *rate.Limiter
	logger     *zap.Logger
	metrics    *Metrics
	audit      *audit.Dispatcher
	redis      redis.UniversalClient
}

// dispatch is the state of one request moving through the pipeline.
type dispatch struct {
	w        http.ResponseWriter
	r        *http.Request
	params   *params.Params
	response converter.ResponseConverter
	svc      *registry.Service
	op       *registry.Operation
	sess     *session.Session
}

// ServeHTTP dispatches GET and POST requests whose path lies under
// Config.MountPath. Other methods are answered with 405 and never dispatched.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	path, ok := underMount(r.URL.Path, e.config.MountPath)
	if !ok {
		http.NotFound(w, r)
		return
	}
	e.Dispatch(w, r, path)
}

// underMount strips mount from path. It reports false when path lies outside
// the mount, including siblings such as "/apix" for mount "/api".
func underMount(path, mount string) (string, bool) {
	mount = strings.TrimSuffix(mount, "/")
	if mount == "" {
		return path, true
	}
	rest, ok := strings.CutPrefix(path, mount)
	if !ok || (rest != "" && rest[0] != '/') {
		return "", false
	}
	return rest, true
}

// Dispatch runs the pipeline for path, the part of the URL following the mount
// point ("Cart/add"). The client always receives exactly one of a payload, a
// download, or an exception envelope.
func (e *Engine) Dispatch(w http.ResponseWriter, r *http.Request, path string) {
	start := time.Now()
	e.metrics.Inc(MetricDispatchTotal)
	defer func() {
		e.metrics.Observe(MetricDispatchLatency, time.Since(start))
	}()

	ctx := r.Context()
	tw := &trackingWriter{ResponseWriter: w}
	d := &dispatch{
		w:        tw,
		r:        r,
		response: e.converters.Response(e.converters.DefaultResponse()),
	}
	defer e.recoverDispatch(ctx, d, tw)

	// The query is readable even when the body is not, so a parse failure is
	// still reported in the requested format.
	if name := r.URL.Query().Get(e.config.Query.OutputParam); name != "" && len(name) <= e.config.Query.MaxFormatLen {
		d.response = e.converters.Response(name)
	}

	p, err := params.Parse(r, params.Options{
		MaxMemory:   e.config.Params.MaxMemory,
		MaxBodySize: e.config.Params.MaxBodySize,
	})
	if err != nil {
		e.fail(ctx, d, dispatchError(CodeParametersError, "cannot parse request parameters", err))
		return
	}
	d.params = p
	defer func() {
		if err := p.Dispose(); err != nil {
			e.logger.Warn("dispose request params", zap.Error(err))
		}
	}()

	// An over-long or unknown output format falls back to the default.
	if name, err := p.String(e.config.Query.OutputParam, 0, e.config.Query.MaxFormatLen, e.converters.DefaultResponse()); err == nil {
		d.response = e.converters.Response(name)
	}

	result, err := e.execute(ctx, d, path)
	if err != nil {
		e.fail(ctx, d, asDispatchError(err, CodeApplicationError))
		return
	}
	e.respond(ctx, d, result)
}

// recoverDispatch turns a panic that escaped every pipeline stage into an
// exception envelope. Once the status line is out it can only be logged.
func (e *Engine) recoverDispatch(ctx context.Context, d *dispatch, tw *trackingWriter) {
	rec := recover()
	if rec == nil {
		return
	}
	derr := dispatchError(CodeApplicationError, "dispatch panicked", fmt.Errorf("panic: %v", rec))
	if tw.wroteHeader {
		e.metrics.Inc(MetricApplicationError)
		e.logger.Error("panic after response started", e.fields(ctx, d, zap.Error(derr), zap.Stack("stack"))...)
		return
	}
	e.logger.Error("panic during dispatch", e.fields(ctx, d, zap.Stack("stack"))...)

	defer func() {
		if again := recover(); again != nil {
			e.logger.Error("panic while reporting panic", zap.Any("panic", again))
			if !tw.wroteHeader {
				tw.WriteHeader(http.StatusInternalServerError)
			}
		}
	}()
	e.fail(ctx, d, derr)
}

// trackingWriter records whether the status line has been written.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (e *Engine) execute(ctx context.Context, d *dispatch, path string) (result any, err error) {
	d.svc, d.op, err = e.resolve(path)
	if err != nil {
		return nil, err
	}

	d.sess, err = e.loadSession(ctx, d.r)
	if err != nil {
		return nil, err
	}

	if err := e.authorize(ctx, d); err != nil {
		return nil, err
	}

	args, err := e.bind(d)
	if err != nil {
		return nil, err
	}

	handler, err := e.instantiate(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := e.validate(ctx, d, args); err != nil {
		return nil, err
	}

	result, err = e.invoke(d, handler, args)
	if err != nil {
		e.recordLoginFailure(ctx, d)
		return nil, err
	}

	// From here on a download must be released if the dispatch still fails.
	defer func() {
		if err == nil {
			return
		}
		if dl, ok := result.(Downloadable); ok {
			e.dispose(dl)
		}
	}()

	if err := e.applySessionEffects(ctx, d, result); err != nil {
		return result, err
	}
	if err := e.commitSession(ctx, d); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) instantiate(ctx context.Context, d *dispatch) (handler any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = dispatchError(CodeInstantiationError, "cannot instantiate "+d.svc.Name, fmt.Errorf("panic: %v", rec))
		}
	}()

	handler, err = d.svc.New(registry.CallContext{
		Context: ctx,
		Session: d.sess,
		Profile: d.sess.Profile(),
		Policy:  e.policy,
	})
	if err != nil {
		return nil, dispatchError(CodeInstantiationError, "cannot instantiate "+d.svc.Name, err)
	}
	return handler, nil
}

func (e *Engine) validate(ctx context.Context, d *dispatch, args []any) error {
	for i, arg := range args {
		if sv, ok := arg.(SelfValidating); ok {
			if err := sv.Validate(); err != nil {
				return dispatchError(CodeInvalidPropertyFormat, fmt.Sprintf("parameter %d (%s) is invalid", i, d.op.Params[i]), err)
			}
		}
		if !d.op.Is(registry.FlagValidated) {
			continue
		}
		if err := e.validator.Validate(ctx, arg); err != nil {
			return dispatchError(CodeInvalidPropertyFormat, fmt.Sprintf("parameter %d (%s) is invalid", i, d.op.Params[i]), err)
		}
	}
	return nil
}

func (e *Engine) invoke(d *dispatch, handler any, args []any) (result any, err error) {
	name := d.op.QualifiedName()
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = dispatchError(CodeApplicationError, "call to "+name+" panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	result, err = d.op.Invoke(handler, args)
	if err != nil {
		return nil, dispatchError(CodeApplicationError, "call to "+name+" failed", err)
	}
	return result, nil
}

// Services returns the frozen operation registry.
func (e *Engine) Services() *registry.Registry { return e.services }

// Converters returns the frozen converter registry.
func (e *Engine) Converters() *converter.Registry { return e.converters }

// Policy returns the permission policy, or nil when none is configured.
func (e *Engine) Policy() *security.Policy { return e.policy }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot { return e.metrics.Snapshot() }

// Ping checks the Redis connection backing sessions.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e.redis == nil {
		return 0, errNoRedis
	}
	start := time.Now()
	if err := e.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrIO, err)
	}
	return time.Since(start), nil
}

// Close flushes pending audit events. The engine must not dispatch afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	_ = e.logger.Sync()
}
