package netapi

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// sniffLen is how many leading bytes are inspected to guess a download's type.
const sniffLen = 3072

// respond writes a successful result. The body is serialized into memory first,
// so a serialization failure can still be reported as an envelope.
func (e *Engine) respond(ctx context.Context, d *dispatch, result any) {
	if dl, ok := result.(Downloadable); ok {
		e.download(ctx, d, dl)
		return
	}

	var buf bytes.Buffer
	if err := d.response.Serialize(&buf, Response{Dto: result}); err != nil {
		e.fail(ctx, d, dispatchError(CodeSerializationError, "cannot serialize result as "+d.response.Name(), err))
		return
	}

	d.w.Header().Set("Content-Type", d.response.ContentType())
	d.w.WriteHeader(http.StatusOK)
	if _, err := d.w.Write(buf.Bytes()); err != nil {
		e.metrics.Inc(MetricIOError)
		e.logger.Warn("write response", e.fields(ctx, d, zap.Error(err))...)
		return
	}
	e.metrics.Inc(MetricDispatchSuccess)
}

// download streams dl without converters and disposes it on every path.
func (e *Engine) download(ctx context.Context, d *dispatch, dl Downloadable) {
	defer e.dispose(dl)

	src, err := dl.Stream()
	if err != nil || src == nil {
		e.fail(ctx, d, dispatchError(CodeIOError, "cannot open download stream", err))
		return
	}

	br := bufio.NewReaderSize(src, sniffLen)
	contentType := dl.ContentType()
	if contentType == "" {
		head, _ := br.Peek(sniffLen)
		contentType = mimetype.Detect(head).String()
	}
	if cs := dl.Charset(); cs != "" && !strings.Contains(contentType, "charset=") {
		contentType += "; charset=" + cs
	}

	h := d.w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", contentDisposition(dl.Disposition(), dl.FileName()))
	d.w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(d.w, br); err != nil {
		e.metrics.Inc(MetricIOError)
		e.logger.Warn("stream download", e.fields(ctx, d, zap.String("file", dl.FileName()), zap.Error(err))...)
		return
	}
	e.metrics.Inc(MetricDownload)
	e.metrics.Inc(MetricDispatchSuccess)
}

func contentDisposition(disp Disposition, name string) string {
	if disp == "" {
		disp = Attachment
	}
	if name == "" {
		return string(disp)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(name)
	return string(disp) + `; filename="` + escaped + `"`
}

func (e *Engine) dispose(dl Downloadable) {
	if err := dl.Dispose(); err != nil {
		e.logger.Warn("dispose download", zap.String("file", dl.FileName()), zap.Error(err))
	}
}

// fail reports derr as an exception envelope through the request's response
// converter. Failures while doing so are logged only.
func (e *Engine) fail(ctx context.Context, d *dispatch, derr *DispatchError) {
	if id, ok := codeMetrics[derr.Code]; ok {
		e.metrics.Inc(id)
	}

	fields := e.fields(ctx, d, zap.String("code", string(derr.Code)), zap.Error(derr))
	if derr.Code.Application() {
		e.logger.Error("operation failed", fields...)
		e.emitAudit(ctx, auditEventFailure, d, false, derr)
	} else {
		e.logger.Warn("dispatch failed", fields...)
		if derr.Code == CodeNotAllowed {
			e.emitAudit(ctx, auditEventDenied, d, false, derr)
		}
	}

	var buf bytes.Buffer
	if err := d.response.Serialize(&buf, newExceptionResponse(derr)); err != nil {
		e.logger.Error("cannot serialize exception envelope", append(fields, zap.NamedError("envelope_error", err))...)
		d.w.WriteHeader(derr.Code.Status())
		return
	}

	d.w.Header().Set("Content-Type", d.response.ContentType())
	d.w.WriteHeader(derr.Code.Status())
	if _, err := d.w.Write(buf.Bytes()); err != nil {
		e.logger.Warn("write exception envelope", append(fields, zap.NamedError("write_error", err))...)
	}
}

func (e *Engine) fields(ctx context.Context, d *dispatch, extra ...zap.Field) []zap.Field {
	out := make([]zap.Field, 0, 6+len(extra))
	if id := RequestID(ctx); id != "" {
		out = append(out, zap.String("request_id", id))
	}
	if ip := ClientIP(ctx); ip != "" {
		out = append(out, zap.String("ip", ip))
	}
	if d != nil {
		if d.op != nil {
			out = append(out, zap.String("owner", d.op.Owner), zap.String("operation", d.op.Name))
		}
		if d.sess != nil && !d.sess.IsNew() {
			out = append(out, zap.String("session", d.sess.ID))
		}
		if d.response != nil {
			out = append(out, zap.String("output", d.response.Name()))
		}
	}
	return append(out, extra...)
}
