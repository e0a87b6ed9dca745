package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "dispatch.login", Owner: "shop.Auth", Operation: "login", Success: true})
	d.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != "dispatch.login" || ev.Operation != "login" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	if d.Dropped() != 0 {
		t.Fatalf("emit after close must be ignored, dropped=%d", d.Dropped())
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
}

func TestDispatcherCountsPerEventType(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, NoOpSink{})
	d.Emit(context.Background(), Event{EventType: "dispatch.login"})
	d.Emit(context.Background(), Event{EventType: "dispatch.denied"})
	d.Emit(context.Background(), Event{EventType: "dispatch.denied"})
	d.Close()

	stats := d.Stats()
	if len(stats.Types) != 2 {
		t.Fatalf("expected two event types, got %+v", stats.Types)
	}
	if stats.Types[0].EventType != "dispatch.denied" || stats.Types[0].Delivered != 2 {
		t.Fatalf("unexpected denied stats %+v", stats.Types[0])
	}
	if stats.Types[1].EventType != "dispatch.login" || stats.Types[1].Delivered != 1 {
		t.Fatalf("unexpected login stats %+v", stats.Types[1])
	}
}

type panickySink struct{ inner *ChannelSink }

func (s panickySink) Emit(ctx context.Context, ev Event) {
	if ev.EventType == "dispatch.failure" {
		panic("sink broke")
	}
	s.inner.Emit(ctx, ev)
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	inner := NewChannelSink(4)
	var recovered any
	d := NewDispatcher(Config{
		Enabled:     true,
		BufferSize:  4,
		OnSinkPanic: func(_ Event, rec any) { recovered = rec },
	}, panickySink{inner: inner})

	d.Emit(context.Background(), Event{EventType: "dispatch.failure"})
	d.Emit(context.Background(), Event{EventType: "dispatch.login"})
	d.Close()

	select {
	case ev := <-inner.Events():
		if ev.EventType != "dispatch.login" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("events after a sink panic must still be delivered")
	}
	if recovered != "sink broke" {
		t.Fatalf("expected panic value to be reported, got %v", recovered)
	}
	for _, s := range d.Stats().Types {
		if s.EventType == "dispatch.failure" && s.Failed != 1 {
			t.Fatalf("expected one failed delivery, got %+v", s)
		}
	}
}

func TestDispatcherCopiesCallerOwnedFields(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	groups := []string{"staff"}
	d.Emit(context.Background(), Event{EventType: "dispatch.login", Groups: groups})
	groups[0] = "admin"
	d.Close()

	ev := <-sink.Events()
	if ev.Groups[0] != "staff" {
		t.Fatalf("queued event must not alias caller slices, got %v", ev.Groups)
	}
	if ev.Timestamp.IsZero() || ev.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", ev.Timestamp)
	}
}

func TestDispatcherShutdownHonoursDeadline(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	defer close(sink.release)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "dispatch.logout"})
	d.Emit(context.Background(), Event{EventType: "dispatch.logout"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error with a stuck sink, got %v", err)
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "dispatch.failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "dispatch.denied", Code: "NotAllowed"})

	line := buf.String()
	if !strings.HasSuffix(line, "\n") || !strings.Contains(line, `"code":"NotAllowed"`) {
		t.Fatalf("unexpected output %q", line)
	}
}
