package audit

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events while the buffer is full instead of blocking
	// the dispatching request.
	DropIfFull bool
	// OnSinkPanic observes a recovered sink panic. The event is counted as
	// failed and delivery continues with the next one.
	OnSinkPanic func(event Event, recovered any)
}

// TypeStats counts the fate of events of one event type.
type TypeStats struct {
	EventType string
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Stats is a point-in-time view of a [Dispatcher].
type Stats struct {
	Pending int
	Types   []TypeStats
}

// Dropped sums dropped events over all event types.
func (s Stats) Dropped() uint64 {
	var n uint64
	for _, t := range s.Types {
		n += t.Dropped
	}
	return n
}

// Dispatcher relays dispatch audit events to a sink on its own goroutine.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	stop chan struct{}
	// abort cuts a drain short when Shutdown's context ends.
	abort    chan struct{}
	finished chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	abortOnce sync.Once

	mu    sync.Mutex
	types map[string]*TypeStats
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled; every
// method is safe on a nil dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		ch:       make(chan Event, cfg.BufferSize),
		stop:     make(chan struct{}),
		abort:    make(chan struct{}),
		finished: make(chan struct{}),
		types:    make(map[string]*TypeStats),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.stop:
			for {
				select {
				case <-d.abort:
					return
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.count(event.EventType, func(s *TypeStats) { s.Failed++ })
			if d.cfg.OnSinkPanic != nil {
				d.cfg.OnSinkPanic(event, rec)
			}
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.count(event.EventType, func(s *TypeStats) { s.Delivered++ })
}

func (d *Dispatcher) count(eventType string, apply func(*TypeStats)) {
	d.mu.Lock()
	s, ok := d.types[eventType]
	if !ok {
		s = &TypeStats{EventType: eventType}
		d.types[eventType] = s
	}
	apply(s)
	d.mu.Unlock()
}

// Emit queues event. A zero Timestamp is stamped with the current UTC time and
// Groups and Metadata are copied, so callers may reuse them. Events emitted
// after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = detach(event)

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.stop:
		default:
			d.count(event.EventType, func(s *TypeStats) { s.Dropped++ })
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.count(event.EventType, func(s *TypeStats) { s.Dropped++ })
	case <-d.stop:
	}
}

func detach(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Groups != nil {
		event.Groups = append([]string(nil), event.Groups...)
	}
	if event.Metadata != nil {
		md := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			md[k] = v
		}
		event.Metadata = md
	}
	return event
}

// Shutdown stops accepting events and delivers the buffered ones. When ctx ends
// first the remaining events are abandoned and ctx.Err is returned; a sink call
// already in progress is left to finish on its own.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
	})

	select {
	case <-d.finished:
		return nil
	case <-ctx.Done():
		d.abortOnce.Do(func() { close(d.abort) })
		return ctx.Err()
	}
}

// Close delivers every buffered event and stops the dispatcher.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Stats returns per-event-type counters sorted by event type.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.mu.Lock()
	out := Stats{Pending: len(d.ch), Types: make([]TypeStats, 0, len(d.types))}
	for _, s := range d.types {
		out.Types = append(out.Types, *s)
	}
	d.mu.Unlock()

	sort.Slice(out.Types, func(i, j int) bool { return out.Types[i].EventType < out.Types[j].EventType })
	return out
}

// Dropped returns the number of events discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	return d.Stats().Dropped()
}
