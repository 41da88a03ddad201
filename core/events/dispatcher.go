package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/metrics"
)

// DispatchHandler is the job handler that runs a whole fan-out on a worker.
const DispatchHandler = "events.dispatch"

var tracer = otel.Tracer("github.com/trezcool/madrasa/core/events")

type (
	Handler func(ctx context.Context, ev Event) error

	// Listener reacts to an event. Inline listeners run inside Dispatch; queued listeners
	// are turned into jobs carrying their own attempt count and timeout.
	Listener struct {
		Name     string
		Queued   bool
		Attempts int
		Timeout  time.Duration
		Handle   Handler
	}

	// Table maps each event kind to its listeners, in invocation order.
	Table map[Kind][]Listener

	// Publisher is anything events can be handed to.
	Publisher interface {
		Dispatch(ctx context.Context, ev Event) error
	}

	ListenerError struct {
		Listener string
		Err      error
	}

	// DispatchError lists the listeners that failed for one event.
	DispatchError struct {
		Kind     Kind
		Failures []ListenerError
	}
)

func (e *DispatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Listener+": "+f.Err.Error())
	}
	return fmt.Sprintf("dispatching %s: %s", e.Kind, strings.Join(msgs, "; "))
}

type Dispatcher struct {
	table  Table
	queued map[string]Listener
	queue  core.JobQueue
	logger core.Logger
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher validates the table and returns a Dispatcher bound to it.
// A queued listener may be registered under several kinds but its name must always refer to the same listener.
func NewDispatcher(table Table, queue core.JobQueue, logger core.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		table:  make(Table, len(table)),
		queued: make(map[string]Listener),
		queue:  queue,
		logger: logger,
	}

	for kind, listeners := range table {
		if !kind.valid() {
			return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
		}
		listeners = append([]Listener(nil), listeners...)
		for i, l := range listeners {
			if l.Name == "" || l.Handle == nil {
				return nil, errors.Errorf("%s listener #%d: name and handler are required", kind, i)
			}
			if !l.Queued {
				continue
			}
			if l.Name == DispatchHandler {
				return nil, errors.Errorf("%s listener #%d: %q is reserved", kind, i, DispatchHandler)
			}
			if l.Attempts < 1 {
				l.Attempts = 1
			}
			if l.Timeout <= 0 {
				l.Timeout = core.NotificationJobTimeout
			}
			if prev, ok := d.queued[l.Name]; ok && (prev.Attempts != l.Attempts || prev.Timeout != l.Timeout) {
				return nil, errors.Errorf("queued listener %q registered with different job settings", l.Name)
			}
			d.queued[l.Name] = l
			listeners[i] = l
		}
		d.table[kind] = listeners
	}
	return d, nil
}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Listeners returns the listeners registered for kind, in order.
func (d *Dispatcher) Listeners(kind Kind) []Listener {
	return append([]Listener(nil), d.table[kind]...)
}

// Dispatch invokes every listener registered for the event's kind. Each listener runs regardless of
// the others' outcome; failures are logged and returned together as a *DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	ctx, span := tracer.Start(ctx, "events.Dispatch", trace.WithAttributes(attribute.String("event.kind", string(ev.Kind()))))
	defer span.End()

	metrics.EventsDispatched.WithLabelValues(string(ev.Kind())).Inc()

	var payload []byte
	var failures []ListenerError
	for _, l := range d.table[ev.Kind()] {
		var err error
		if l.Queued {
			if payload == nil {
				if payload, err = Encode(ev); err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "encoding event")
					return errors.Wrap(err, "encoding event")
				}
			}
			err = d.queue.Enqueue(ctx, core.Job{
				Handler:     l.Name,
				Payload:     payload,
				MaxAttempts: l.Attempts,
				Timeout:     l.Timeout,
			})
			err = errors.Wrap(err, "enqueuing")
		} else {
			err = d.runInline(ctx, l, ev)
		}

		if err != nil {
			metrics.ListenerFailures.WithLabelValues(l.Name).Inc()
			d.logger.Error(fmt.Sprintf("%s listener %s failed: %v", ev.Kind(), l.Name, err), err)
			failures = append(failures, ListenerError{Listener: l.Name, Err: err})
		}
	}

	if len(failures) > 0 {
		derr := &DispatchError{Kind: ev.Kind(), Failures: failures}
		span.SetStatus(codes.Error, derr.Error())
		return derr
	}
	return nil
}

func (d *Dispatcher) runInline(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return l.Handle(ctx, ev)
}

// JobHandlers exposes the queued listeners, and the fan-out itself, as job handlers keyed by name.
// A payload that does not decode fails permanently.
func (d *Dispatcher) JobHandlers() map[string]core.JobHandler {
	handlers := make(map[string]core.JobHandler, len(d.queued)+1)
	for name, l := range d.queued {
		handle := l.Handle
		handlers[name] = func(ctx context.Context, payload []byte) error {
			ev, err := Decode(payload)
			if err != nil {
				return core.Permanent(err)
			}
			return handle(ctx, ev)
		}
	}
	handlers[DispatchHandler] = func(ctx context.Context, payload []byte) error {
		ev, err := Decode(payload)
		if err != nil {
			return core.Permanent(err)
		}
		return d.Dispatch(ctx, ev)
	}
	return handlers
}

// QueuedPublisher defers the whole fan-out of an event to a worker.
type QueuedPublisher struct {
	queue core.JobQueue
}

var _ Publisher = (*QueuedPublisher)(nil)

func NewQueuedPublisher(queue core.JobQueue) *QueuedPublisher {
	return &QueuedPublisher{queue: queue}
}

// Dispatch enqueues a single-attempt events.dispatch job; the listeners it reaches keep their own retry settings.
func (p *QueuedPublisher) Dispatch(ctx context.Context, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	job := core.NotificationJob(DispatchHandler, payload)
	job.MaxAttempts = 1
	return errors.Wrap(p.queue.Enqueue(ctx, job), "enqueuing "+string(ev.Kind()))
}
