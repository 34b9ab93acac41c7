package crew

import "context"

// EventType identifies a runtime progress event.
type EventType string

const (
	EventTaskStarted  EventType = "task_started"
	EventTaskFinished EventType = "task_finished"
	EventTaskFailed   EventType = "task_failed"
	// EventDelegated is sent when a manager hands a task to another agent.
	EventDelegated EventType = "delegated"
	// EventSynthesis is sent before a manager combines the task outputs.
	EventSynthesis EventType = "synthesis"
	EventDone      EventType = "done"
)

// Event reports runtime progress.
type Event struct {
	Type   EventType
	Task   int
	Total  int
	Agent  string
	Output string
	Err    error
}

// Observer receives runtime events. It is called synchronously from the
// runtime goroutine and must not block for long.
type Observer func(Event)

type observerKey struct{}

// WithObserver returns a context whose runs also report to o, in addition to
// the runtime's own observer.
func WithObserver(ctx context.Context, o Observer) context.Context {
	if o == nil {
		return ctx
	}
	if prev := observerFrom(ctx); prev != nil {
		next := o
		o = func(e Event) {
			prev(e)
			next(e)
		}
	}
	return context.WithValue(ctx, observerKey{}, o)
}

func observerFrom(ctx context.Context) Observer {
	o, _ := ctx.Value(observerKey{}).(Observer)
	return o
}
