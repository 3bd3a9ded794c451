package progress

import "context"

// Sink consumes outcome events. Implementations must be safe for repeated
// calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so case
// workers stay agnostic about how events are buffered or persisted.
type Emitter interface {
	Emit(evt Event)
}
