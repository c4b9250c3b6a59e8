package progress

import "context"

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines and tolerate repeated Close calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it so the controller does
// not care how events are buffered or where they end up.
type Emitter interface {
	Emit(evt Event)
}

// NopEmitter discards every event.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}
