package events

// Event represents a structured state change emitted by a native module.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers, bots).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while
// discarding all events. It is useful when a component wants to optionally
// expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder collects emitted events in order. It exists so that engine tests
// can assert on the exact event stream a state transition produced.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.Events = append(r.Events, evt)
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.Events = nil
}

// OfType returns the recorded events matching the supplied type, preserving
// emission order.
func (r *Recorder) OfType(eventType string) []Event {
	if r == nil {
		return nil
	}
	matched := make([]Event, 0, len(r.Events))
	for _, evt := range r.Events {
		if evt.EventType() == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}
