package testhelpers

import (
	"sync"

	"github.com/samber/lo"
)

type RecordedEvent struct {
	Event string
	Data  any
}

// Recorder is a core.Broadcaster that captures events instead of
// sending them anywhere.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Broadcast(event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, RecordedEvent{Event: event, Data: data})
}

func (r *Recorder) Send(_ string, event string, data any) error {
	r.Broadcast(event, data)

	return nil
}

func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]RecordedEvent{}, r.events...)
}

// EventNames returns the names of all recorded events in order.
func (r *Recorder) EventNames() []string {
	return lo.Map(r.Events(), func(e RecordedEvent, _ int) string {
		return e.Event
	})
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
