package scened

import (
	"sync"

	"github.com/GoSim-25-26J-441/scene-synth/internal/anneal"
)

// Event types published to run watchers
const (
	EventStep   = "step"
	EventStatus = "status"
)

// Event is one progress notification of a run
type Event struct {
	Type   string             `json:"type"`
	Step   *anneal.StepResult `json:"step,omitempty"`
	Status RunStatus          `json:"status,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

// feed fans run events out to subscribers. Slow subscribers miss step
// events; the final status event is always delivered before close.
type feed struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
	last   Event
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan Event)}
}

func (f *feed) subscribe(buffer int) (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, buffer+1)
	if f.closed {
		ch <- f.last
		close(ch)
		return ch, func() {}
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
}

func (f *feed) publishStep(step anneal.StepResult) {
	f.publish(Event{Type: EventStep, Step: &step})
}

func (f *feed) publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *feed) close(final Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.last = final
	for id, ch := range f.subs {
		select {
		case ch <- final:
		default:
			// make room by dropping the oldest step
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
		delete(f.subs, id)
	}
}
