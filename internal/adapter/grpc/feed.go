package grpc

import (
	"sync"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

const subscriberBuffer = 32

// eventFeed fans core events out to connected StreamEvents clients
type eventFeed struct {
	mu      sync.Mutex
	subs    map[chan domain.Event]struct{}
	done    chan struct{}
	stopped bool
}

func newEventFeed() *eventFeed {
	return &eventFeed{
		subs: make(map[chan domain.Event]struct{}),
		done: make(chan struct{}),
	}
}

func (f *eventFeed) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
	}
}

// publish never blocks: a full subscriber misses the event
func (f *eventFeed) publish(event domain.Event) (dropped int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	return dropped
}

func (f *eventFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *eventFeed) closed() <-chan struct{} {
	return f.done
}

// stop ends every open stream
func (f *eventFeed) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.done)
	}
}
