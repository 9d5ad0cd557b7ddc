// Package livereload fans rebuild notifications out to connected browsers.
package livereload

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const subscriberBufferSizeConstant = 4

// Event tells subscribers that files changed and the page should reload.
type Event struct {
	Paths []string
	Time  time.Time
}

// Hub delivers reload events to every subscriber. Delivery never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mutex       sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
	logger      *zap.Logger
	now         func() time.Time
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[int]chan Event),
		logger:      logger,
		now:         time.Now,
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and closes the channel;
// calling it more than once is safe. Subscribing to a closed hub returns a closed channel.
func (hub *Hub) Subscribe() (<-chan Event, func()) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	events := make(chan Event, subscriberBufferSizeConstant)
	if hub.closed {
		close(events)
		return events, func() {}
	}

	subscriberID := hub.nextID
	hub.nextID++
	hub.subscribers[subscriberID] = events

	var unsubscribeOnce sync.Once
	unsubscribe := func() {
		unsubscribeOnce.Do(func() {
			hub.mutex.Lock()
			defer hub.mutex.Unlock()
			if channel, subscribed := hub.subscribers[subscriberID]; subscribed {
				delete(hub.subscribers, subscriberID)
				close(channel)
			}
		})
	}
	return events, unsubscribe
}

// Notify sends a reload event to every subscriber and returns how many received it.
func (hub *Hub) Notify(paths ...string) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if hub.closed {
		return 0
	}
	event := Event{Paths: append([]string(nil), paths...), Time: hub.now()}
	delivered := 0
	for _, events := range hub.subscribers {
		select {
		case events <- event:
			delivered++
		default:
		}
	}
	hub.logger.Debug(
		"livereload_notified",
		zap.Strings("paths", event.Paths),
		zap.Int("subscribers", len(hub.subscribers)),
		zap.Int("delivered", delivered),
	)
	return delivered
}

// Subscribers returns the number of active subscribers.
func (hub *Hub) Subscribers() int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return len(hub.subscribers)
}

// Close closes every subscriber channel. Later notifications are ignored.
func (hub *Hub) Close() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if hub.closed {
		return
	}
	hub.closed = true
	for subscriberID, events := range hub.subscribers {
		delete(hub.subscribers, subscriberID)
		close(events)
	}
}
