package event

import (
	"reflect"
	"sync"
)

// queue is the double buffer and handler list for one event type.
type queue interface {
	swap()
	dispatch()
	pending() int
}

type typedQueue[T any] struct {
	front    []T
	back     []T
	handlers []func(T)
}

func (q *typedQueue[T]) swap() {
	q.front, q.back = q.back, q.front
	clear(q.back)
	q.back = q.back[:0]
}

func (q *typedQueue[T]) dispatch() {
	for _, ev := range q.front {
		for _, h := range q.handlers {
			h(ev)
		}
	}
}

func (q *typedQueue[T]) pending() int { return len(q.back) }

// Bus is a double-buffered event bus. Events emitted during frame N are
// delivered at the start of frame N+1, when the driver calls SwapBuffers and
// DispatchAll. Event types are dispatched in the order they were first seen
// and events of one type in emit order.
//
// Emit is only called from the driver goroutine (playback and system
// updates), never from jobs.
type Bus struct {
	mu     sync.Mutex // only protects queue creation
	queues map[reflect.Type]queue
	order  []queue
}

func NewBus() *Bus {
	return &Bus{queues: make(map[reflect.Type]queue)}
}

func queueFor[T any](b *Bus) *typedQueue[T] {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[t]; ok {
		return q.(*typedQueue[T])
	}
	q := &typedQueue[T]{}
	b.queues[t] = q
	b.order = append(b.order, q)
	return q
}

// Emit queues an event into the back buffer (delivered next frame).
func Emit[T any](b *Bus, event T) {
	q := queueFor[T](b)
	q.back = append(q.back, event)
}

// EmitAll queues a batch of events of one type, keeping their order.
func EmitAll[T any](b *Bus, events []T) {
	if len(events) == 0 {
		return
	}
	q := queueFor[T](b)
	q.back = append(q.back, events...)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	q := queueFor[T](b)
	q.handlers = append(q.handlers, fn)
}

// Pending returns how many events are waiting in the back buffer.
func (b *Bus) Pending() int {
	n := 0
	for _, q := range b.order {
		n += q.pending()
	}
	return n
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	for _, q := range b.order {
		q.swap()
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for _, q := range b.order {
		q.dispatch()
	}
}
