package event

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libwallet-go/logging"
)

// ListenerQueueSize is the number of undelivered events a listener may hold
// before further events are dropped for it.
const ListenerQueueSize = 64

// ListenerID identifies a registration.
type ListenerID = uuid.UUID

// HandlerFunc receives events for RegisterFunc listeners.
type HandlerFunc func(Event)

type listener struct {
	kinds map[Kind]struct{} // empty means every kind

	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func newListener(kinds []Kind) *listener {
	l := &listener{
		kinds: make(map[Kind]struct{}, len(kinds)),
		ch:    make(chan Event, ListenerQueueSize),
	}
	for _, k := range kinds {
		l.kinds[k] = struct{}{}
	}
	return l
}

func (l *listener) wants(k Kind) bool {
	if len(l.kinds) == 0 {
		return true
	}
	_, ok := l.kinds[k]
	return ok
}

// deliver never blocks. It reports false when the event was dropped.
func (l *listener) deliver(evt Event) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	select {
	case l.ch <- evt:
		return true
	default:
		return false
	}
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}

// Bus fans events out to listeners. A nil *Bus accepts and discards events.
type Bus struct {
	mu        sync.RWMutex
	listeners map[ListenerID]*listener
	closed    bool

	handlers sync.WaitGroup
	logger   *slog.Logger
	metrics  *busMetrics
}

// NewBus creates a bus. A nil registerer disables metrics and a nil logger
// discards log output.
func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	b := &Bus{
		listeners: make(map[ListenerID]*listener),
		logger:    logging.OrDiscard(logger),
	}
	if promRegistry != nil {
		b.metrics = newBusMetrics(promRegistry)
	}
	return b
}

// Register adds a listener for the given kinds, or for every kind when none
// are given. Events arrive on the returned channel in emission order. The
// channel is closed by Unregister or Close.
func (b *Bus) Register(kinds ...Kind) (ListenerID, <-chan Event) {
	id := uuid.New()
	l := newListener(kinds)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		l.close()
		return id, l.ch
	}
	b.listeners[id] = l
	b.metrics.listenerAdded()
	return id, l.ch
}

// RegisterFunc calls fn for every matching event on a dedicated goroutine,
// so fn sees events in order and a slow fn only delays itself.
func (b *Bus) RegisterFunc(fn HandlerFunc, kinds ...Kind) ListenerID {
	id, ch := b.Register(kinds...)
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		for evt := range ch {
			fn(evt)
		}
	}()
	return id
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (b *Bus) Unregister(id ListenerID) {
	b.mu.Lock()
	l, ok := b.listeners[id]
	if ok {
		delete(b.listeners, id)
		b.metrics.listenerRemoved()
	}
	b.mu.Unlock()

	if ok {
		l.close()
	}
}

// Emit publishes an event for accountIndex. It never blocks.
func (b *Bus) Emit(accountIndex uint32, kind Kind, data any) {
	if b == nil {
		return
	}
	evt := NewEvent(accountIndex, kind, data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.metrics.emitted(kind)
	for id, l := range b.listeners {
		if !l.wants(kind) {
			continue
		}
		if !l.deliver(evt) {
			b.metrics.dropped(kind)
			b.logger.Warn("event listener queue full, dropping event",
				"listener", id.String(),
				"account", accountIndex,
				"kind", kind,
			)
		}
	}
}

// EmitProgress publishes a KindTransactionProgress event.
func (b *Bus) EmitProgress(accountIndex uint32, p Progress) {
	b.Emit(accountIndex, KindTransactionProgress, p)
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close unregisters every listener and waits for RegisterFunc handlers to
// return. Emit after Close is a no-op. Close must not be called from a
// handler.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	ls := b.listeners
	b.listeners = make(map[ListenerID]*listener)
	b.mu.Unlock()

	for _, l := range ls {
		l.close()
		b.metrics.listenerRemoved()
	}
	b.handlers.Wait()
}
