package service

import (
	"sync"

	"paperscan/internal/storage"
)

// EventName identifies one of the documents service notifications.
type EventName string

const (
	EventStarted             EventName = "started"
	EventDocumentAdded       EventName = "documentAdded"
	EventDocumentUpdated     EventName = "documentUpdated"
	EventDocumentsDeleted    EventName = "documentsDeleted"
	EventDocumentPagesAdded  EventName = "documentPagesAdded"
	EventDocumentPageUpdated EventName = "documentPageUpdated"
	EventDocumentPageDeleted EventName = "documentPageDeleted"
)

// Event is the payload delivered to subscribers. Fields are populated
// depending on the event name:
//
//	started              — nothing else
//	documentAdded        — Document
//	documentUpdated      — Document
//	documentsDeleted     — Documents (the full deleted list, in one event)
//	documentPagesAdded   — Document, Pages
//	documentPageUpdated  — Document, PageIndex, ImageUpdated
//	documentPageDeleted  — Document, PageIndex
type Event struct {
	Name         EventName
	Document     *storage.DocumentRecord
	Documents    []*storage.DocumentRecord
	Pages        []*storage.PageRecord
	PageIndex    int
	ImageUpdated bool
}

// emitter is a minimal synchronous event dispatcher. Listeners run on the
// emitting goroutine.
type emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

// subscribe registers a listener and returns an unsubscribe function.
func (e *emitter) subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(Event))
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// emit delivers the event to all current listeners. The listener snapshot is
// taken under the lock but listeners run outside it, so a listener may
// subscribe or unsubscribe without deadlocking.
func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
