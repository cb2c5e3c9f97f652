package services

import (
	"sync"
)

type ScanState int

const (
	StateIdle ScanState = iota
	StateScanning
	StateFinished
	StateAborted
	StateFailed
)

func (state ScanState) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (state ScanState) IsTerminal() bool {
	return state == StateFinished || state == StateAborted || state == StateFailed
}

type EventType int

const (
	EventScanStarted EventType = iota
	EventProgress
	EventFinished
	EventAborted
	EventFailed
	// EventTreeReplaced follows a successful cache read.
	EventTreeReplaced
)

func (eventType EventType) String() string {
	switch eventType {
	case EventScanStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventFinished:
		return "finished"
	case EventAborted:
		return "aborted"
	case EventFailed:
		return "failed"
	case EventTreeReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers in the order start, progress, then
// exactly one terminal event per scan. Generation identifies the tree the
// event belongs to.
type Event struct {
	Type       EventType
	Generation uint64
	Path       string
	Text       string
	Busy       bool
	Stats      ScanStats
	Err        error
}

func (event Event) IsTerminal() bool {
	return event.Type == EventFinished || event.Type == EventAborted || event.Type == EventFailed
}

type notifier struct {
	mu          sync.RWMutex
	subscribers map[int]func(Event)
	next        int
}

func (n *notifier) subscribe(callback func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subscribers == nil {
		n.subscribers = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.subscribers[id] = callback
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
}

// emit calls every subscriber on the caller's goroutine.
func (n *notifier) emit(event Event) {
	n.mu.RLock()
	callbacks := make([]func(Event), 0, len(n.subscribers))
	for id := 0; id < n.next; id++ {
		if callback, ok := n.subscribers[id]; ok {
			callbacks = append(callbacks, callback)
		}
	}
	n.mu.RUnlock()
	for _, callback := range callbacks {
		callback(event)
	}
}
