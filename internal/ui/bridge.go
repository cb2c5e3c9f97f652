package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"dirstat/internal/services"
)

const eventBuffer = 64

// eventBridge moves tree events from the scanning goroutine into the
// bubbletea loop. Progress events are dropped when the loop lags behind;
// lifecycle events are always delivered until the bridge is closed.
type eventBridge struct {
	events      chan services.Event
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func newEventBridge(tree services.Tree) *eventBridge {
	bridge := &eventBridge{
		events: make(chan services.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	bridge.unsubscribe = tree.Subscribe(bridge.forward)
	return bridge
}

func (bridge *eventBridge) forward(event services.Event) {
	if event.Type == services.EventProgress {
		select {
		case bridge.events <- event:
		default:
		}
		return
	}
	select {
	case bridge.events <- event:
	case <-bridge.done:
	}
}

// wait is re-issued after every delivered event.
func (bridge *eventBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-bridge.events:
			return treeEventMsg{event: event}
		case <-bridge.done:
			return nil
		}
	}
}

func (bridge *eventBridge) Close() {
	bridge.once.Do(func() {
		bridge.unsubscribe()
		close(bridge.done)
	})
}
