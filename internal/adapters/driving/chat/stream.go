package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// eventBuffer bounds how far a fast provider can run ahead of the
// renderer before the worker goroutine blocks.
const eventBuffer = 32

// responseStream carries generation events from the worker goroutine
// into the Bubbletea update loop. The worker emits FragmentReceived
// messages while the provider streams and always finishes with a
// ResponseCompleted message.
type responseStream struct {
	events    chan tea.Msg
	abandoned chan struct{}
	cancel    context.CancelFunc
}

func newResponseStream(cancel context.CancelFunc) *responseStream {
	return &responseStream{
		events:    make(chan tea.Msg, eventBuffer),
		abandoned: make(chan struct{}),
		cancel:    cancel,
	}
}

// emit delivers an event to the update loop. It returns false once
// the stream has been abandoned, telling the worker to stop.
func (s *responseStream) emit(msg tea.Msg) bool {
	select {
	case <-s.abandoned:
		return false
	default:
	}
	select {
	case s.events <- msg:
		return true
	case <-s.abandoned:
		return false
	}
}

// next blocks until the worker emits another event. It returns nil
// once the stream has been abandoned.
func (s *responseStream) next() tea.Msg {
	select {
	case msg := <-s.events:
		return msg
	case <-s.abandoned:
		return nil
	}
}

// cancelGeneration stops the running query. The worker still emits a
// final ResponseCompleted so the shell records the cancelled exchange.
func (s *responseStream) cancelGeneration() {
	s.cancel()
}

// abandon stops the worker outright. Used when the program quits
// mid-generation and nothing will pull further events.
func (s *responseStream) abandon() {
	s.cancel()
	close(s.abandoned)
}
