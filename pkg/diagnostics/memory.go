package diagnostics

import "sync"

// Memory is an in-process Sink backed by a slice, used by tests and by
// any caller that doesn't need durable diagnostics.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-process Sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends e. It never fails.
func (m *Memory) Record(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a snapshot of every recorded event, in record order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ForFile returns only the events recorded for path, in record order.
func (m *Memory) ForFile(path string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.FilePath == path {
			out = append(out, e)
		}
	}
	return out
}
