package sinks

import (
	"sync"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

// Record is one event received by a Memory sink.
type Record struct {
	Name       events.Name
	Properties props.Properties
}

// Memory stores everything it receives. Useful in tests and for debugging
// endpoints.
type Memory struct {
	Base

	mu      sync.Mutex
	records []Record
	userIDs []*string
}

// NewMemory returns an enabled in-memory sink.
func NewMemory(name events.SinkName, technical bool) *Memory {
	m := &Memory{}
	m.Init(name, technical)
	return m
}

// NewMemoryWith is NewMemory driven by Options. Memory sinks are not
// technical unless asked.
func NewMemoryWith(opts Options) *Memory {
	m := &Memory{}
	opts.apply(&m.Base, "memory", false)
	return m
}

func (m *Memory) Send(name events.Name, properties props.Properties) {
	m.mu.Lock()
	m.records = append(m.records, Record{Name: name, Properties: properties})
	m.mu.Unlock()
}

func (m *Memory) SetUserID(id *string) {
	m.mu.Lock()
	m.userIDs = append(m.userIDs, id)
	m.mu.Unlock()
}

// Records returns a copy of the received events in arrival order.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// UserIDs returns a copy of every SetUserID argument in arrival order.
func (m *Memory) UserIDs() []*string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*string, len(m.userIDs))
	copy(out, m.userIDs)
	return out
}

// Reset forgets everything recorded so far.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.records = nil
	m.userIDs = nil
	m.mu.Unlock()
}
