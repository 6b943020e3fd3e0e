package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventClientRecorded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
// Recorded and Expected describe overall progress at the time of the event.
type Event struct {
	Type     EventType
	Client   ClientRecord
	Recorded int
	Expected int
}

// Broker is a jurisdiction plus the workload machines its clients are
// distributed across.
type Broker struct {
	model.BrokerArea
	WorkloadMachines int
}

// ClientRecord summarises one generated client.
type ClientRecord struct {
	ID            string
	Broker        string
	Profile       string
	Machine       int
	Actions       int
	FinalLocation model.Location
}

// KnowledgeBase is an in-memory, thread-safe directory of brokers and the
// clients generated for them. Brokers are registered once before
// generation starts; clients are recorded concurrently by workers.
type KnowledgeBase struct {
	mu sync.RWMutex

	brokers map[string]*Broker
	order   []string

	clients   map[string]ClientRecord
	perBroker map[string]int
	expected  int

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		brokers:   make(map[string]*Broker),
		clients:   make(map[string]ClientRecord),
		perBroker: make(map[string]int),
	}
}

// AddBroker registers a broker. It returns an error if the name already exists.
func (kb *KnowledgeBase) AddBroker(b Broker) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.brokers[b.Name]; exists {
		return fmt.Errorf("broker %q already exists", b.Name)
	}
	if b.WorkloadMachines < 1 {
		b.WorkloadMachines = 1
	}
	kb.brokers[b.Name] = &b
	kb.order = append(kb.order, b.Name)
	return nil
}

// GetBroker returns a copy of the named broker.
func (kb *KnowledgeBase) GetBroker(name string) (Broker, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	b, ok := kb.brokers[name]
	if !ok {
		return Broker{}, false
	}
	return *b, true
}

// ListBrokers returns the brokers in registration order.
func (kb *KnowledgeBase) ListBrokers() []Broker {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]Broker, 0, len(kb.order))
	for _, name := range kb.order {
		res = append(res, *kb.brokers[name])
	}
	return res
}

// HomeBroker returns the first broker, in registration order, whose area
// contains loc.
func (kb *KnowledgeBase) HomeBroker(loc model.Location) (Broker, bool) {
	for _, b := range kb.ListBrokers() {
		if b.Area.IsWorld() || b.Area.Center.DistanceKm(loc) <= b.Area.RadiusKm {
			return b, true
		}
	}
	return Broker{}, false
}

// MachineFor maps a client index onto one of the broker's workload machines.
func (kb *KnowledgeBase) MachineFor(broker string, clientIndex int) int {
	b, ok := kb.GetBroker(broker)
	if !ok {
		return 0
	}
	return clientIndex % b.WorkloadMachines
}

// SetExpectedClients records how many clients the run will produce.
func (kb *KnowledgeBase) SetExpectedClients(n int) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.expected = n
}

// RecordClient stores a generated client and notifies subscribers.
func (kb *KnowledgeBase) RecordClient(rec ClientRecord) error {
	kb.mu.Lock()
	if _, ok := kb.brokers[rec.Broker]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("broker %q not found for client %s", rec.Broker, rec.ID)
	}
	if _, exists := kb.clients[rec.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("client %s already recorded", rec.ID)
	}
	kb.clients[rec.ID] = rec
	kb.perBroker[rec.Broker]++
	event := Event{
		Type:     EventClientRecorded,
		Client:   rec,
		Recorded: len(kb.clients),
		Expected: kb.expected,
	}
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// GetClient returns the record of a generated client.
func (kb *KnowledgeBase) GetClient(id string) (ClientRecord, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	rec, ok := kb.clients[id]
	return rec, ok
}

// ClientCount returns the number of recorded clients.
func (kb *KnowledgeBase) ClientCount() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.clients)
}

// ClientsForBroker returns the number of recorded clients homed at broker.
func (kb *KnowledgeBase) ClientsForBroker(broker string) int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.perBroker[broker]
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs = append(kb.subs[:idx], kb.subs[idx+1:]...)
		idx = -1
	}
}
