package database

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryPubsub is an in-memory Pubsub implementation used by tests.
type MemoryPubsub struct {
	mut       sync.RWMutex
	listeners map[string]map[uuid.UUID]Listener
}

func (m *MemoryPubsub) Subscribe(channel string, listener Listener) (cancel func(), err error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	listeners, ok := m.listeners[channel]
	if !ok {
		listeners = map[uuid.UUID]Listener{}
		m.listeners[channel] = listeners
	}

	id := uuid.New()
	listeners[id] = listener
	return func() {
		m.mut.Lock()
		defer m.mut.Unlock()
		delete(m.listeners[channel], id)
	}, nil
}

func (m *MemoryPubsub) Publish(channel string, payload []byte) error {
	m.mut.RLock()
	defer m.mut.RUnlock()
	listeners, ok := m.listeners[channel]
	if !ok {
		return nil
	}
	var wg sync.WaitGroup
	for _, listener := range listeners {
		listener := listener
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener(context.Background(), payload)
		}()
	}
	wg.Wait()

	return nil
}

func (*MemoryPubsub) Close() error {
	return nil
}

func NewPubsubInMemory() Pubsub {
	return &MemoryPubsub{
		listeners: make(map[string]map[uuid.UUID]Listener),
	}
}
