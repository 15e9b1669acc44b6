package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and ephemeral setups.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, channelID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[channelID+"\x00"+key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, channelID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[channelID+"\x00"+key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, channelID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, channelID+"\x00"+key)
	return nil
}
