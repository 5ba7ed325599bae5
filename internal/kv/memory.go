package kv

import "sync"

// MemoryStore keeps blobs in a map. Nothing survives the process.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (s *MemoryStore) Read(slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Write(slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	s.slots[slot] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}
