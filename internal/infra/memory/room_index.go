package memory

import (
	"context"
	"sync"
)

// RoomIndex is an in-memory implementation of app.RoomIndex.
type RoomIndex struct {
	mu    sync.RWMutex
	codes map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		codes: make(map[string]struct{}),
	}
}

// Reserve claims a room code; it reports false when the code is already in use.
func (i *RoomIndex) Reserve(_ context.Context, roomID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.codes[roomID]; ok {
		return false, nil
	}
	i.codes[roomID] = struct{}{}
	return true, nil
}

// Touch is a no-op: in-memory reservations never expire.
func (i *RoomIndex) Touch(_ context.Context, _ []string) error {
	return nil
}

func (i *RoomIndex) Release(_ context.Context, roomID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.codes, roomID)
	return nil
}

// Reserved reports whether a code is currently claimed.
func (i *RoomIndex) Reserved(roomID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.codes[roomID]
	return ok
}
