package db

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeSnapshot serializes a snapshot to its persisted JSON form.
func EncodeSnapshot(snapshot models.Snapshot) ([]byte, error) {
	data, err := snapshotJSON.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted snapshot.
func DecodeSnapshot(data []byte) (models.Snapshot, error) {
	if !jsoniter.ConfigFastest.Valid(data) {
		return models.Snapshot{}, ErrInvalidSnapshotJSON
	}
	var snapshot models.Snapshot
	if err := snapshotJSON.Unmarshal(data, &snapshot); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshotJSON, err)
	}
	return snapshot, nil
}

// MemorySnapshotStore keeps the encoded snapshot in process memory.
type MemorySnapshotStore struct {
	mu   sync.Mutex
	data []byte
}

// Load decodes the last saved snapshot.
func (s *MemorySnapshotStore) Load(_ context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return models.Snapshot{}, ErrSnapshotNotFound
	}
	return DecodeSnapshot(s.data)
}

// Save encodes and keeps the snapshot.
func (s *MemorySnapshotStore) Save(_ context.Context, snapshot models.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Delete forgets the saved snapshot.
func (s *MemorySnapshotStore) Delete(_ context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
