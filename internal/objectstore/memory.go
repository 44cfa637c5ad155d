package objectstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// Memory keeps blobs in process. Used when no bucket is configured.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory { return &Memory{blobs: map[string][]byte{}} }

func (m *Memory) PutRobotConfig(_ context.Context, r *model.Robot) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ObjectKey(r.ID)] = data
	return nil
}

func (m *Memory) GetRobotConfig(_ context.Context, robotID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ObjectKey(robotID)]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", model.ErrNotFound, ObjectKey(robotID))
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) DeleteRobotConfig(_ context.Context, robotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ObjectKey(robotID))
	return nil
}

// HealthPing implements health.HealthPinger.
func (m *Memory) HealthPing(context.Context) error { return nil }
