// Package memory is a process-local store.Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		robots:  map[string]model.Robot{},
		records: map[model.PurgeKey]model.PurgeRecord{},
	}
}

type memStore struct {
	mu      sync.Mutex
	robots  map[string]model.Robot
	records map[model.PurgeKey]model.PurgeRecord
	log     []model.PurgeLogEntry
}

func (s *memStore) Robots() store.Robots             { return (*robots)(s) }
func (s *memStore) PurgeRecords() store.PurgeRecords { return (*records)(s) }
func (s *memStore) PurgeLog() store.PurgeLog         { return (*purgeLog)(s) }

// HealthPing implements health.HealthPinger.
func (s *memStore) HealthPing(context.Context) error { return nil }

// --- Robots ---
type robots memStore

func (r *robots) Create(_ context.Context, m *model.Robot) (*model.Robot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := *m
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if _, exists := r.robots[out.ID]; exists {
		return nil, fmt.Errorf("%w: robot %s exists", model.ErrConflict, out.ID)
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	r.robots[out.ID] = out
	return copyRobot(out), nil
}

func (r *robots) Get(_ context.Context, robotID string) (*model.Robot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.robots[robotID]
	if !ok {
		return nil, fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	return copyRobot(m), nil
}

func (r *robots) List(context.Context) ([]*model.Robot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Robot, 0, len(r.robots))
	for _, m := range r.robots {
		out = append(out, copyRobot(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreationTime.Equal(out[j].CreationTime) {
			return out[i].CreationTime.Before(out[j].CreationTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *robots) Update(_ context.Context, m *model.Robot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.robots[m.ID]
	if !ok {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, m.ID)
	}
	next := *copyRobot(*m)
	next.CreationTime = cur.CreationTime
	next.Policy.LastUpdated = cur.Policy.LastUpdated
	r.robots[m.ID] = next
	return nil
}

func (r *robots) SetLastUpdated(_ context.Context, robotID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	m.Policy.LastUpdated = &at
	r.robots[robotID] = m
	return nil
}

func (r *robots) Delete(_ context.Context, robotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.robots[robotID]; !ok {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	delete(r.robots, robotID)
	return nil
}

func copyRobot(m model.Robot) *model.Robot {
	out := m
	if m.Policy.LastUpdated != nil {
		t := *m.Policy.LastUpdated
		out.Policy.LastUpdated = &t
	}
	return &out
}

// --- Purge records ---
type records memStore

func (r *records) Upsert(_ context.Context, rec *model.PurgeRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.Key()
	if cur, ok := r.records[key]; ok {
		cur.Reasons = cur.Reasons.Union(rec.Reasons)
		r.records[key] = cur
		return false, nil
	}
	r.records[key] = *copyRecord(*rec)
	return true, nil
}

func (r *records) Get(_ context.Context, key model.PurgeKey) (*model.PurgeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: purge record %s/%s", model.ErrNotFound, key.RobotID, key.UserID)
	}
	return copyRecord(rec), nil
}

func (r *records) List(_ context.Context, robotID string) ([]*model.PurgeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.PurgeRecord{}
	for k, rec := range r.records {
		if robotID != "" && k.RobotID != robotID {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RobotID != out[j].RobotID {
			return out[i].RobotID < out[j].RobotID
		}
		return out[i].Subject.UserID < out[j].Subject.UserID
	})
	return out, nil
}

func (r *records) Patch(_ context.Context, key model.PurgeKey, p model.PurgeRecordPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return 0, nil
	}
	if p.LastAlertAt != nil {
		t := *p.LastAlertAt
		rec.LastAlertAt = &t
	}
	r.records[key] = rec
	return 1, nil
}

func (r *records) Delete(_ context.Context, key model.PurgeKey) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; !ok {
		return 0, nil
	}
	delete(r.records, key)
	return 1, nil
}

func (r *records) DeleteByRobot(_ context.Context, robotID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.records {
		if k.RobotID == robotID {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

func copyRecord(rec model.PurgeRecord) *model.PurgeRecord {
	out := rec
	out.Reasons = append(model.ReasonSet{}, rec.Reasons...)
	if rec.LastAlertAt != nil {
		t := *rec.LastAlertAt
		out.LastAlertAt = &t
	}
	return &out
}

// --- Purge log ---
type purgeLog memStore

func (l *purgeLog) Append(_ context.Context, e *model.PurgeLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := *e
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.Reasons = append(model.ReasonSet{}, e.Reasons...)
	l.log = append(l.log, out)
	return nil
}

func (l *purgeLog) List(_ context.Context, robotID string) ([]*model.PurgeLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []*model.PurgeLogEntry{}
	for _, e := range l.log {
		if robotID != "" && e.RobotID != robotID {
			continue
		}
		e := e
		out = append(out, &e)
	}
	return out, nil
}
