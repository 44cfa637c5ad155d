package store

import (
	"context"
	"time"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// Store exposes persistence operations required by services and the purge
// engine. Implementations live under internal/store/<driver>/ (memory,
// mongo, postgres, sqlite).
type Store interface {
	Robots() Robots
	PurgeRecords() PurgeRecords
	PurgeLog() PurgeLog
}

type Robots interface {
	Create(ctx context.Context, r *model.Robot) (*model.Robot, error)
	Get(ctx context.Context, robotID string) (*model.Robot, error)
	List(ctx context.Context) ([]*model.Robot, error)
	// Update replaces name, description, credential and policy flags.
	// lastUpdated only moves through SetLastUpdated.
	Update(ctx context.Context, r *model.Robot) error
	SetLastUpdated(ctx context.Context, robotID string, at time.Time) error
	Delete(ctx context.Context, robotID string) error
}

// PurgeRecords is the queue of pending removals keyed by (robot, user).
type PurgeRecords interface {
	// Upsert inserts rec, or when a record with the same key exists, unions
	// rec.Reasons into it and leaves every other field untouched. It reports
	// whether a new record was created.
	Upsert(ctx context.Context, rec *model.PurgeRecord) (bool, error)
	Get(ctx context.Context, key model.PurgeKey) (*model.PurgeRecord, error)
	// List returns the records of robotID, or all records when robotID is empty.
	List(ctx context.Context, robotID string) ([]*model.PurgeRecord, error)
	// Patch applies the set fields and returns the number of records modified.
	Patch(ctx context.Context, key model.PurgeKey, p model.PurgeRecordPatch) (int64, error)
	// Delete removes one record and returns the number of records deleted.
	Delete(ctx context.Context, key model.PurgeKey) (int64, error)
	DeleteByRobot(ctx context.Context, robotID string) (int64, error)
}

// PurgeLog is the append-only removal trail.
type PurgeLog interface {
	Append(ctx context.Context, e *model.PurgeLogEntry) error
	// List returns entries of robotID, or all entries when robotID is empty.
	List(ctx context.Context, robotID string) ([]*model.PurgeLogEntry, error)
}
