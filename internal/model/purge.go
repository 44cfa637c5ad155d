package model

import "time"

// PurgeKey identifies a purge record. At most one record exists per key.
type PurgeKey struct {
	RobotID string
	UserID  string
}

// PurgeSubject is the snapshot of a user taken when it was first flagged.
// Re-validation compares the live user against this snapshot.
type PurgeSubject struct {
	UserID      string    `json:"userId" bson:"userId"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	Email       string    `json:"email" bson:"email"`
	LastActive  time.Time `json:"lastActive" bson:"lastActive"`
}

// PurgeRecord is a queued removal for one user of one robot.
type PurgeRecord struct {
	RobotID            string       `json:"robotId" bson:"robotId"`
	Subject            PurgeSubject `json:"user" bson:"user"`
	Reasons            ReasonSet    `json:"reasons" bson:"reasons"`
	ScheduledRemovalAt time.Time    `json:"scheduledRemovalAt" bson:"scheduledRemovalAt"`
	LastAlertAt        *time.Time   `json:"lastAlertAt,omitempty" bson:"lastAlertAt,omitempty"`
	CreationTime       time.Time    `json:"creationTime" bson:"creationTime"`
}

// Key returns the identity of the record.
func (r PurgeRecord) Key() PurgeKey { return PurgeKey{RobotID: r.RobotID, UserID: r.Subject.UserID} }

// PurgeRecordPatch lists the mutable fields of a record. Nil fields are left
// unchanged.
type PurgeRecordPatch struct {
	LastAlertAt *time.Time
}

// PurgeLogEntry is the durable trail of one removal.
type PurgeLogEntry struct {
	ID        string        `json:"id" bson:"_id"`
	RobotID   string        `json:"robotId" bson:"robotId"`
	RobotName string        `json:"robotName" bson:"robotName"`
	User      DirectoryUser `json:"user" bson:"user"`
	Reasons   ReasonSet     `json:"reasons" bson:"reasons"`
	RemovedAt time.Time     `json:"removedAt" bson:"removedAt"`
}

// Report is the read-model exposed to operators.
type Report struct {
	Queued  []*PurgeRecord   `json:"queued"`
	Removed []*PurgeLogEntry `json:"removed"`
}
