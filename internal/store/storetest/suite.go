// Package storetest holds the behavioural suite every store.Store driver must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// The store may be shared with other data; the suite only touches rows it
// creates under fresh ids.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	// Robots
	r, err := s.Robots().Create(ctx, &model.Robot{
		Name:        "compliance-" + uuid.New().String()[:8],
		Description: "storetest",
		Credential: model.Credential{
			PlatformEmail:     "bot@example.test",
			PlatformAPIKey:    "key",
			PlatformType:      model.PlatformCloud,
			CloudSessionToken: "session",
		},
		Policy:       model.Policy{Active: true, ScheduleDays: 1, LastActiveDays: 30, CheckDoubleEmail: true},
		CreationTime: base,
	})
	if err != nil {
		t.Fatalf("CreateRobot: %v", err)
	}
	if r.ID == "" {
		t.Fatalf("CreateRobot: empty robot id")
	}
	got, err := s.Robots().Get(ctx, r.ID)
	if err != nil || got.Name != r.Name || got.Credential.PlatformAPIKey != "key" || !got.Policy.CheckDoubleEmail {
		t.Fatalf("GetRobot: got=%+v err=%v", got, err)
	}
	if got.Policy.LastUpdated != nil {
		t.Fatalf("GetRobot: fresh robot has lastUpdated %v", got.Policy.LastUpdated)
	}
	if lst, err := s.Robots().List(ctx); err != nil || !containsRobot(lst, r.ID) {
		t.Fatalf("ListRobots: n=%d err=%v", len(lst), err)
	}
	if _, err := s.Robots().Get(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetRobot missing: want ErrNotFound, got %v", err)
	}

	stamp := base.Add(-time.Hour)
	if err := s.Robots().SetLastUpdated(ctx, r.ID, stamp); err != nil {
		t.Fatalf("SetLastUpdated: %v", err)
	}
	got.Name = got.Name + "-renamed"
	got.Policy.ScheduleDays = 5
	got.Policy.LastUpdated = nil
	if err := s.Robots().Update(ctx, got); err != nil {
		t.Fatalf("UpdateRobot: %v", err)
	}
	got, err = s.Robots().Get(ctx, r.ID)
	if err != nil || got.Policy.ScheduleDays != 5 || got.Name != r.Name+"-renamed" {
		t.Fatalf("GetRobot after update: got=%+v err=%v", got, err)
	}
	if got.Policy.LastUpdated == nil || !got.Policy.LastUpdated.Equal(stamp) {
		t.Fatalf("Update must not move lastUpdated: %v", got.Policy.LastUpdated)
	}

	// Purge records
	userID := "u-" + uuid.New().String()
	rec := &model.PurgeRecord{
		RobotID:            r.ID,
		Subject:            model.PurgeSubject{UserID: userID, DisplayName: "Jane", Email: "jane@example.test", LastActive: base.Add(-40 * model.Day)},
		Reasons:            model.ReasonSet{model.ReasonLastActive},
		ScheduledRemovalAt: base.Add(7 * model.Day),
		CreationTime:       base,
	}
	key := rec.Key()
	created, err := s.PurgeRecords().Upsert(ctx, rec)
	if err != nil || !created {
		t.Fatalf("Upsert new: created=%v err=%v", created, err)
	}

	again := *rec
	again.Reasons = model.ReasonSet{model.ReasonActiveStatus, model.ReasonLastActive}
	again.ScheduledRemovalAt = base.Add(30 * model.Day)
	again.Subject.DisplayName = "Changed"
	created, err = s.PurgeRecords().Upsert(ctx, &again)
	if err != nil || created {
		t.Fatalf("Upsert existing: created=%v err=%v", created, err)
	}
	pr, err := s.PurgeRecords().Get(ctx, key)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !pr.Reasons.Equal(model.ReasonSet{model.ReasonActiveStatus, model.ReasonLastActive}) {
		t.Fatalf("Upsert must union reasons, got %v", pr.Reasons)
	}
	if !pr.ScheduledRemovalAt.Equal(rec.ScheduledRemovalAt) || pr.Subject.DisplayName != "Jane" {
		t.Fatalf("Upsert must keep the original record, got %+v", pr)
	}
	if pr.LastAlertAt != nil {
		t.Fatalf("fresh record has lastAlertAt %v", pr.LastAlertAt)
	}
	if !pr.Subject.LastActive.Equal(rec.Subject.LastActive) {
		t.Fatalf("snapshot lastActive: got %v want %v", pr.Subject.LastActive, rec.Subject.LastActive)
	}

	if lst, err := s.PurgeRecords().List(ctx, r.ID); err != nil || len(lst) != 1 || lst[0].Subject.UserID != userID {
		t.Fatalf("ListRecords by robot: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.PurgeRecords().List(ctx, ""); err != nil || !containsRecord(lst, key) {
		t.Fatalf("ListRecords all: n=%d err=%v", len(lst), err)
	}

	alert := base.Add(time.Hour)
	if n, err := s.PurgeRecords().Patch(ctx, key, model.PurgeRecordPatch{LastAlertAt: &alert}); err != nil || n != 1 {
		t.Fatalf("Patch: n=%d err=%v", n, err)
	}
	if pr, err = s.PurgeRecords().Get(ctx, key); err != nil || pr.LastAlertAt == nil || !pr.LastAlertAt.Equal(alert) {
		t.Fatalf("Patch not applied: %+v err=%v", pr, err)
	}
	missing := model.PurgeKey{RobotID: r.ID, UserID: "nobody-" + uuid.New().String()}
	if n, err := s.PurgeRecords().Patch(ctx, missing, model.PurgeRecordPatch{LastAlertAt: &alert}); err != nil || n != 0 {
		t.Fatalf("Patch missing: n=%d err=%v", n, err)
	}
	if _, err := s.PurgeRecords().Get(ctx, missing); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetRecord missing: want ErrNotFound, got %v", err)
	}

	if n, err := s.PurgeRecords().Delete(ctx, key); err != nil || n != 1 {
		t.Fatalf("DeleteRecord: n=%d err=%v", n, err)
	}
	if n, err := s.PurgeRecords().Delete(ctx, key); err != nil || n != 0 {
		t.Fatalf("DeleteRecord twice: n=%d err=%v", n, err)
	}

	for i := 0; i < 3; i++ {
		r2 := *rec
		r2.Subject.UserID = userID + "-" + string(rune('a'+i))
		if _, err := s.PurgeRecords().Upsert(ctx, &r2); err != nil {
			t.Fatalf("Upsert batch: %v", err)
		}
	}
	if n, err := s.PurgeRecords().DeleteByRobot(ctx, r.ID); err != nil || n != 3 {
		t.Fatalf("DeleteByRobot: n=%d err=%v", n, err)
	}

	// Purge log
	presence := base.Add(-40 * model.Day)
	for i, at := range []time.Time{base, base.Add(time.Minute)} {
		e := &model.PurgeLogEntry{
			ID:        uuid.New().String(),
			RobotID:   r.ID,
			RobotName: r.Name,
			User: model.DirectoryUser{
				ID: userID, DisplayName: "Jane", Email: "jane@example.test",
				Active: i == 0, Created: base.Add(-100 * model.Day), Presence: &presence,
			},
			Reasons:   model.ReasonSet{model.ReasonLastActive},
			RemovedAt: at,
		}
		if err := s.PurgeLog().Append(ctx, e); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}
	entries, err := s.PurgeLog().List(ctx, r.ID)
	if err != nil || len(entries) != 2 {
		t.Fatalf("ListLog: n=%d err=%v", len(entries), err)
	}
	if !entries[0].RemovedAt.Before(entries[1].RemovedAt) {
		t.Fatalf("ListLog must be chronological")
	}
	if e := entries[0]; e.User.ID != userID || e.User.Presence == nil || !e.User.Presence.Equal(presence) || !e.User.Active || e.RobotName != r.Name {
		t.Fatalf("ListLog lost user details: %+v", e)
	}
	if !entries[1].Reasons.Equal(model.ReasonSet{model.ReasonLastActive}) {
		t.Fatalf("ListLog reasons: %v", entries[1].Reasons)
	}
	if all, err := s.PurgeLog().List(ctx, ""); err != nil || len(all) < 2 {
		t.Fatalf("ListLog all: n=%d err=%v", len(all), err)
	}

	// Cleanup
	if err := s.Robots().Delete(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRobot: %v", err)
	}
	if err := s.Robots().Delete(ctx, r.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("DeleteRobot twice: want ErrNotFound, got %v", err)
	}
	if entries, err := s.PurgeLog().List(ctx, r.ID); err != nil || len(entries) != 2 {
		t.Fatalf("purge log must outlive its robot: n=%d err=%v", len(entries), err)
	}
}

func containsRobot(lst []*model.Robot, id string) bool {
	for _, r := range lst {
		if r.ID == id {
			return true
		}
	}
	return false
}

func containsRecord(lst []*model.PurgeRecord, key model.PurgeKey) bool {
	for _, r := range lst {
		if r.Key() == key {
			return true
		}
	}
	return false
}
