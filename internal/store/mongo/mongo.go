// Package mongo implements store.Store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

const (
	robotsCollection  = "robots"
	recordsCollection = "purge_records"
	logCollection     = "purge_log"
)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique purge-record key and the log lookup index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(recordsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "robotId", Value: 1}, {Key: "user.userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("robot_user_unique"),
	})
	if err != nil {
		return fmt.Errorf("purge_records index: %w", err)
	}
	_, err = db.Collection(logCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "robotId", Value: 1}, {Key: "removedAt", Value: 1}},
		Options: options.Index().SetName("robot_removed_at"),
	})
	if err != nil {
		return fmt.Errorf("purge_log index: %w", err)
	}
	return nil
}

// New wraps db.
func New(db *mongo.Database) store.Store { return &mongoStore{db: db} }

type mongoStore struct{ db *mongo.Database }

func (s *mongoStore) Robots() store.Robots {
	return &robots{c: s.db.Collection(robotsCollection)}
}
func (s *mongoStore) PurgeRecords() store.PurgeRecords {
	return &records{c: s.db.Collection(recordsCollection)}
}
func (s *mongoStore) PurgeLog() store.PurgeLog {
	return &purgeLog{c: s.db.Collection(logCollection)}
}

// HealthPing implements health.HealthPinger.
func (s *mongoStore) HealthPing(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// --- Robots ---
type robots struct{ c *mongo.Collection }

func normalizeRobot(r *model.Robot) *model.Robot {
	r.CreationTime = r.CreationTime.UTC()
	if r.Policy.LastUpdated != nil {
		t := r.Policy.LastUpdated.UTC()
		r.Policy.LastUpdated = &t
	}
	return r
}

func (r *robots) Create(ctx context.Context, m *model.Robot) (*model.Robot, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	if _, err := r.c.InsertOne(ctx, out); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: robot %s exists", model.ErrConflict, out.ID)
		}
		return nil, err
	}
	return &out, nil
}

func (r *robots) Get(ctx context.Context, robotID string) (*model.Robot, error) {
	var out model.Robot
	if err := r.c.FindOne(ctx, bson.M{"_id": robotID}).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
		}
		return nil, err
	}
	return normalizeRobot(&out), nil
}

func (r *robots) List(ctx context.Context) ([]*model.Robot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "creationTime", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []*model.Robot
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.Robot, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalizeRobot(d))
	}
	return out, nil
}

func (r *robots) Update(ctx context.Context, m *model.Robot) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{
		"name":                     m.Name,
		"description":              m.Description,
		"credential":               m.Credential,
		"policy.active":            m.Policy.Active,
		"policy.scheduleDays":      m.Policy.ScheduleDays,
		"policy.lastActiveDays":    m.Policy.LastActiveDays,
		"policy.checkDoubleName":   m.Policy.CheckDoubleName,
		"policy.checkDoubleEmail":  m.Policy.CheckDoubleEmail,
		"policy.checkActiveStatus": m.Policy.CheckActiveStatus,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, m.ID)
	}
	return nil
}

func (r *robots) SetLastUpdated(ctx context.Context, robotID string, at time.Time) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": robotID}, bson.M{"$set": bson.M{"policy.lastUpdated": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	return nil
}

func (r *robots) Delete(ctx context.Context, robotID string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": robotID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	return nil
}

// --- Purge records ---
type records struct{ c *mongo.Collection }

func keyFilter(key model.PurgeKey) bson.M {
	return bson.M{"robotId": key.RobotID, "user.userId": key.UserID}
}

func normalizeRecord(rec *model.PurgeRecord) *model.PurgeRecord {
	rec.Reasons = model.NewReasonSet(rec.Reasons...)
	rec.Subject.LastActive = rec.Subject.LastActive.UTC()
	rec.ScheduledRemovalAt = rec.ScheduledRemovalAt.UTC()
	rec.CreationTime = rec.CreationTime.UTC()
	if rec.LastAlertAt != nil {
		t := rec.LastAlertAt.UTC()
		rec.LastAlertAt = &t
	}
	return rec
}

// Upsert relies on $setOnInsert for the immutable fields and $addToSet for
// the reasons, so one round trip covers both the insert and the merge.
func (r *records) Upsert(ctx context.Context, rec *model.PurgeRecord) (bool, error) {
	onInsert := bson.M{
		"user.displayName":   rec.Subject.DisplayName,
		"user.email":         rec.Subject.Email,
		"user.lastActive":    rec.Subject.LastActive.UTC(),
		"scheduledRemovalAt": rec.ScheduledRemovalAt.UTC(),
		"creationTime":       rec.CreationTime.UTC(),
	}
	if rec.LastAlertAt != nil {
		onInsert["lastAlertAt"] = rec.LastAlertAt.UTC()
	}
	update := bson.M{
		"$setOnInsert": onInsert,
		"$addToSet":    bson.M{"reasons": bson.M{"$each": model.NewReasonSet(rec.Reasons...).Strings()}},
	}
	res, err := r.c.UpdateOne(ctx, keyFilter(rec.Key()), update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (r *records) Get(ctx context.Context, key model.PurgeKey) (*model.PurgeRecord, error) {
	var out model.PurgeRecord
	if err := r.c.FindOne(ctx, keyFilter(key)).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purge record %s/%s", model.ErrNotFound, key.RobotID, key.UserID)
		}
		return nil, err
	}
	return normalizeRecord(&out), nil
}

func (r *records) List(ctx context.Context, robotID string) ([]*model.PurgeRecord, error) {
	filter := bson.M{}
	if robotID != "" {
		filter["robotId"] = robotID
	}
	opts := options.Find().SetSort(bson.D{{Key: "robotId", Value: 1}, {Key: "user.userId", Value: 1}})
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []*model.PurgeRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.PurgeRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalizeRecord(d))
	}
	return out, nil
}

func (r *records) Patch(ctx context.Context, key model.PurgeKey, p model.PurgeRecordPatch) (int64, error) {
	set := bson.M{}
	if p.LastAlertAt != nil {
		set["lastAlertAt"] = p.LastAlertAt.UTC()
	}
	if len(set) == 0 {
		return 0, nil
	}
	res, err := r.c.UpdateOne(ctx, keyFilter(key), bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *records) Delete(ctx context.Context, key model.PurgeKey) (int64, error) {
	res, err := r.c.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *records) DeleteByRobot(ctx context.Context, robotID string) (int64, error) {
	res, err := r.c.DeleteMany(ctx, bson.M{"robotId": robotID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// --- Purge log ---
type purgeLog struct{ c *mongo.Collection }

func (l *purgeLog) Append(ctx context.Context, e *model.PurgeLogEntry) error {
	doc := *e
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.RemovedAt = doc.RemovedAt.UTC()
	_, err := l.c.InsertOne(ctx, doc)
	return err
}

func (l *purgeLog) List(ctx context.Context, robotID string) ([]*model.PurgeLogEntry, error) {
	filter := bson.M{}
	if robotID != "" {
		filter["robotId"] = robotID
	}
	opts := options.Find().SetSort(bson.D{{Key: "removedAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := l.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []*model.PurgeLogEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for _, e := range out {
		e.RemovedAt = e.RemovedAt.UTC()
		e.Reasons = model.NewReasonSet(e.Reasons...)
	}
	return out, nil
}
