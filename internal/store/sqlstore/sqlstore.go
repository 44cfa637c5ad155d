// Package sqlstore implements store.Store on database/sql. The postgres and
// sqlite packages supply the connection, schema and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
	// LockClause is appended to read-for-update selects.
	LockClause string
}

var (
	Postgres = Dialect{Name: "postgres", Numbered: true, LockClause: " FOR UPDATE"}
	SQLite   = Dialect{Name: "sqlite"}
)

// rebind rewrites ? placeholders for numbered dialects.
func (d Dialect) rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// New wraps db. The schema must already exist.
func New(db *sql.DB, d Dialect) store.Store { return &sqlStore{db: db, d: d} }

type sqlStore struct {
	db *sql.DB
	d  Dialect
}

func (s *sqlStore) Robots() store.Robots             { return &robots{db: s.db, d: s.d} }
func (s *sqlStore) PurgeRecords() store.PurgeRecords { return &records{db: s.db, d: s.d} }
func (s *sqlStore) PurgeLog() store.PurgeLog         { return &purgeLog{db: s.db, d: s.d} }

// HealthPing implements health.HealthPinger.
func (s *sqlStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// DB exposes the underlying connection.
func (s *sqlStore) DB() *sql.DB { return s.db }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func encodeReasons(rs model.ReasonSet) (string, error) {
	b, err := json.Marshal(model.NewReasonSet(rs...).Strings())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeReasons(raw []byte) (model.ReasonSet, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("decode reasons: %w", err)
	}
	rs := make([]model.PurgeReason, 0, len(ss))
	for _, s := range ss {
		rs = append(rs, model.PurgeReason(s))
	}
	return model.NewReasonSet(rs...), nil
}

// --- Robots ---
type robots struct {
	db *sql.DB
	d  Dialect
}

const robotColumns = `robot_id, name, description, platform_email, platform_api_key, platform_type,
cloud_session_token, active, schedule_days, last_active_days, check_double_name,
check_double_email, check_active_status, last_updated, creation_time`

type scanner interface{ Scan(dest ...any) error }

func scanRobot(row scanner) (*model.Robot, error) {
	var (
		out  model.Robot
		pt   string
		last sql.NullTime
	)
	if err := row.Scan(&out.ID, &out.Name, &out.Description,
		&out.Credential.PlatformEmail, &out.Credential.PlatformAPIKey, &pt,
		&out.Credential.CloudSessionToken, &out.Policy.Active, &out.Policy.ScheduleDays,
		&out.Policy.LastActiveDays, &out.Policy.CheckDoubleName, &out.Policy.CheckDoubleEmail,
		&out.Policy.CheckActiveStatus, &last, &out.CreationTime); err != nil {
		return nil, err
	}
	out.Credential.PlatformType = model.PlatformType(pt)
	out.Policy.LastUpdated = fromNullTime(last)
	out.CreationTime = out.CreationTime.UTC()
	return &out, nil
}

func (r *robots) Create(ctx context.Context, m *model.Robot) (*model.Robot, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.d.rebind(`
        INSERT INTO robots (`+robotColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
    `), out.ID, out.Name, out.Description,
		out.Credential.PlatformEmail, out.Credential.PlatformAPIKey, string(out.Credential.PlatformType),
		out.Credential.CloudSessionToken, out.Policy.Active, out.Policy.ScheduleDays,
		out.Policy.LastActiveDays, out.Policy.CheckDoubleName, out.Policy.CheckDoubleEmail,
		out.Policy.CheckActiveStatus, nullTime(out.Policy.LastUpdated), out.CreationTime.UTC())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *robots) Get(ctx context.Context, robotID string) (*model.Robot, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+robotColumns+` FROM robots WHERE robot_id=?`), robotID)
	out, err := scanRobot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: robot %s", model.ErrNotFound, robotID)
	}
	return out, err
}

func (r *robots) List(ctx context.Context) ([]*model.Robot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+robotColumns+` FROM robots ORDER BY creation_time ASC, robot_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []*model.Robot{}
	for rows.Next() {
		m, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *robots) Update(ctx context.Context, m *model.Robot) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`
        UPDATE robots SET name=?, description=?, platform_email=?, platform_api_key=?,
            platform_type=?, cloud_session_token=?, active=?, schedule_days=?,
            last_active_days=?, check_double_name=?, check_double_email=?, check_active_status=?
        WHERE robot_id=?
    `), m.Name, m.Description, m.Credential.PlatformEmail, m.Credential.PlatformAPIKey,
		string(m.Credential.PlatformType), m.Credential.CloudSessionToken, m.Policy.Active,
		m.Policy.ScheduleDays, m.Policy.LastActiveDays, m.Policy.CheckDoubleName,
		m.Policy.CheckDoubleEmail, m.Policy.CheckActiveStatus, m.ID)
	return expectOne(res, err, "robot", m.ID)
}

func (r *robots) SetLastUpdated(ctx context.Context, robotID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`UPDATE robots SET last_updated=? WHERE robot_id=?`), at.UTC(), robotID)
	return expectOne(res, err, "robot", robotID)
}

func (r *robots) Delete(ctx context.Context, robotID string) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`DELETE FROM robots WHERE robot_id=?`), robotID)
	return expectOne(res, err, "robot", robotID)
}

func expectOne(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, kind, id)
	}
	return nil
}

// --- Purge records ---
type records struct {
	db *sql.DB
	d  Dialect
}

const recordColumns = `robot_id, user_id, display_name, email, last_active, reasons,
scheduled_removal_at, last_alert_at, creation_time`

func scanRecord(row scanner) (*model.PurgeRecord, error) {
	var (
		out   model.PurgeRecord
		raw   []byte
		alert sql.NullTime
	)
	if err := row.Scan(&out.RobotID, &out.Subject.UserID, &out.Subject.DisplayName, &out.Subject.Email,
		&out.Subject.LastActive, &raw, &out.ScheduledRemovalAt, &alert, &out.CreationTime); err != nil {
		return nil, err
	}
	rs, err := decodeReasons(raw)
	if err != nil {
		return nil, err
	}
	out.Reasons = rs
	out.LastAlertAt = fromNullTime(alert)
	out.Subject.LastActive = out.Subject.LastActive.UTC()
	out.ScheduledRemovalAt = out.ScheduledRemovalAt.UTC()
	out.CreationTime = out.CreationTime.UTC()
	return &out, nil
}

// Upsert inserts the record or unions its reasons into the existing one,
// inside a single transaction.
func (r *records) Upsert(ctx context.Context, rec *model.PurgeRecord) (bool, error) {
	reasons, err := encodeReasons(rec.Reasons)
	if err != nil {
		return false, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.d.rebind(`
        INSERT INTO purge_records (`+recordColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?)
        ON CONFLICT (robot_id, user_id) DO NOTHING
    `), rec.RobotID, rec.Subject.UserID, rec.Subject.DisplayName, rec.Subject.Email,
		rec.Subject.LastActive.UTC(), reasons, rec.ScheduledRemovalAt.UTC(),
		nullTime(rec.LastAlertAt), rec.CreationTime.UTC())
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 1 {
		return true, tx.Commit()
	}

	var raw []byte
	if err := tx.QueryRowContext(ctx, r.d.rebind(`
        SELECT reasons FROM purge_records WHERE robot_id=? AND user_id=?`+r.d.LockClause),
		rec.RobotID, rec.Subject.UserID).Scan(&raw); err != nil {
		return false, err
	}
	current, err := decodeReasons(raw)
	if err != nil {
		return false, err
	}
	merged := current.Union(rec.Reasons)
	if !merged.Equal(current) {
		enc, err := encodeReasons(merged)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`UPDATE purge_records SET reasons=? WHERE robot_id=? AND user_id=?`),
			enc, rec.RobotID, rec.Subject.UserID); err != nil {
			return false, err
		}
	}
	return false, tx.Commit()
}

func (r *records) Get(ctx context.Context, key model.PurgeKey) (*model.PurgeRecord, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+recordColumns+` FROM purge_records WHERE robot_id=? AND user_id=?`),
		key.RobotID, key.UserID)
	out, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: purge record %s/%s", model.ErrNotFound, key.RobotID, key.UserID)
	}
	return out, err
}

func (r *records) List(ctx context.Context, robotID string) ([]*model.PurgeRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM purge_records`
	var args []any
	if robotID != "" {
		q += ` WHERE robot_id=?`
		args = append(args, robotID)
	}
	q += ` ORDER BY robot_id ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []*model.PurgeRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *records) Patch(ctx context.Context, key model.PurgeKey, p model.PurgeRecordPatch) (int64, error) {
	if p.LastAlertAt == nil {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, r.d.rebind(`UPDATE purge_records SET last_alert_at=? WHERE robot_id=? AND user_id=?`),
		p.LastAlertAt.UTC(), key.RobotID, key.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *records) Delete(ctx context.Context, key model.PurgeKey) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`DELETE FROM purge_records WHERE robot_id=? AND user_id=?`), key.RobotID, key.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *records) DeleteByRobot(ctx context.Context, robotID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`DELETE FROM purge_records WHERE robot_id=?`), robotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Purge log ---
type purgeLog struct {
	db *sql.DB
	d  Dialect
}

func (l *purgeLog) Append(ctx context.Context, e *model.PurgeLogEntry) error {
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	user, err := json.Marshal(e.User)
	if err != nil {
		return err
	}
	reasons, err := encodeReasons(e.Reasons)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, l.d.rebind(`
        INSERT INTO purge_log (log_id, robot_id, robot_name, user_id, user_json, reasons, removed_at)
        VALUES (?,?,?,?,?,?,?)
    `), id, e.RobotID, e.RobotName, e.User.ID, string(user), reasons, e.RemovedAt.UTC())
	return err
}

func (l *purgeLog) List(ctx context.Context, robotID string) ([]*model.PurgeLogEntry, error) {
	q := `SELECT log_id, robot_id, robot_name, user_json, reasons, removed_at FROM purge_log`
	var args []any
	if robotID != "" {
		q += ` WHERE robot_id=?`
		args = append(args, robotID)
	}
	q += ` ORDER BY removed_at ASC, log_id ASC`

	rows, err := l.db.QueryContext(ctx, l.d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []*model.PurgeLogEntry{}
	for rows.Next() {
		var (
			e       model.PurgeLogEntry
			userRaw []byte
			rawRs   []byte
		)
		if err := rows.Scan(&e.ID, &e.RobotID, &e.RobotName, &userRaw, &rawRs, &e.RemovedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(userRaw, &e.User); err != nil {
			return nil, fmt.Errorf("decode purge log user: %w", err)
		}
		if e.Reasons, err = decodeReasons(rawRs); err != nil {
			return nil, err
		}
		e.RemovedAt = e.RemovedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
