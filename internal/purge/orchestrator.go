package purge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/logger"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/metrics"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/policy"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// Config controls the orchestrator.
type Config struct {
	Rules  Rules
	Policy policy.Options
	// MaxConcurrentRobots bounds how many robots run at once within a tick.
	MaxConcurrentRobots int
	// CallTimeout bounds each removal or notification call.
	CallTimeout time.Duration
	// RosterTimeout bounds a whole paginated roster fetch, retries included.
	// Single pages are bounded by the directory client.
	RosterTimeout time.Duration
}

// Orchestrator runs the evaluate-then-transition pass for every robot.
type Orchestrator struct {
	store    store.Store
	roster   RosterSource
	admin    DirectoryAdmin
	notifier Notifier
	cfg      Config
	log      zerolog.Logger

	// robotLocks serializes passes of the same robot (*sync.Mutex per id).
	robotLocks sync.Map
}

// NewOrchestrator constructs an Orchestrator from dependencies.
func NewOrchestrator(st store.Store, roster RosterSource, admin DirectoryAdmin, notifier Notifier, cfg Config, log zerolog.Logger) *Orchestrator {
	cfg.Rules = cfg.Rules.withDefaults()
	if cfg.MaxConcurrentRobots <= 0 {
		cfg.MaxConcurrentRobots = 4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.RosterTimeout <= 0 {
		cfg.RosterTimeout = 10 * time.Minute
	}
	return &Orchestrator{store: st, roster: roster, admin: admin, notifier: notifier, cfg: cfg, log: log}
}

// RunResult summarizes one robot pass.
type RunResult struct {
	RobotID    string `json:"robotId"`
	Evaluated  bool   `json:"evaluated"`
	RosterSize int    `json:"rosterSize"`
	Flagged    int    `json:"flagged"`
	Inserted   int    `json:"inserted"`
	Warned     int    `json:"warned"`
	Removed    int    `json:"removed"`
	Cleared    int    `json:"cleared"`
	Expired    int    `json:"expired"`
}

func (r *RunResult) count(a Action) {
	switch a {
	case ActionWarn:
		r.Warned++
	case ActionRemove:
		r.Removed++
	case ActionClear:
		r.Cleared++
	case ActionExpire:
		r.Expired++
	}
}

// Tick runs one pass over every runnable robot. Robots run concurrently;
// a failing robot is logged and never stops the others. The only error
// returned is a failure to list robots.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) error {
	start := time.Now()
	metrics.TicksTotal.Inc()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	robots, err := o.store.Robots().List(ctx)
	if err != nil {
		return fmt.Errorf("list robots: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxConcurrentRobots)
	for _, r := range robots {
		if !r.Policy.Runnable() {
			metrics.RobotRunsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		robot := r
		g.Go(func() error {
			res, err := o.RunRobot(ctx, robot, now)
			if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrRobotInactive) {
				metrics.RobotRunsTotal.WithLabelValues("skipped").Inc()
				o.log.Info().Str("robot_id", robot.ID).Str("robot", robot.Name).Msg("robot deleted or paused since listing, skipped")
				return nil
			}
			if err != nil {
				o.log.Error().Err(err).Str("robot_id", robot.ID).Str("robot", robot.Name).Msg("robot pass failed")
				return nil
			}
			o.log.Info().
				Str("robot_id", robot.ID).
				Str("robot", robot.Name).
				Bool("evaluated", res.Evaluated).
				Int("roster", res.RosterSize).
				Int("inserted", res.Inserted).
				Int("warned", res.Warned).
				Int("removed", res.Removed).
				Int("cleared", res.Cleared).
				Int("expired", res.Expired).
				Msg("robot pass complete")
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// RunRobot performs one pass for robot at now: fetch the roster, evaluate and
// queue new candidates when the robot is due, then walk every queued record
// through the state machine. The returned error covers the steps that make
// the rest of the pass meaningless (robot reload, roster fetch, record
// listing); per-record failures are logged and skipped.
//
// The robot is reloaded once its lock is held, so a pass that waited behind
// another one sees the newer lastUpdated, and a robot deleted in the
// meantime yields ErrNotFound instead of new records. robot is updated in
// place with the reloaded state.
func (o *Orchestrator) RunRobot(ctx context.Context, robot *model.Robot, now time.Time) (RunResult, error) {
	unlock := o.LockRobot(robot.ID)
	defer unlock()

	res := RunResult{RobotID: robot.ID}
	fresh, err := o.store.Robots().Get(ctx, robot.ID)
	if err != nil {
		return res, fmt.Errorf("reload robot: %w", err)
	}
	if !fresh.Policy.Runnable() {
		return res, fmt.Errorf("%w: %s", model.ErrRobotInactive, robot.ID)
	}
	*robot = *fresh
	log := logger.Robot(o.log, robot.ID, robot.Name)

	// A failed fetch skips the whole pass: treating it as an empty roster
	// would expire every queued record.
	users, err := o.fetchRoster(ctx, robot)
	if err != nil {
		metrics.RobotRunsTotal.WithLabelValues("roster_error").Inc()
		return res, fmt.Errorf("fetch roster: %w", err)
	}
	res.RosterSize = len(users)
	byID := make(map[string]model.DirectoryUser, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	due := robot.Policy.IsDue(now)
	if due {
		res.Evaluated = true
		candidates := policy.Evaluate(robot.Policy, users, now, o.cfg.Policy)
		res.Flagged = len(candidates)
		res.Inserted = o.queue(ctx, log, robot, candidates, byID, now)
	}

	records, err := o.store.PurgeRecords().List(ctx, robot.ID)
	if err != nil {
		metrics.RobotRunsTotal.WithLabelValues("store_error").Inc()
		return res, fmt.Errorf("list purge records: %w", err)
	}
	for _, rec := range records {
		u, present := byID[rec.Subject.UserID]
		action := Decide(rec, u, present, now, o.cfg.Rules)
		if action == ActionNone {
			continue
		}
		if o.apply(ctx, log, robot, rec, u, action, now) {
			res.count(action)
			metrics.TransitionsTotal.WithLabelValues(action.String()).Inc()
		}
	}

	if due {
		if err := o.store.Robots().SetLastUpdated(ctx, robot.ID, now); err != nil {
			log.Error().Err(err).Msg("stamp lastUpdated")
		} else {
			robot.Policy.LastUpdated = &now
		}
	}
	metrics.RobotRunsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// LockRobot blocks until no pass of robotID is running and returns the
// matching unlock. Holders may change the robot's records without racing a
// pass.
func (o *Orchestrator) LockRobot(robotID string) (unlock func()) {
	v, _ := o.robotLocks.LoadOrStore(robotID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (o *Orchestrator) fetchRoster(ctx context.Context, robot *model.Robot) ([]model.DirectoryUser, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.RosterTimeout)
	defer cancel()
	return o.roster.FetchUsers(callCtx, robot.Credential)
}

// queue upserts one record per candidate, in user id order, and returns how
// many were new.
func (o *Orchestrator) queue(ctx context.Context, log zerolog.Logger, robot *model.Robot, candidates policy.Candidates, byID map[string]model.DirectoryUser, now time.Time) int {
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inserted := 0
	for _, id := range ids {
		rec := NewRecord(robot.ID, byID[id], candidates[id], now, o.cfg.Rules)
		created, err := o.store.PurgeRecords().Upsert(ctx, rec)
		if err != nil {
			metrics.EffectFailuresTotal.WithLabelValues("upsert").Inc()
			log.Error().Err(err).Str("user_id", id).Msg("queue purge candidate")
			continue
		}
		if created {
			inserted++
			metrics.CandidatesTotal.Inc()
			log.Info().Str("user_id", id).Str("user", rec.Subject.DisplayName).Strs("reasons", rec.Reasons.Strings()).Msg("user flagged")
		}
	}
	return inserted
}

// apply executes the side effects of action and reports whether the
// transition went through.
func (o *Orchestrator) apply(ctx context.Context, log zerolog.Logger, robot *model.Robot, rec *model.PurgeRecord, u model.DirectoryUser, action Action, now time.Time) bool {
	log = log.With().Str("user_id", rec.Subject.UserID).Str("user", rec.Subject.DisplayName).Logger()
	switch action {
	case ActionWarn:
		return o.warn(ctx, log, robot, rec, now)
	case ActionRemove:
		return o.remove(ctx, log, robot, rec, u, now)
	case ActionClear:
		return o.drop(ctx, log, rec, "user no longer matches, cleared")
	case ActionExpire:
		return o.drop(ctx, log, rec, "user left the directory, record expired")
	default:
		return false
	}
}

// warn stamps lastAlertAt, then sends. A record that is gone by the time it
// is stamped gets no warning.
func (o *Orchestrator) warn(ctx context.Context, log zerolog.Logger, robot *model.Robot, rec *model.PurgeRecord, now time.Time) bool {
	n, err := o.store.PurgeRecords().Patch(ctx, rec.Key(), model.PurgeRecordPatch{LastAlertAt: &now})
	if err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("patch").Inc()
		log.Error().Err(err).Msg("stamp lastAlertAt")
		return false
	}
	if n == 0 {
		log.Warn().Msg("purge record vanished before warning")
		return false
	}
	rec.LastAlertAt = &now

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	if err := o.notifier.SendWarning(callCtx, robot, rec); err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("notify").Inc()
		log.Error().Err(err).Str("email", rec.Subject.Email).Msg("send warning")
		return true
	}
	log.Info().Str("email", rec.Subject.Email).Time("scheduled_removal_at", rec.ScheduledRemovalAt).Msg("user warned")
	return true
}

// remove writes the log entry, then deletes the record, then asks the
// directory to drop the account. A failed step stops the sequence.
func (o *Orchestrator) remove(ctx context.Context, log zerolog.Logger, robot *model.Robot, rec *model.PurgeRecord, u model.DirectoryUser, now time.Time) bool {
	entry := &model.PurgeLogEntry{
		ID:        uuid.New().String(),
		RobotID:   robot.ID,
		RobotName: robot.Name,
		User:      u,
		Reasons:   rec.Reasons,
		RemovedAt: now,
	}
	if err := o.store.PurgeLog().Append(ctx, entry); err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("log").Inc()
		log.Error().Err(err).Msg("append purge log")
		return false
	}

	n, err := o.store.PurgeRecords().Delete(ctx, rec.Key())
	if err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("delete").Inc()
		log.Error().Err(err).Str("log_id", entry.ID).Msg("delete purge record after logging")
		return false
	}
	if n == 0 {
		log.Warn().Str("log_id", entry.ID).Msg("purge record already gone, skipping directory removal")
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	if err := o.admin.RemoveUser(callCtx, robot.Credential, rec.Subject.UserID); err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("directory_remove").Inc()
		log.Error().Err(err).Msg("remove user from directory")
		return true
	}
	log.Info().Strs("reasons", rec.Reasons.Strings()).Msg("user removed")
	return true
}

func (o *Orchestrator) drop(ctx context.Context, log zerolog.Logger, rec *model.PurgeRecord, msg string) bool {
	n, err := o.store.PurgeRecords().Delete(ctx, rec.Key())
	if err != nil {
		metrics.EffectFailuresTotal.WithLabelValues("delete").Inc()
		log.Error().Err(err).Msg("delete purge record")
		return false
	}
	if n == 0 {
		return false
	}
	log.Info().Msg(msg)
	return true
}
