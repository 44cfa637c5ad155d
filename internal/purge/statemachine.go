// Package purge owns the lifecycle of queued removals: the per-record state
// machine and the tick orchestrator that drives it for every robot.
package purge

import (
	"time"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// Default lifecycle windows.
const (
	DefaultGraceWindow   = 7 * model.Day
	DefaultAlertInterval = 3 * model.Day
)

// Rules are the lifecycle windows, resolved once from configuration.
type Rules struct {
	GraceWindow   time.Duration
	AlertInterval time.Duration
}

// DefaultRules returns the stock 7 day grace window and 3 day warn cadence.
func DefaultRules() Rules {
	return Rules{GraceWindow: DefaultGraceWindow, AlertInterval: DefaultAlertInterval}
}

func (r Rules) withDefaults() Rules {
	if r.GraceWindow <= 0 {
		r.GraceWindow = DefaultGraceWindow
	}
	if r.AlertInterval <= 0 {
		r.AlertInterval = DefaultAlertInterval
	}
	return r
}

// Action is what a tick should do with one record.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionRemove
	ActionClear
	// ActionExpire drops a record whose user left the directory on its own.
	ActionExpire
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWarn:
		return "warn"
	case ActionRemove:
		return "remove"
	case ActionClear:
		return "clear"
	case ActionExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// NewRecord builds the Flagged record for a freshly detected user.
func NewRecord(robotID string, u model.DirectoryUser, reasons model.ReasonSet, now time.Time, rules Rules) *model.PurgeRecord {
	rules = rules.withDefaults()
	return &model.PurgeRecord{
		RobotID:            robotID,
		Subject:            u.Subject(),
		Reasons:            model.NewReasonSet(reasons...),
		ScheduledRemovalAt: now.Add(rules.GraceWindow),
		CreationTime:       now,
	}
}

// ShouldWarn reports whether a warning is due: never warned, or the last
// warning is at least one alert interval old.
func ShouldWarn(rec *model.PurgeRecord, now time.Time, rules Rules) bool {
	rules = rules.withDefaults()
	if rec.LastAlertAt == nil {
		return true
	}
	return !now.Before(rec.LastAlertAt.Add(rules.AlertInterval))
}

// ShouldRemove reports whether the grace window has elapsed.
func ShouldRemove(rec *model.PurgeRecord, now time.Time) bool {
	return !now.Before(rec.ScheduledRemovalAt)
}

// ReasonHolds re-checks one recorded reason against the live user, using the
// snapshot taken at detection as the reference.
func ReasonHolds(r model.PurgeReason, snap model.PurgeSubject, u model.DirectoryUser) bool {
	switch r {
	case model.ReasonActiveStatus:
		return !u.Active
	case model.ReasonDuplicateEmail:
		return u.Email == snap.Email
	case model.ReasonDuplicateName:
		return u.DisplayName == snap.DisplayName
	case model.ReasonLastActive:
		return !u.EffectiveLastActive().After(snap.LastActive)
	default:
		return false
	}
}

// StillMatches reports whether any recorded reason still holds.
func StillMatches(rec *model.PurgeRecord, u model.DirectoryUser) bool {
	for _, r := range rec.Reasons {
		if ReasonHolds(r, rec.Subject, u) {
			return true
		}
	}
	return false
}

// Decide picks the transition for rec. user is the live directory entry;
// present is false when the user is no longer in the roster.
//
// A record is never cleared or expired before its scheduled removal time,
// and a user who stopped matching is left alone until then.
func Decide(rec *model.PurgeRecord, user model.DirectoryUser, present bool, now time.Time, rules Rules) Action {
	due := ShouldRemove(rec, now)
	if !present {
		if due {
			return ActionExpire
		}
		return ActionNone
	}
	if !StillMatches(rec, user) {
		if due {
			return ActionClear
		}
		return ActionNone
	}
	if due {
		return ActionRemove
	}
	if ShouldWarn(rec, now, rules) {
		return ActionWarn
	}
	return ActionNone
}
