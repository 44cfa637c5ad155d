package model

import (
	"fmt"
	"strings"
	"time"
)

// PlatformType distinguishes Atlassian cloud sites from self-hosted servers.
type PlatformType string

const (
	PlatformCloud  PlatformType = "CLOUD"
	PlatformServer PlatformType = "SERVER"
)

// Day is the unit used by all policy windows.
const Day = 24 * time.Hour

// Credential holds what a robot needs to talk to the directory.
type Credential struct {
	PlatformEmail     string       `json:"platformEmail" bson:"platformEmail" yaml:"platformEmail"`
	PlatformAPIKey    string       `json:"platformApiKey" bson:"platformApiKey" yaml:"platformApiKey"`
	PlatformType      PlatformType `json:"platformType" bson:"platformType" yaml:"platformType"`
	CloudSessionToken string       `json:"cloudSessionToken" bson:"cloudSessionToken" yaml:"cloudSessionToken"`
}

// Redacted hides secrets for outbound representations.
func (c Credential) Redacted() Credential {
	out := c
	if out.PlatformAPIKey != "" {
		out.PlatformAPIKey = "********"
	}
	if out.CloudSessionToken != "" {
		out.CloudSessionToken = "********"
	}
	return out
}

// Policy is the per-robot set of checks and cadences.
type Policy struct {
	Active            bool       `json:"active" bson:"active" yaml:"active"`
	ScheduleDays      int        `json:"scheduleDays" bson:"scheduleDays" yaml:"scheduleDays"`
	LastActiveDays    int        `json:"lastActiveDays" bson:"lastActiveDays" yaml:"lastActiveDays"`
	CheckDoubleName   bool       `json:"checkDoubleName" bson:"checkDoubleName" yaml:"checkDoubleName"`
	CheckDoubleEmail  bool       `json:"checkDoubleEmail" bson:"checkDoubleEmail" yaml:"checkDoubleEmail"`
	CheckActiveStatus bool       `json:"checkActiveStatus" bson:"checkActiveStatus" yaml:"checkActiveStatus"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty" bson:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}

// Runnable reports whether the robot takes part in ticks at all.
func (p Policy) Runnable() bool { return p.Active && p.ScheduleDays > 0 }

// IsDue reports whether the evaluation pass should run at now. A policy
// that never ran is always due; otherwise it is due once more than
// ScheduleDays have passed since LastUpdated.
func (p Policy) IsDue(now time.Time) bool {
	if p.LastUpdated == nil {
		return true
	}
	return now.After(p.LastUpdated.Add(time.Duration(p.ScheduleDays) * Day))
}

// Robot is a per-organization automation profile.
type Robot struct {
	ID           string     `json:"id" bson:"_id"`
	Name         string     `json:"name" bson:"name"`
	Description  string     `json:"description" bson:"description"`
	Credential   Credential `json:"credential" bson:"credential"`
	Policy       Policy     `json:"policy" bson:"policy"`
	CreationTime time.Time  `json:"creationTime" bson:"creationTime"`
}

// Redacted returns a copy safe to hand to API clients.
func (r Robot) Redacted() Robot {
	out := r
	out.Credential = r.Credential.Redacted()
	return out
}

// Validate checks the invariants every stored robot must satisfy.
func (r Robot) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch r.Credential.PlatformType {
	case PlatformCloud, PlatformServer:
	default:
		return fmt.Errorf("%w: unknown platform type %q", ErrValidation, r.Credential.PlatformType)
	}
	if r.Policy.ScheduleDays < 0 {
		return fmt.Errorf("%w: scheduleDays must not be negative", ErrValidation)
	}
	if r.Policy.LastActiveDays < 0 {
		return fmt.Errorf("%w: lastActiveDays must not be negative", ErrValidation)
	}
	return nil
}

// ParsePlatformType accepts either case; empty defaults to CLOUD.
func ParsePlatformType(s string) (PlatformType, bool) {
	switch PlatformType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", PlatformCloud:
		return PlatformCloud, true
	case PlatformServer:
		return PlatformServer, true
	default:
		return "", false
	}
}

// RobotPatch carries optional fields for a partial robot update.
type RobotPatch struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	PlatformEmail     *string `json:"platformEmail,omitempty"`
	PlatformAPIKey    *string `json:"platformApiKey,omitempty"`
	PlatformType      *string `json:"platformType,omitempty"`
	CloudSessionToken *string `json:"cloudSessionToken,omitempty"`
	Active            *bool   `json:"active,omitempty"`
	ScheduleDays      *int    `json:"scheduleDays,omitempty"`
	LastActiveDays    *int    `json:"lastActiveDays,omitempty"`
	CheckDoubleName   *bool   `json:"checkDoubleName,omitempty"`
	CheckDoubleEmail  *bool   `json:"checkDoubleEmail,omitempty"`
	CheckActiveStatus *bool   `json:"checkActiveStatus,omitempty"`
}

// Apply writes the set fields of p onto r. Platform type must already be
// validated by the caller.
func (p RobotPatch) Apply(r *Robot) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.PlatformEmail != nil {
		r.Credential.PlatformEmail = *p.PlatformEmail
	}
	if p.PlatformAPIKey != nil {
		r.Credential.PlatformAPIKey = *p.PlatformAPIKey
	}
	if p.PlatformType != nil {
		if pt, ok := ParsePlatformType(*p.PlatformType); ok {
			r.Credential.PlatformType = pt
		}
	}
	if p.CloudSessionToken != nil {
		r.Credential.CloudSessionToken = *p.CloudSessionToken
	}
	if p.Active != nil {
		r.Policy.Active = *p.Active
	}
	if p.ScheduleDays != nil {
		r.Policy.ScheduleDays = *p.ScheduleDays
	}
	if p.LastActiveDays != nil {
		r.Policy.LastActiveDays = *p.LastActiveDays
	}
	if p.CheckDoubleName != nil {
		r.Policy.CheckDoubleName = *p.CheckDoubleName
	}
	if p.CheckDoubleEmail != nil {
		r.Policy.CheckDoubleEmail = *p.CheckDoubleEmail
	}
	if p.CheckActiveStatus != nil {
		r.Policy.CheckActiveStatus = *p.CheckActiveStatus
	}
}
