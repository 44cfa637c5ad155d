package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonSet_UnionIsIdempotentAndCommutative(t *testing.T) {
	a := NewReasonSet(ReasonLastActive, ReasonActiveStatus)
	b := NewReasonSet(ReasonDuplicateName, ReasonLastActive)

	assert.True(t, a.Union(b).Equal(b.Union(a)))
	assert.True(t, a.Union(a).Equal(a))
	assert.Equal(t, ReasonSet{ReasonActiveStatus, ReasonLastActive, ReasonDuplicateName}, a.Union(b))
}

func TestReasonSet_NormalizesInput(t *testing.T) {
	s := NewReasonSet(ReasonDuplicateName, ReasonDuplicateName, "BOGUS", ReasonActiveStatus)
	assert.Equal(t, ReasonSet{ReasonActiveStatus, ReasonDuplicateName}, s)
	assert.True(t, s.Has(ReasonDuplicateName))
	assert.False(t, s.Has(ReasonLastActive))
	assert.Equal(t, "ACTIVE_STATUS,DUPLICATE_NAME", s.String())

	var empty ReasonSet
	assert.Equal(t, ReasonSet{ReasonLastActive}, empty.Add(ReasonLastActive))
	assert.Len(t, empty, 0)
}

func TestParsePurgeReason(t *testing.T) {
	r, err := ParsePurgeReason(" duplicate_email ")
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicateEmail, r)

	_, err = ParsePurgeReason("nope")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEffectiveLastActive_Precedence(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	invited := created.Add(24 * time.Hour)
	presence := created.Add(48 * time.Hour)

	u := DirectoryUser{ID: "u1", Created: created}
	assert.Equal(t, created, u.EffectiveLastActive())

	u.InvitationStatus = &InvitationStatus{Status: "PENDING"}
	assert.Equal(t, created, u.EffectiveLastActive(), "invitation without timestamp falls through")

	u.InvitationStatus.InvitedAt = &invited
	assert.Equal(t, invited, u.EffectiveLastActive())

	u.Presence = &presence
	assert.Equal(t, presence, u.EffectiveLastActive())
	assert.Equal(t, presence, u.Subject().LastActive)
}

func TestPolicy_IsDueAndRunnable(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	p := Policy{Active: true, ScheduleDays: 2}
	assert.True(t, p.Runnable())
	assert.True(t, p.IsDue(now), "never ran")

	last := now.Add(-2 * Day)
	p.LastUpdated = &last
	assert.False(t, p.IsDue(now), "exactly at the boundary is still up to date")
	assert.True(t, p.IsDue(now.Add(time.Second)))

	assert.False(t, Policy{Active: false, ScheduleDays: 1}.Runnable())
	assert.False(t, Policy{Active: true, ScheduleDays: 0}.Runnable())
}

func TestRobotPatch_Apply(t *testing.T) {
	r := Robot{Name: "old", Credential: Credential{PlatformType: PlatformCloud}, Policy: Policy{ScheduleDays: 1}}
	name, days, active, pt := "new", 5, true, "server"
	RobotPatch{Name: &name, ScheduleDays: &days, Active: &active, PlatformType: &pt}.Apply(&r)

	assert.Equal(t, "new", r.Name)
	assert.Equal(t, 5, r.Policy.ScheduleDays)
	assert.True(t, r.Policy.Active)
	assert.Equal(t, PlatformServer, r.Credential.PlatformType)
}

func TestRobot_RedactedHidesSecrets(t *testing.T) {
	r := Robot{Credential: Credential{PlatformEmail: "bot@example.com", PlatformAPIKey: "k", CloudSessionToken: "t"}}
	out := r.Redacted()
	assert.Equal(t, "bot@example.com", out.Credential.PlatformEmail)
	assert.NotEqual(t, "k", out.Credential.PlatformAPIKey)
	assert.NotEqual(t, "t", out.Credential.CloudSessionToken)
	assert.Equal(t, "k", r.Credential.PlatformAPIKey, "original untouched")
}

func TestRobot_Validate(t *testing.T) {
	ok := Robot{Name: "acme", Credential: Credential{PlatformType: PlatformCloud}, Policy: Policy{ScheduleDays: 1}}
	require.NoError(t, ok.Validate())

	cases := map[string]func(r *Robot){
		"blank name":        func(r *Robot) { r.Name = "  " },
		"platform":          func(r *Robot) { r.Credential.PlatformType = "ONPREM" },
		"negative schedule": func(r *Robot) { r.Policy.ScheduleDays = -1 },
		"negative activity": func(r *Robot) { r.Policy.LastActiveDays = -3 },
	}
	for name, mutate := range cases {
		r := ok
		mutate(&r)
		assert.ErrorIs(t, r.Validate(), ErrValidation, name)
	}
}
