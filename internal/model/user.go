package model

import "time"

// InvitationStatus is present on users that joined through an invite.
type InvitationStatus struct {
	InvitedAt *time.Time `json:"invitedAt,omitempty" bson:"invitedAt,omitempty"`
	Status    string     `json:"status,omitempty" bson:"status,omitempty"`
}

// DirectoryUser is one account as reported by the organization directory.
type DirectoryUser struct {
	ID               string            `json:"id" bson:"id"`
	DisplayName      string            `json:"displayName" bson:"displayName"`
	Email            string            `json:"email" bson:"email"`
	Nickname         string            `json:"nickname,omitempty" bson:"nickname,omitempty"`
	Title            string            `json:"title,omitempty" bson:"title,omitempty"`
	Active           bool              `json:"active" bson:"active"`
	ActiveStatus     string            `json:"activeStatus,omitempty" bson:"activeStatus,omitempty"`
	System           bool              `json:"system,omitempty" bson:"system,omitempty"`
	OrgAdmin         bool              `json:"orgAdmin,omitempty" bson:"orgAdmin,omitempty"`
	SiteAdmin        bool              `json:"siteAdmin,omitempty" bson:"siteAdmin,omitempty"`
	Created          time.Time         `json:"created" bson:"created"`
	Presence         *time.Time        `json:"presence,omitempty" bson:"presence,omitempty"`
	InvitationStatus *InvitationStatus `json:"invitationStatus,omitempty" bson:"invitationStatus,omitempty"`
}

// EffectiveLastActive is the best available "last seen" time: the presence
// timestamp, else the invitation time, else the creation time.
func (u DirectoryUser) EffectiveLastActive() time.Time {
	if u.Presence != nil {
		return *u.Presence
	}
	if u.InvitationStatus != nil && u.InvitationStatus.InvitedAt != nil {
		return *u.InvitationStatus.InvitedAt
	}
	return u.Created
}

// Subject captures the identity fields of a user at detection time.
func (u DirectoryUser) Subject() PurgeSubject {
	return PurgeSubject{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		LastActive:  u.EffectiveLastActive(),
	}
}
