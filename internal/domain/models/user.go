// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a resident profile. A user belongs to at most one group at a
// time; GroupID is the user-side half of the membership relation and must
// stay in lockstep with the roster on the Group document.
//
// The notifications list is append-only from the engine's side. Users may
// mark entries read or delete them through the inbox feature.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"` // admin | member

	GroupID          *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	RequestedGroupID *primitive.ObjectID `bson:"requested_group_id,omitempty" json:"requested_group_id,omitempty"`
	IsGroupCreator   bool                `bson:"is_group_creator" json:"is_group_creator"`

	Notifications  []Notification `bson:"notifications" json:"notifications"`
	AttendedEvents []string       `bson:"attended_events" json:"attended_events"`

	// Per-category opt-outs. Incident reports have no opt-out; every
	// member other than the author is always notified.
	NotifyEvents bool `bson:"notify_events" json:"notify_events"`
	NotifyNews   bool `bson:"notify_news" json:"notify_news"`
	NotifyChecks bool `bson:"notify_checks" json:"notify_checks"`

	// PushToken is the opaque out-of-band delivery token. Empty means the
	// user has no push destination and delivery is skipped.
	PushToken string `bson:"push_token,omitempty" json:"-"`

	// Version guards whole-document and list-field writes. Guarded updates
	// match on it and increment it; a miss means a concurrent writer won.
	Version int64 `bson:"version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasAttended reports whether the user is marked as attending the event.
func (u *User) HasAttended(eventID string) bool {
	for _, id := range u.AttendedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}
