// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a neighborhood community. The roster (Users) is the group-side
// half of the membership relation; every entry must have a matching
// User.GroupID pointing back here.
//
// Requests, events, news, and reports are embedded lists. There is no
// independent storage for embedded items: mutating one item means reading
// the group, changing the list in memory, and writing the whole list back
// under the version guard.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID   primitive.ObjectID `bson:"creator_id" json:"creator_id"`

	// JoinCodeHash is the bcrypt hash of the group's join code. Joining by
	// code compares against it; the plaintext code is never stored.
	JoinCodeHash string `bson:"join_code_hash" json:"-"`

	// TimeZone is the IANA zone used for date-only comparisons such as
	// "does this event start today". Falls back to the service default
	// when empty.
	TimeZone string `bson:"time_zone,omitempty" json:"time_zone,omitempty"`

	Users    []primitive.ObjectID `bson:"users" json:"users"`
	Requests []JoinRequest        `bson:"requests" json:"requests"`
	Events   []Event              `bson:"events" json:"events"`
	News     []NewsStory          `bson:"news" json:"news"`
	Reports  []IncidentReport     `bson:"reports" json:"reports"`

	Version int64 `bson:"version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID is on the roster.
func (g *Group) HasMember(userID primitive.ObjectID) bool {
	for _, id := range g.Users {
		if id == userID {
			return true
		}
	}
	return false
}

// PendingRequestFor returns the pending request for userID, if any.
func (g *Group) PendingRequestFor(userID primitive.ObjectID) (JoinRequest, bool) {
	for _, r := range g.Requests {
		if r.UserID == userID && r.Status == RequestPending {
			return r, true
		}
	}
	return JoinRequest{}, false
}

// EventByID returns the embedded event with the given id, if present.
func (g *Group) EventByID(eventID string) (Event, bool) {
	for _, e := range g.Events {
		if e.ID == eventID {
			return e, true
		}
	}
	return Event{}, false
}
