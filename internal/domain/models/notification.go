// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types. The type plus its correlation fields form the dedup
// signature: for recurring facts (an event reminder for event X) at most
// one notification with that signature may exist per recipient.
const (
	NotifJoinRequest     = "join_request"
	NotifAcceptedRequest = "accepted_request"
	NotifDeclinedRequest = "declined_request"
	NotifNewEvent        = "new_event"
	NotifNewNews         = "new_news"
	NotifNewReport       = "new_report"
	NotifEventReminder   = "event_reminder"
)

// Notification is one typed entry in a user's inbox. The message is
// pre-rendered human text; EventID/GroupID/UserID carry whichever
// correlation the type needs (event notifications set EventID+GroupID,
// join-request notifications set UserID+GroupID).
type Notification struct {
	ID      string `bson:"id" json:"id"`
	Type    string `bson:"type" json:"type"`
	Message string `bson:"message" json:"message"`

	EventID string              `bson:"event_id,omitempty" json:"event_id,omitempty"`
	GroupID *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	UserID  *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`

	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SameSignature reports whether two notifications describe the same
// recurring fact. Used by the reminder sweep and the inbox's dedup guard.
func (n Notification) SameSignature(other Notification) bool {
	if n.Type != other.Type || n.EventID != other.EventID {
		return false
	}
	if !objectIDPtrEq(n.GroupID, other.GroupID) {
		return false
	}
	return objectIDPtrEq(n.UserID, other.UserID)
}

func objectIDPtrEq(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
