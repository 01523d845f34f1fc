// internal/domain/models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Join request states. Pending is the only non-terminal state. Resolved
// requests are removed from the group's list rather than kept as history,
// so accepted/declined only ever appear transiently.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// JoinRequest is a user's request to join a group, embedded in the group's
// requests list. At most one pending request may exist per (user, group).
type JoinRequest struct {
	ID          string             `bson:"id" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status      string             `bson:"status" json:"status"`
	RequestedAt time.Time          `bson:"requested_at" json:"requested_at"`
}
