// internal/domain/models/content.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a scheduled group happening, embedded in the group's events
// list. Attendees is the set of user ids who RSVP'd; the reminder sweep
// fans out to it on the event's start date.
type Event struct {
	ID        string               `bson:"id" json:"id"`
	Title     string               `bson:"title" json:"title"`
	Details   string               `bson:"details,omitempty" json:"details,omitempty"`
	Location  string               `bson:"location,omitempty" json:"location,omitempty"`
	StartsAt  time.Time            `bson:"starts_at" json:"starts_at"`
	AuthorID  primitive.ObjectID   `bson:"author_id" json:"author_id"`
	Attendees []primitive.ObjectID `bson:"attendees" json:"attendees"`
	Views     int64                `bson:"views" json:"views"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
}

// HasAttendee reports whether userID has RSVP'd to the event.
func (e *Event) HasAttendee(userID primitive.ObjectID) bool {
	for _, id := range e.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

// NewsStory is a group news post.
type NewsStory struct {
	ID        string             `bson:"id" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body,omitempty" json:"body,omitempty"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Views     int64              `bson:"views" json:"views"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// IncidentReport is a safety or incident notice. Unlike events and news
// there is no notification opt-out for reports.
type IncidentReport struct {
	ID        string             `bson:"id" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Details   string             `bson:"details,omitempty" json:"details,omitempty"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Views     int64              `bson:"views" json:"views"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
