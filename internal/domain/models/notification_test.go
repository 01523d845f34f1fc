package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSameSignature(t *testing.T) {
	group := primitive.NewObjectID()
	otherGroup := primitive.NewObjectID()
	user := primitive.NewObjectID()

	base := Notification{Type: NotifEventReminder, EventID: "ev-1", GroupID: &group}

	cases := []struct {
		name  string
		other Notification
		want  bool
	}{
		{"identical signature", Notification{Type: NotifEventReminder, EventID: "ev-1", GroupID: &group}, true},
		{"different message still matches", Notification{Type: NotifEventReminder, EventID: "ev-1", GroupID: &group, Message: "other text"}, true},
		{"different type", Notification{Type: NotifNewEvent, EventID: "ev-1", GroupID: &group}, false},
		{"different event", Notification{Type: NotifEventReminder, EventID: "ev-2", GroupID: &group}, false},
		{"different group", Notification{Type: NotifEventReminder, EventID: "ev-1", GroupID: &otherGroup}, false},
		{"missing group", Notification{Type: NotifEventReminder, EventID: "ev-1"}, false},
		{"extra user correlation", Notification{Type: NotifEventReminder, EventID: "ev-1", GroupID: &group, UserID: &user}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.SameSignature(tc.other); got != tc.want {
				t.Errorf("SameSignature: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSameSignature_UserCorrelation(t *testing.T) {
	group := primitive.NewObjectID()
	requester := primitive.NewObjectID()

	a := Notification{Type: NotifJoinRequest, GroupID: &group, UserID: &requester}
	b := Notification{Type: NotifJoinRequest, GroupID: &group, UserID: &requester}
	if !a.SameSignature(b) {
		t.Error("expected join_request notifications for the same requester to match")
	}

	other := primitive.NewObjectID()
	c := Notification{Type: NotifJoinRequest, GroupID: &group, UserID: &other}
	if a.SameSignature(c) {
		t.Error("expected different requesters not to match")
	}
}
