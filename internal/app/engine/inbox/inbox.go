// Package inbox owns all writes to a user's notification list.
//
// The list is a single field on the user document, so every mutation is a
// whole-list read-modify-write under the version guard. Appends notify
// the delivery adapter after the write commits; delivery is best-effort
// and never affects the append's outcome.
package inbox

import (
	"context"
	"errors"

	"github.com/jmestre/hearth/internal/app/engine/delivery"
	"github.com/jmestre/hearth/internal/app/store/guard"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Inbox struct {
	users    *userstore.Store
	delivery *delivery.Adapter // nil disables push
	log      *zap.Logger
}

func New(users *userstore.Store, del *delivery.Adapter, logger *zap.Logger) *Inbox {
	return &Inbox{users: users, delivery: del, log: logger}
}

// Append adds n to the user's inbox and hands it to the delivery adapter.
func (i *Inbox) Append(ctx context.Context, userID primitive.ObjectID, n models.Notification) error {
	_, err := i.append(ctx, userID, n, false)
	return err
}

// AppendUnique adds n unless a notification with the same dedup signature
// (type + correlation fields) already exists. Returns true when appended.
// This is the guard that keeps recurring notifications, like event
// reminders, at one per recipient.
func (i *Inbox) AppendUnique(ctx context.Context, userID primitive.ObjectID, n models.Notification) (bool, error) {
	return i.append(ctx, userID, n, true)
}

func (i *Inbox) append(ctx context.Context, userID primitive.ObjectID, n models.Notification, unique bool) (bool, error) {
	var appended bool
	var recipient models.User

	err := guard.Retry(ctx, "users", func(ctx context.Context) error {
		u, err := i.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if unique {
			for _, existing := range u.Notifications {
				if existing.SameSignature(n) {
					appended = false
					return nil
				}
			}
		}

		list := make([]models.Notification, 0, len(u.Notifications)+1)
		list = append(list, u.Notifications...)
		list = append(list, n)

		if err := i.users.UpdateFields(ctx, u.ID, u.Version, bson.M{"notifications": list}); err != nil {
			return err
		}
		appended = true
		recipient = *u
		return nil
	})
	if err != nil {
		return false, err
	}

	if appended {
		i.delivery.Notify(recipient, n)
	}
	return appended, nil
}

// RemoveWhere deletes every notification matching pred and returns how
// many were removed. Removing zero is not an error; callers use this to
// retract join_request notifications that may or may not have landed.
func (i *Inbox) RemoveWhere(ctx context.Context, userID primitive.ObjectID, pred func(models.Notification) bool) (int, error) {
	removed := 0
	err := guard.Retry(ctx, "users", func(ctx context.Context) error {
		u, err := i.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		kept := make([]models.Notification, 0, len(u.Notifications))
		removed = 0
		for _, n := range u.Notifications {
			if pred(n) {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		if removed == 0 {
			return nil
		}
		return i.users.UpdateFields(ctx, u.ID, u.Version, bson.M{"notifications": kept})
	})
	return removed, err
}

// MarkRead flags one notification read. ErrNotificationNotFound when the
// id is not in the inbox.
func (i *Inbox) MarkRead(ctx context.Context, userID primitive.ObjectID, notifID string) error {
	return guard.Retry(ctx, "users", func(ctx context.Context) error {
		u, err := i.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		found := false
		list := make([]models.Notification, len(u.Notifications))
		for idx, n := range u.Notifications {
			if n.ID == notifID {
				n.Read = true
				found = true
			}
			list[idx] = n
		}
		if !found {
			return ErrNotificationNotFound
		}
		return i.users.UpdateFields(ctx, u.ID, u.Version, bson.M{"notifications": list})
	})
}

// MarkAllRead flags every unread notification read; returns the count.
func (i *Inbox) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int, error) {
	marked := 0
	err := guard.Retry(ctx, "users", func(ctx context.Context) error {
		u, err := i.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		marked = 0
		list := make([]models.Notification, len(u.Notifications))
		for idx, n := range u.Notifications {
			if !n.Read {
				n.Read = true
				marked++
			}
			list[idx] = n
		}
		if marked == 0 {
			return nil
		}
		return i.users.UpdateFields(ctx, u.ID, u.Version, bson.M{"notifications": list})
	})
	return marked, err
}

// Remove deletes one notification by id.
func (i *Inbox) Remove(ctx context.Context, userID primitive.ObjectID, notifID string) error {
	removed, err := i.RemoveWhere(ctx, userID, func(n models.Notification) bool {
		return n.ID == notifID
	})
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
