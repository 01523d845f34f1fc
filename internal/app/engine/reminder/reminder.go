// Package reminder implements the daily event-reminder sweep.
//
// The sweep is stateless and safe to run any number of times per day:
// it visits every group's events, finds those starting on the current
// calendar day in the group's time zone, and appends at most one
// event_reminder per (attendee, event) through the inbox's dedup guard.
// The clock is injected so the date logic is testable without the wall
// clock.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/app/system/metrics"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.uber.org/zap"
)

type Sweeper struct {
	users  *userstore.Store
	groups *groupstore.Store
	inbox  *inbox.Inbox
	now    func() time.Time
	// defaultZone applies to groups without their own time zone.
	defaultZone *time.Location
	log         *zap.Logger
}

func New(users *userstore.Store, groups *groupstore.Store, ib *inbox.Inbox, now func() time.Time, defaultZone *time.Location, logger *zap.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	return &Sweeper{users: users, groups: groups, inbox: ib, now: now, defaultZone: defaultZone, log: logger}
}

// Run performs one sweep over all groups. Errors on individual
// recipients are collected and joined; the sweep always visits
// everything it can.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()
	var errs []error

	err := s.groups.ForEach(ctx, func(g models.Group) error {
		zone := s.zoneFor(g)
		for _, ev := range g.Events {
			if !StartsOn(ev.StartsAt, now, zone) {
				continue
			}
			if len(ev.Attendees) == 0 {
				continue
			}
			if err := s.remindAttendees(ctx, g, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Sweeper) remindAttendees(ctx context.Context, g models.Group, ev models.Event) error {
	attendees, err := s.users.GetByIDs(ctx, ev.Attendees)
	if err != nil {
		return fmt.Errorf("fetch attendees for event %s: %w", ev.ID, err)
	}

	var errs []error
	for _, attendee := range attendees {
		appended, err := s.inbox.AppendUnique(ctx, attendee.ID, models.Notification{
			ID:        uuid.NewString(),
			Type:      models.NotifEventReminder,
			Message:   fmt.Sprintf("Reminder: %s is today.", ev.Title),
			EventID:   ev.ID,
			GroupID:   &g.ID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.log.Error("reminder append failed",
				zap.String("event", ev.ID),
				zap.String("attendee", attendee.ID.Hex()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if appended {
			metrics.RemindersAppended.Inc()
		} else {
			metrics.RemindersSkipped.Inc()
		}
	}
	return errors.Join(errs...)
}

func (s *Sweeper) zoneFor(g models.Group) *time.Location {
	if g.TimeZone == "" {
		return s.defaultZone
	}
	loc, err := time.LoadLocation(g.TimeZone)
	if err != nil {
		s.log.Warn("bad group time zone, using default",
			zap.String("group", g.ID.Hex()),
			zap.String("zone", g.TimeZone))
		return s.defaultZone
	}
	return loc
}

// StartsOn reports whether start falls on the same calendar day as now
// in the given zone. Date-only: time of day is ignored.
func StartsOn(start, now time.Time, zone *time.Location) bool {
	sy, sm, sd := start.In(zone).Date()
	ny, nm, nd := now.In(zone).Date()
	return sy == ny && sm == nm && sd == nd
}
