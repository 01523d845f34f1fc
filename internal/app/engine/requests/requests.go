// Package requests governs a user's request to join a group, from
// creation through acceptance, decline, or cancellation.
//
// Accept and decline are multi-record flows run as ordered idempotent
// steps. Cancellation is the one genuinely atomic operation: it removes
// the request, clears the requester's mirror pointer, and retracts the
// join_request notifications from every admin inbox inside a single
// transaction (falling back to the ordered path on servers without
// transaction support).
package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	"github.com/jmestre/hearth/internal/app/engine/steps"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	"github.com/jmestre/hearth/internal/app/store/guard"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/app/system/txn"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrDuplicateRequest = errors.New("a pending join request already exists for this user and group")
	ErrAlreadyMember    = errors.New("user already belongs to a group")
	ErrNoPendingRequest = errors.New("no pending join request for this user and group")
)

type Service struct {
	users  *userstore.Store
	groups *groupstore.Store
	inbox  *inbox.Inbox
	client *mongo.Client // nil forces the non-transactional cancel path
	log    *zap.Logger
}

func New(users *userstore.Store, groups *groupstore.Store, ib *inbox.Inbox, client *mongo.Client, logger *zap.Logger) *Service {
	return &Service{users: users, groups: groups, inbox: ib, client: client, log: logger}
}

// Create opens a pending request for user -> group. Validation failures
// (duplicate pending request, requester already in a group) surface
// before any write. On success the group holds the request, the
// requester's mirror pointer is set, and each group admin receives a
// join_request notification; failures past the first write come back as
// a *steps.PartialFailure alongside the created request.
func (s *Service) Create(ctx context.Context, groupID, userID primitive.ObjectID) (models.JoinRequest, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.JoinRequest{}, err
	}
	if u.GroupID != nil {
		return models.JoinRequest{}, ErrAlreadyMember
	}

	req := models.JoinRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      models.RequestPending,
		RequestedAt: time.Now().UTC(),
	}

	var group models.Group
	err = guard.Retry(ctx, "groups", func(ctx context.Context) error {
		g, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if _, exists := g.PendingRequestFor(userID); exists {
			return ErrDuplicateRequest
		}
		if g.HasMember(userID) {
			return ErrAlreadyMember
		}

		requests := append(append([]models.JoinRequest{}, g.Requests...), req)
		if err := s.groups.UpdateFields(ctx, g.ID, g.Version, bson.M{"requests": requests}); err != nil {
			return err
		}
		group = *g
		return nil
	})
	if err != nil {
		return models.JoinRequest{}, err
	}

	followup := []steps.Step{
		{
			Name: "set requester mirror pointer",
			Applied: func(ctx context.Context) (bool, error) {
				cur, err := s.users.GetByID(ctx, userID)
				if err != nil {
					return false, err
				}
				return cur.RequestedGroupID != nil && *cur.RequestedGroupID == groupID, nil
			},
			Run: func(ctx context.Context) error {
				return s.setRequestedGroup(ctx, userID, &groupID)
			},
		},
		{
			Name: "notify group admins",
			Run: func(ctx context.Context) error {
				return s.notifyAdmins(ctx, group, *u)
			},
		},
	}
	return req, steps.Run(ctx, s.log, "join_request_create", followup)
}

// Accept resolves a pending request into membership. Ordered steps:
// resolve the group document (request removed, requester on the roster),
// point the requester at the group, retract the join_request
// notification from every admin inbox, and notify the requester. Step
// failures are collected into a *steps.PartialFailure; re-running Accept
// applies only whatever is still missing.
func (s *Service) Accept(ctx context.Context, groupID, userID, adminID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if _, ok := g.PendingRequestFor(userID); !ok {
		// A retried accept lands here once the group write committed;
		// treat membership as the marker and keep repairing the rest.
		if !g.HasMember(userID) {
			return ErrNoPendingRequest
		}
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	ss := []steps.Step{
		{
			Name: "resolve request on group",
			Applied: func(ctx context.Context) (bool, error) {
				cur, err := s.groups.GetByID(ctx, groupID)
				if err != nil {
					return false, err
				}
				_, pending := cur.PendingRequestFor(userID)
				return !pending && cur.HasMember(userID), nil
			},
			Run: func(ctx context.Context) error {
				return guard.Retry(ctx, "groups", func(ctx context.Context) error {
					cur, err := s.groups.GetByID(ctx, groupID)
					if err != nil {
						return err
					}
					requests := withoutRequestFor(cur.Requests, userID)
					roster := cur.Users
					if !cur.HasMember(userID) {
						roster = append(append([]primitive.ObjectID{}, cur.Users...), userID)
					}
					return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{
						"requests": requests,
						"users":    roster,
					})
				})
			},
		},
		{
			Name: "set member pointer",
			Applied: func(ctx context.Context) (bool, error) {
				cur, err := s.users.GetByID(ctx, userID)
				if err != nil {
					return false, err
				}
				return cur.GroupID != nil && *cur.GroupID == groupID, nil
			},
			Run: func(ctx context.Context) error {
				return guard.Retry(ctx, "users", func(ctx context.Context) error {
					cur, err := s.users.GetByID(ctx, userID)
					if err != nil {
						return err
					}
					return s.users.UpdateFields(ctx, cur.ID, cur.Version, bson.M{
						"group_id":           groupID,
						"requested_group_id": nil,
					})
				})
			},
		},
		{
			Name: "retract join_request notifications from admins",
			Run: func(ctx context.Context) error {
				return s.retractFromAdmins(ctx, groupID, userID)
			},
		},
		{
			Name: "notify requester of acceptance",
			Run: func(ctx context.Context) error {
				_, err := s.inbox.AppendUnique(ctx, userID, models.Notification{
					ID:        uuid.NewString(),
					Type:      models.NotifAcceptedRequest,
					Message:   fmt.Sprintf("Your request to join %s was accepted.", g.Name),
					GroupID:   &groupID,
					UserID:    &userID,
					CreatedAt: time.Now().UTC(),
				})
				return err
			},
		},
	}
	return steps.Run(ctx, s.log, "join_request_accept", ss)
}

// Decline resolves a pending request without touching membership: the
// request leaves the group, the requester's mirror pointer clears, the
// join_request notification is retracted from every admin inbox, and the
// requester is told. Like Accept, a decline whose group write already
// committed can be re-run; the remaining steps detect applied work and
// finish the rest.
func (s *Service) Decline(ctx context.Context, groupID, userID, adminID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := g.PendingRequestFor(userID); !ok {
		// A retried decline lands here once the group write committed;
		// the dangling mirror pointer is the marker that follow-ups
		// remain, so keep repairing the rest.
		if u.RequestedGroupID == nil || *u.RequestedGroupID != groupID {
			return ErrNoPendingRequest
		}
	}

	ss := []steps.Step{
		{
			Name: "remove request from group",
			Applied: func(ctx context.Context) (bool, error) {
				cur, err := s.groups.GetByID(ctx, groupID)
				if err != nil {
					return false, err
				}
				_, pending := cur.PendingRequestFor(userID)
				return !pending, nil
			},
			Run: func(ctx context.Context) error {
				return s.removeRequest(ctx, groupID, userID)
			},
		},
		{
			Name: "clear requester mirror pointer",
			Applied: func(ctx context.Context) (bool, error) {
				cur, err := s.users.GetByID(ctx, userID)
				if err != nil {
					return false, err
				}
				return cur.RequestedGroupID == nil || *cur.RequestedGroupID != groupID, nil
			},
			Run: func(ctx context.Context) error {
				return s.setRequestedGroup(ctx, userID, nil)
			},
		},
		{
			Name: "retract join_request notifications from admins",
			Run: func(ctx context.Context) error {
				return s.retractFromAdmins(ctx, groupID, userID)
			},
		},
		{
			Name: "notify requester of decline",
			Run: func(ctx context.Context) error {
				_, err := s.inbox.AppendUnique(ctx, userID, models.Notification{
					ID:        uuid.NewString(),
					Type:      models.NotifDeclinedRequest,
					Message:   fmt.Sprintf("Your request to join %s was declined.", g.Name),
					GroupID:   &groupID,
					UserID:    &userID,
					CreatedAt: time.Now().UTC(),
				})
				return err
			},
		},
	}
	return steps.Run(ctx, s.log, "join_request_decline", ss)
}

// Cancel withdraws the requester's own pending request: the request
// leaves the group, the mirror pointer clears, and every admin's
// join_request notification for this (user, group) is retracted. The
// three writes run in one transaction; on servers without transaction
// support it falls back to the same writes as ordered steps.
func (s *Service) Cancel(ctx context.Context, groupID, userID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if _, ok := g.PendingRequestFor(userID); !ok {
		return ErrNoPendingRequest
	}

	if s.client != nil {
		err = txn.WithTransaction(ctx, s.client, func(sc mongo.SessionContext) error {
			return s.cancelWrites(sc, groupID, userID)
		})
		if err == nil {
			return nil
		}
		if !txn.IsNotSupported(err) {
			return err
		}
		s.log.Warn("transactions unavailable, cancelling join request non-atomically",
			zap.String("group", groupID.Hex()),
			zap.String("user", userID.Hex()))
	}

	ss := []steps.Step{
		{
			Name: "remove request from group",
			Run: func(ctx context.Context) error {
				return s.removeRequest(ctx, groupID, userID)
			},
		},
		{
			Name: "clear requester mirror pointer",
			Run: func(ctx context.Context) error {
				return s.setRequestedGroup(ctx, userID, nil)
			},
		},
		{
			Name: "retract join_request notifications from admins",
			Run: func(ctx context.Context) error {
				return s.retractFromAdmins(ctx, groupID, userID)
			},
		},
	}
	return steps.Run(ctx, s.log, "join_request_cancel", ss)
}

// cancelWrites performs the cancellation's writes using the supplied
// context, which inside Cancel is a session context bound to an open
// transaction.
func (s *Service) cancelWrites(ctx context.Context, groupID, userID primitive.ObjectID) error {
	if err := s.removeRequest(ctx, groupID, userID); err != nil {
		return err
	}
	if err := s.setRequestedGroup(ctx, userID, nil); err != nil {
		return err
	}
	return s.retractFromAdmins(ctx, groupID, userID)
}

func (s *Service) removeRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	return guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		requests := withoutRequestFor(cur.Requests, userID)
		if len(requests) == len(cur.Requests) {
			return nil
		}
		return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"requests": requests})
	})
}

func (s *Service) setRequestedGroup(ctx context.Context, userID primitive.ObjectID, groupID *primitive.ObjectID) error {
	return guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		var value interface{}
		if groupID != nil {
			value = *groupID
		}
		return s.users.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"requested_group_id": value})
	})
}

func (s *Service) retractFromAdmins(ctx context.Context, groupID, userID primitive.ObjectID) error {
	admins, err := s.users.ListAdminsByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if _, err := s.inbox.RemoveWhere(ctx, admin.ID, joinRequestFor(userID, groupID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyAdmins(ctx context.Context, g models.Group, requester models.User) error {
	admins, err := s.users.ListAdminsByGroup(ctx, g.ID)
	if err != nil {
		return err
	}

	var failed error
	for _, admin := range admins {
		_, err := s.inbox.AppendUnique(ctx, admin.ID, models.Notification{
			ID:        uuid.NewString(),
			Type:      models.NotifJoinRequest,
			Message:   fmt.Sprintf("%s asked to join %s.", requester.FullName, g.Name),
			GroupID:   &g.ID,
			UserID:    &requester.ID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.log.Error("join_request notification failed",
				zap.String("admin", admin.ID.Hex()), zap.Error(err))
			failed = err
		}
	}
	return failed
}

// joinRequestFor matches join_request notifications correlated with
// (requester, group).
func joinRequestFor(userID, groupID primitive.ObjectID) func(models.Notification) bool {
	return func(n models.Notification) bool {
		return n.Type == models.NotifJoinRequest &&
			n.UserID != nil && *n.UserID == userID &&
			n.GroupID != nil && *n.GroupID == groupID
	}
}

func withoutRequestFor(requests []models.JoinRequest, userID primitive.ObjectID) []models.JoinRequest {
	kept := make([]models.JoinRequest, 0, len(requests))
	for _, r := range requests {
		if r.UserID == userID && r.Status == models.RequestPending {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
