// Package membership performs the coupled writes that keep the group
// roster and the per-user membership pointer in lockstep.
//
// Every membership-creating path applies the same canonical join: the
// roster entry is written first, the user's pointer second. Every
// membership-removing path clears the pointer first, then the roster.
// With that ordering any partial failure leaves a roster entry without a
// matching pointer, which Reconcile treats as removable. The consistency
// sweep can therefore finish an interrupted leave and undo an interrupted
// join without guessing.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmestre/hearth/internal/app/engine/steps"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	"github.com/jmestre/hearth/internal/app/store/guard"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/app/system/metrics"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyMember     = errors.New("user already belongs to a group")
	ErrNotMember         = errors.New("user does not belong to this group")
	ErrWrongJoinCode     = errors.New("join code does not match")
	ErrSoleCreator       = errors.New("removing the group creator requires a resolution: delete_group or transfer:<user id>")
	ErrInvalidResolution = errors.New("invalid resolution: want delete_group or transfer:<user id>")
)

// Resolution values for removing the sole member-creator.
const (
	ResolutionDeleteGroup    = "delete_group"
	resolutionTransferPrefix = "transfer:"
)

type Service struct {
	users  *userstore.Store
	groups *groupstore.Store
	log    *zap.Logger
}

func New(users *userstore.Store, groups *groupstore.Store, logger *zap.Logger) *Service {
	return &Service{users: users, groups: groups, log: logger}
}

// CreateGroup creates a group with the creator as its sole member and
// admin. The join code is stored only as a bcrypt hash.
func (s *Service) CreateGroup(ctx context.Context, creatorID primitive.ObjectID, name, description, timeZone, joinCode string) (models.Group, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return models.Group{}, err
	}
	if creator.GroupID != nil {
		return models.Group{}, ErrAlreadyMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(joinCode), bcrypt.DefaultCost)
	if err != nil {
		return models.Group{}, err
	}

	g, err := s.groups.Create(ctx, models.Group{
		Name:         name,
		Description:  description,
		CreatorID:    creatorID,
		JoinCodeHash: string(hash),
		TimeZone:     timeZone,
		Users:        []primitive.ObjectID{creatorID},
	})
	if err != nil {
		return models.Group{}, err
	}

	err = guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := s.users.GetByID(ctx, creatorID)
		if err != nil {
			return err
		}
		return s.users.UpdateFields(ctx, cur.ID, cur.Version, bson.M{
			"group_id":         g.ID,
			"is_group_creator": true,
			"role":             models.RoleAdmin,
		})
	})
	if err != nil {
		// Roster committed but the pointer write failed; Reconcile will
		// remove the orphaned roster entry.
		return g, &steps.PartialFailure{Op: "group_create", Failed: []steps.StepError{
			{Step: "set creator pointer", Err: err},
		}}
	}
	return g, nil
}

// JoinByCode adds the user to the group after verifying the join code.
func (s *Service) JoinByCode(ctx context.Context, userID, groupID primitive.ObjectID, code string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.GroupID != nil {
		return ErrAlreadyMember
	}
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(g.JoinCodeHash), []byte(code)) != nil {
		return ErrWrongJoinCode
	}

	ss := []steps.Step{
		{
			Name: "add to roster",
			Run: func(ctx context.Context) error {
				return s.addToRoster(ctx, groupID, userID)
			},
		},
		{
			Name: "set member pointer",
			Run: func(ctx context.Context) error {
				return s.setPointer(ctx, userID, &groupID, bson.M{"requested_group_id": nil})
			},
		},
	}
	return steps.Run(ctx, s.log, "join_by_code", ss)
}

// Leave removes the user from their current group. The group creator
// cannot leave directly; ownership must be transferred or the group
// deleted first. Pointer first, roster second: a failure between the
// two leaves a roster entry that the consistency sweep removes.
func (s *Service) Leave(ctx context.Context, userID primitive.ObjectID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.GroupID == nil {
		return ErrNotMember
	}
	if u.IsGroupCreator {
		return ErrSoleCreator
	}
	groupID := *u.GroupID

	ss := []steps.Step{
		{
			Name: "clear member pointer",
			Run: func(ctx context.Context) error {
				return s.setPointer(ctx, userID, nil, bson.M{"is_group_creator": false, "role": models.RoleMember})
			},
		},
		{
			Name: "remove from roster",
			Run: func(ctx context.Context) error {
				return s.removeFromRoster(ctx, groupID, userID)
			},
		},
	}
	return steps.Run(ctx, s.log, "leave_group", ss)
}

// RemoveMember removes targetID from the group on an admin's behalf.
// Removing the sole remaining member-creator requires an explicit
// resolution: delete_group, or transfer:<user id> followed by removal.
func (s *Service) RemoveMember(ctx context.Context, adminID, groupID, targetID primitive.ObjectID, resolution string) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.HasMember(targetID) {
		return ErrNotMember
	}

	if targetID == g.CreatorID {
		switch {
		case resolution == ResolutionDeleteGroup:
			return s.DeleteGroup(ctx, groupID)
		case strings.HasPrefix(resolution, resolutionTransferPrefix):
			newOwner, err := primitive.ObjectIDFromHex(strings.TrimPrefix(resolution, resolutionTransferPrefix))
			if err != nil {
				return ErrInvalidResolution
			}
			if err := s.TransferOwnership(ctx, groupID, newOwner); err != nil {
				return err
			}
		case resolution == "":
			return ErrSoleCreator
		default:
			return ErrInvalidResolution
		}
	}

	s.log.Info("removing member",
		zap.String("group", groupID.Hex()),
		zap.String("target", targetID.Hex()),
		zap.String("admin", adminID.Hex()))

	ss := []steps.Step{
		{
			Name: "clear member pointer",
			Run: func(ctx context.Context) error {
				return s.setPointer(ctx, targetID, nil, bson.M{"is_group_creator": false, "role": models.RoleMember})
			},
		},
		{
			Name: "remove from roster",
			Run: func(ctx context.Context) error {
				return s.removeFromRoster(ctx, groupID, targetID)
			},
		},
	}
	return steps.Run(ctx, s.log, "remove_member", ss)
}

// TransferOwnership makes newOwner the group's creator/admin. The new
// owner must already be on the roster.
func (s *Service) TransferOwnership(ctx context.Context, groupID, newOwnerID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.HasMember(newOwnerID) {
		return ErrNotMember
	}
	oldOwner := g.CreatorID

	ss := []steps.Step{
		{
			Name: "set group creator",
			Run: func(ctx context.Context) error {
				return guard.Retry(ctx, "groups", func(ctx context.Context) error {
					cur, err := s.groups.GetByID(ctx, groupID)
					if err != nil {
						return err
					}
					return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"creator_id": newOwnerID})
				})
			},
		},
		{
			Name: "promote new owner",
			Run: func(ctx context.Context) error {
				return s.updateUserFields(ctx, newOwnerID, bson.M{"is_group_creator": true, "role": models.RoleAdmin})
			},
		},
		{
			Name: "demote previous owner",
			Run: func(ctx context.Context) error {
				return s.updateUserFields(ctx, oldOwner, bson.M{"is_group_creator": false})
			},
		},
	}
	return steps.Run(ctx, s.log, "transfer_ownership", ss)
}

// DeleteGroup disassociates every member before deleting the group
// record, so no pointer is ever left dangling at a missing group.
func (s *Service) DeleteGroup(ctx context.Context, groupID primitive.ObjectID) error {
	members, err := s.users.ListByGroup(ctx, groupID)
	if err != nil {
		return err
	}

	ss := make([]steps.Step, 0, len(members)+1)
	for _, m := range members {
		memberID := m.ID
		ss = append(ss, steps.Step{
			Name: "disassociate member " + memberID.Hex(),
			Run: func(ctx context.Context) error {
				return s.setPointer(ctx, memberID, nil, bson.M{"is_group_creator": false, "role": models.RoleMember})
			},
		})
	}
	ss = append(ss, steps.Step{
		Name: "delete group record",
		Run: func(ctx context.Context) error {
			_, err := s.groups.Delete(ctx, groupID)
			return err
		},
	})
	return steps.Run(ctx, s.log, "delete_group", ss)
}

// DeleteOwnerAccount deletes a user who owns a group. The group must be
// resolved first: delete_group cascades the deletion, transfer:<user id>
// reassigns ownership. Only after the group is settled is the user
// record deleted.
func (s *Service) DeleteOwnerAccount(ctx context.Context, userID primitive.ObjectID, resolution string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if u.GroupID != nil && u.IsGroupCreator {
		groupID := *u.GroupID
		switch {
		case resolution == ResolutionDeleteGroup:
			if err := s.DeleteGroup(ctx, groupID); err != nil {
				return err
			}
		case strings.HasPrefix(resolution, resolutionTransferPrefix):
			newOwner, err := primitive.ObjectIDFromHex(strings.TrimPrefix(resolution, resolutionTransferPrefix))
			if err != nil {
				return ErrInvalidResolution
			}
			if err := s.TransferOwnership(ctx, groupID, newOwner); err != nil {
				return err
			}
			if err := s.Leave(ctx, userID); err != nil {
				return err
			}
		default:
			return ErrSoleCreator
		}
	} else if u.GroupID != nil {
		if err := s.Leave(ctx, userID); err != nil {
			return err
		}
	}

	return s.users.Delete(ctx, userID)
}

// RepairReport summarizes one consistency sweep.
type RepairReport struct {
	RosterEntriesRemoved int
	RosterEntriesAdded   int
	PointersCleared      int
}

// Reconcile is the periodic consistency sweep over the membership
// relation. The pointer is authoritative: a pointer at an existing group
// is completed onto the roster, a pointer at a missing group is cleared,
// and a roster entry whose user points elsewhere (or nowhere) is removed.
func (s *Service) Reconcile(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	err := s.groups.ForEach(ctx, func(g models.Group) error {
		members, err := s.users.GetByIDs(ctx, g.Users)
		if err != nil {
			return err
		}
		byID := make(map[primitive.ObjectID]models.User, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		kept := make([]primitive.ObjectID, 0, len(g.Users))
		for _, id := range g.Users {
			m, found := byID[id]
			if found && m.GroupID != nil && *m.GroupID == g.ID {
				kept = append(kept, id)
				continue
			}
			report.RosterEntriesRemoved++
			metrics.ReconcileRepairs.Inc()
			s.log.Warn("removing divergent roster entry",
				zap.String("group", g.ID.Hex()),
				zap.String("user", id.Hex()))
		}

		// Pointer holders missing from the roster: finish their join.
		pointerHolders, err := s.users.ListByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		onRoster := make(map[primitive.ObjectID]bool, len(kept))
		for _, id := range kept {
			onRoster[id] = true
		}
		for _, u := range pointerHolders {
			if !onRoster[u.ID] {
				kept = append(kept, u.ID)
				onRoster[u.ID] = true
				report.RosterEntriesAdded++
				metrics.ReconcileRepairs.Inc()
				s.log.Warn("restoring pointer holder to roster",
					zap.String("group", g.ID.Hex()),
					zap.String("user", u.ID.Hex()))
			}
		}

		if sameRoster(kept, g.Users) {
			return nil
		}
		return guard.Retry(ctx, "groups", func(ctx context.Context) error {
			cur, err := s.groups.GetByID(ctx, g.ID)
			if err != nil {
				return err
			}
			return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"users": kept})
		})
	})
	if err != nil {
		return report, err
	}

	// Pointers at groups that no longer exist.
	err = s.clearDanglingPointers(ctx, &report)
	return report, err
}

func (s *Service) clearDanglingPointers(ctx context.Context, report *RepairReport) error {
	// Walking groups already validated pointer holders of live groups;
	// what remains is users whose group vanished entirely.
	seen := make(map[primitive.ObjectID]bool)
	if err := s.groups.ForEach(ctx, func(g models.Group) error {
		seen[g.ID] = true
		return nil
	}); err != nil {
		return err
	}

	holders, err := s.users.ListWithPointer(ctx)
	if err != nil {
		return err
	}
	for _, u := range holders {
		if u.GroupID == nil || seen[*u.GroupID] {
			continue
		}
		report.PointersCleared++
		metrics.ReconcileRepairs.Inc()
		s.log.Warn("clearing pointer at missing group",
			zap.String("user", u.ID.Hex()),
			zap.String("group", u.GroupID.Hex()))
		if err := s.setPointer(ctx, u.ID, nil, bson.M{"is_group_creator": false}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) addToRoster(ctx context.Context, groupID, userID primitive.ObjectID) error {
	return guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if cur.HasMember(userID) {
			return nil
		}
		roster := append(append([]primitive.ObjectID{}, cur.Users...), userID)
		return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"users": roster})
	})
}

func (s *Service) removeFromRoster(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if !cur.HasMember(userID) {
			return nil
		}
		roster := make([]primitive.ObjectID, 0, len(cur.Users))
		for _, id := range cur.Users {
			if id != userID {
				roster = append(roster, id)
			}
		}
		return s.groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"users": roster})
	})
	if err == mongo.ErrNoDocuments {
		// Group already gone; nothing left to remove from.
		return nil
	}
	return err
}

func (s *Service) setPointer(ctx context.Context, userID primitive.ObjectID, groupID *primitive.ObjectID, extra bson.M) error {
	fields := bson.M{}
	for k, v := range extra {
		fields[k] = v
	}
	if groupID != nil {
		fields["group_id"] = *groupID
	} else {
		fields["group_id"] = nil
	}
	return s.updateUserFields(ctx, userID, fields)
}

func (s *Service) updateUserFields(ctx context.Context, userID primitive.ObjectID, fields bson.M) error {
	return guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.users.UpdateFields(ctx, cur.ID, cur.Version, fields)
	})
}

func sameRoster(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// VerifyInvariant checks the bidirectional membership invariant for one
// group and returns a description of each divergence. Used by tests and
// by operators debugging a PartialFailure.
func (s *Service) VerifyInvariant(ctx context.Context, groupID primitive.ObjectID) ([]string, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var problems []string
	members, err := s.users.GetByIDs(ctx, g.Users)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	for _, id := range g.Users {
		m, found := byID[id]
		if !found {
			problems = append(problems, fmt.Sprintf("roster user %s does not exist", id.Hex()))
			continue
		}
		if m.GroupID == nil || *m.GroupID != g.ID {
			problems = append(problems, fmt.Sprintf("roster user %s does not point back", id.Hex()))
		}
	}

	holders, err := s.users.ListByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	for _, u := range holders {
		if !g.HasMember(u.ID) {
			problems = append(problems, fmt.Sprintf("pointer holder %s missing from roster", u.ID.Hex()))
		}
	}
	return problems, nil
}
