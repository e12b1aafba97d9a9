package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/squad-manager/internal/db"
	"github.com/yakoovad/squad-manager/internal/model"
	"github.com/yakoovad/squad-manager/internal/repository"
	"github.com/yakoovad/squad-manager/internal/validation"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

type TeamService struct {
	tx db.Transactor

	users repository.UserRepository
	teams repository.TeamRepository
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx: tx,
	}
}

// UpdateTeamInput is a partial update; nil fields keep their stored values.
type UpdateTeamInput struct {
	Name     *string
	LeaderID *string
}

// CreateTeam creates a team and records the leader's membership in one
// transaction: either both the team row and the leader's squad are written,
// or neither is.
func (t *TeamService) CreateTeam(ctx context.Context, name, leaderID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidTeamName(name) {
		return nil, NewError(ErrorCodeValidation, "team name must be 3-30 characters of letters and spaces")
	}
	if !validation.ValidUUID(leaderID) {
		return nil, NewError(ErrorCodeValidation, "leader id must be a valid UUID")
	}

	team := &model.Team{
		ID:       uuid.NewString(),
		Name:     name,
		LeaderID: leaderID,
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		leader, err := t.users.Get(txCtx, leaderID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "leader not found")
		}
		if err != nil {
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}
		if leader.IsAdmin {
			return NewError(ErrorCodeConflict, "an admin cannot lead a team")
		}

		// Leader conflict is checked before the name conflict. Both are
		// fast-path errors; the unique indexes decide under contention.
		if _, err = t.teams.GetByLeader(txCtx, leaderID); err == nil {
			return NewError(ErrorCodeConflict, "user already leads a team")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		if _, err = t.teams.GetByName(txCtx, name); err == nil {
			return NewError(ErrorCodeConflict, "team name already taken")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		err = t.teams.Create(txCtx, &repository.Team{
			ID:       team.ID,
			Name:     team.Name,
			LeaderID: team.LeaderID,
		})
		if errors.Is(err, repository.ErrAlreadyExists) {
			return NewError(ErrorCodeConflict, "team name or leader already taken")
		}
		if err != nil {
			l.Error("failed to create team", zap.String("team_name", name), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		if err = t.users.SetSquad(txCtx, leaderID, &team.ID); err != nil {
			l.Error("failed to set leader squad", zap.String("team_id", team.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		return nil
	})

	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return nil, serr
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to create team")
	}

	l.Info("team created",
		zap.String("team_id", team.ID),
		zap.String("team_name", team.Name),
		zap.String("leader_id", team.LeaderID))

	return team, nil
}

func (t *TeamService) ListTeams(ctx context.Context) ([]*model.Team, *Error) {
	teams, err := t.teams.List(ctx)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	result := make([]*model.Team, 0, len(teams))
	for _, team := range teams {
		result = append(result, toModelTeam(team))
	}
	return result, nil
}

func (t *TeamService) GetTeam(ctx context.Context, teamID string) (*model.Team, *Error) {
	if !validation.ValidUUID(teamID) {
		return nil, NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}
	return toModelTeam(team), nil
}

// GetTeamMembers returns the reduced profiles of a team's members. The
// caller must be an admin or a member of that same team.
func (t *TeamService) GetTeamMembers(ctx context.Context, teamID, actorID string) ([]*model.UserProfile, *Error) {
	if !validation.ValidUUID(teamID) {
		return nil, NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}

	team, serr := t.requireTeam(ctx, teamID)
	if serr != nil {
		return nil, serr
	}

	actor, serr := t.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}
	if !actor.IsAdmin && (actor.SquadID == nil || *actor.SquadID != team.ID) {
		return nil, NewError(ErrorCodeForbidden, "not allowed to view team members")
	}

	members, err := t.teams.GetMembers(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team members")
	}

	profiles := make([]*model.UserProfile, 0, len(members))
	for _, member := range members {
		profiles = append(profiles, toModelUser(member).Profile())
	}
	return profiles, nil
}

// UpdateTeam renames a team and/or reassigns its leader. Omitted fields are
// left untouched. Admin or the team's current leader only. On reassignment
// the new leader joins the team and the old leader stays on as a member.
func (t *TeamService) UpdateTeam(ctx context.Context, teamID, actorID string, in *UpdateTeamInput) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(teamID) {
		return nil, NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}
	if in.Name != nil && !validation.ValidTeamName(*in.Name) {
		return nil, NewError(ErrorCodeValidation, "team name must be 3-30 characters of letters and spaces")
	}
	if in.LeaderID != nil && !validation.ValidUUID(*in.LeaderID) {
		return nil, NewError(ErrorCodeValidation, "leader id must be a valid UUID")
	}

	var updated *model.Team

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		team, serr := t.requireTeam(txCtx, teamID)
		if serr != nil {
			return serr
		}

		actor, serr := t.actor(txCtx, actorID)
		if serr != nil {
			return serr
		}
		if !actor.IsAdmin && team.LeaderID != actorID {
			return NewError(ErrorCodeForbidden, "not allowed to update this team")
		}

		// An empty patch changes nothing.
		if in.Name == nil && in.LeaderID == nil {
			updated = toModelTeam(team)
			return nil
		}

		if in.Name != nil && *in.Name != team.Name {
			other, err := t.teams.GetByName(txCtx, *in.Name)
			if err == nil && other.ID != teamID {
				return NewError(ErrorCodeConflict, "team name already taken")
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeUnspecified, "failed to update team")
			}
		}

		leaderChanged := in.LeaderID != nil && *in.LeaderID != team.LeaderID
		if leaderChanged {
			leader, err := t.users.Get(txCtx, *in.LeaderID)
			if errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeNotFound, "leader not found")
			}
			if err != nil {
				return NewError(ErrorCodeUnspecified, "failed to update team")
			}
			if leader.IsAdmin {
				return NewError(ErrorCodeConflict, "an admin cannot lead a team")
			}

			other, err := t.teams.GetByLeader(txCtx, *in.LeaderID)
			if err == nil && other.ID != teamID {
				return NewError(ErrorCodeConflict, "user already leads a team")
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeUnspecified, "failed to update team")
			}
		}

		patched, err := t.teams.Patch(txCtx, &repository.TeamPatch{
			ID:       teamID,
			Name:     in.Name,
			LeaderID: in.LeaderID,
		})
		if errors.Is(err, repository.ErrAlreadyExists) {
			return NewError(ErrorCodeConflict, "team name or leader already taken")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			l.Error("failed to patch team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update team")
		}

		// The leader is always a member of the team they lead.
		if leaderChanged {
			if err = t.users.SetSquad(txCtx, *in.LeaderID, &teamID); err != nil {
				l.Error("failed to set leader squad", zap.String("team_id", teamID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to update team")
			}
		}

		updated = toModelTeam(patched)
		return nil
	})

	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return nil, serr
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}

	return updated, nil
}

// DeleteTeam removes a team and clears every remaining member's squad in the
// same transaction, so no user is left pointing at a dead team.
func (t *TeamService) DeleteTeam(ctx context.Context, teamID, actorID string) *Error {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(teamID) {
		return NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		team, serr := t.requireTeam(txCtx, teamID)
		if serr != nil {
			return serr
		}

		actor, serr := t.actor(txCtx, actorID)
		if serr != nil {
			return serr
		}
		if !actor.IsAdmin && team.LeaderID != actorID {
			return NewError(ErrorCodeForbidden, "not allowed to delete this team")
		}

		if err := t.users.ClearSquadByTeam(txCtx, teamID); err != nil {
			l.Error("failed to clear member squads", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}

		err := t.teams.Delete(txCtx, teamID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			l.Error("failed to delete team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}

		return nil
	})

	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return serr
		}
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}

	l.Info("team deleted", zap.String("team_id", teamID), zap.String("actor_id", actorID))

	return nil
}

// InsertMember adds a user to a team. The caller must be an admin or the
// team's leader; the target must not be an admin and must not already belong
// to any team.
func (t *TeamService) InsertMember(ctx context.Context, teamID, userID, actorID string) (*model.UserProfile, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(teamID) {
		return nil, NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}
	if !validation.ValidUUID(userID) {
		return nil, NewError(ErrorCodeValidation, "user id must be a valid UUID")
	}

	team, serr := t.requireTeam(ctx, teamID)
	if serr != nil {
		return nil, serr
	}

	actor, serr := t.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}
	if !actor.IsAdmin && team.LeaderID != actorID {
		return nil, NewError(ErrorCodeForbidden, "only the team leader or an admin may add members")
	}

	target, err := t.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to add member")
	}
	if target.IsAdmin {
		return nil, NewError(ErrorCodeConflict, "an admin cannot join a team")
	}
	if target.SquadID != nil {
		return nil, NewError(ErrorCodeConflict, "user already belongs to a team")
	}

	if err = t.users.SetSquad(ctx, userID, &team.ID); err != nil {
		l.Error("failed to add member",
			zap.String("team_id", teamID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to add member")
	}

	l.Info("member added", zap.String("team_id", teamID), zap.String("user_id", userID))

	target.SquadID = &team.ID
	return toModelUser(target).Profile(), nil
}

// RemoveMember takes a user off a team and clears their squad. Membership is
// verified against the team's member list, and the leader cannot be removed
// while they still lead the team.
func (t *TeamService) RemoveMember(ctx context.Context, teamID, userID, actorID string) (*model.UserProfile, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(teamID) {
		return nil, NewError(ErrorCodeValidation, "team id must be a valid UUID")
	}
	if !validation.ValidUUID(userID) {
		return nil, NewError(ErrorCodeValidation, "user id must be a valid UUID")
	}

	team, serr := t.requireTeam(ctx, teamID)
	if serr != nil {
		return nil, serr
	}

	actor, serr := t.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}
	if !actor.IsAdmin && team.LeaderID != actorID {
		return nil, NewError(ErrorCodeForbidden, "only the team leader or an admin may remove members")
	}

	if userID == team.LeaderID {
		return nil, NewError(ErrorCodeConflict, "the team leader cannot be removed; reassign leadership first")
	}

	members, err := t.teams.GetMembers(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	var removed *repository.User
	for _, member := range members {
		if member.ID == userID {
			removed = member
			break
		}
	}
	if removed == nil {
		return nil, NewError(ErrorCodeNotFound, "user is not a member of this team")
	}

	if err = t.users.SetSquad(ctx, userID, nil); err != nil {
		l.Error("failed to remove member",
			zap.String("team_id", teamID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	l.Info("member removed", zap.String("team_id", teamID), zap.String("user_id", userID))

	removed.SquadID = nil
	return toModelUser(removed).Profile(), nil
}

func (t *TeamService) requireTeam(ctx context.Context, teamID string) (*repository.Team, *Error) {
	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}
	return team, nil
}

// actor re-reads the live record of the requesting user rather than trusting
// the session token's cached role.
func (t *TeamService) actor(ctx context.Context, actorID string) (*repository.User, *Error) {
	actor, err := t.users.Get(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeForbidden, "unknown requesting user")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load requesting user")
	}
	return actor, nil
}

func toModelTeam(t *repository.Team) *model.Team {
	return &model.Team{
		ID:       t.ID,
		Name:     t.Name,
		LeaderID: t.LeaderID,
	}
}

func (t *TeamService) WithUserRepo(r repository.UserRepository) *TeamService {
	t.users = r
	return t
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}
