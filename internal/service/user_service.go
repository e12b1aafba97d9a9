package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/internal/db"
	"github.com/yakoovad/squad-manager/internal/model"
	"github.com/yakoovad/squad-manager/internal/repository"
	"github.com/yakoovad/squad-manager/internal/validation"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

// incorrectCredentials is deliberately the same for an unknown login and a
// wrong password so the endpoint cannot be used to enumerate users.
const incorrectCredentials = "incorrect username or password"

type UserService struct {
	tx db.Transactor

	users repository.UserRepository
	teams repository.TeamRepository
}

func NewUserService(tx db.Transactor) *UserService {
	return &UserService{tx: tx}
}

type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UpdateUserInput is a partial update; nil fields keep their stored values.
type UpdateUserInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
	IsAdmin   *bool
}

// UserView is the role-dependent projection of a user record. Exactly one
// field is set: User for admin callers, Profile for team leaders.
type UserView struct {
	User    *model.User
	Profile *model.UserProfile
}

func (u *UserService) Register(ctx context.Context, in *RegisterInput) (*model.User, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidUsername(in.Username) {
		return nil, NewError(ErrorCodeValidation, "username must be 1-30 characters of letters, digits and underscores")
	}
	if !validation.ValidEmail(in.Email) {
		return nil, NewError(ErrorCodeValidation, "email must be a valid address")
	}
	if !validation.ValidPersonName(in.FirstName + in.LastName) {
		return nil, NewError(ErrorCodeValidation, "name must be at least 3 characters of letters and spaces")
	}
	if !validation.ValidPassword(in.Password) {
		return nil, NewError(ErrorCodeValidation, "password must be at least 8 characters with letters and digits")
	}

	// Fast-path friendly error; the unique index on username is the
	// authoritative guard against concurrent registrations.
	_, err := u.users.GetByUsername(ctx, in.Username)
	if err == nil {
		return nil, NewError(ErrorCodeConflict, "username already taken")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		l.Error("failed to check username", zap.String("username", in.Username), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create user")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		l.Error("failed to hash password", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create user")
	}

	user := &repository.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}

	err = u.users.Create(ctx, user)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeConflict, "username already taken")
	}
	if err != nil {
		l.Error("failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create user")
	}

	l.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))

	return toModelUser(user), nil
}

// Login verifies credentials against the stored hash. The login is matched
// against username first, then email.
func (u *UserService) Login(ctx context.Context, login, password string) (*model.User, *Error) {
	l := logger.FromContext(ctx)

	user, err := u.users.GetByUsername(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = u.users.GetByEmail(ctx, login)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeBadCredentials, incorrectCredentials)
	}
	if err != nil {
		l.Error("failed to look up user for login", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to log in")
	}

	if !auth.ComparePassword(password, user.PasswordHash) {
		return nil, NewError(ErrorCodeBadCredentials, incorrectCredentials)
	}

	return toModelUser(user), nil
}

// GetMe returns the caller's own record, password excluded.
func (u *UserService) GetMe(ctx context.Context, actorID string) (*model.User, *Error) {
	user, err := u.users.Get(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}
	return toModelUser(user), nil
}

// ListUsers returns every user record. Admin only.
func (u *UserService) ListUsers(ctx context.Context, actorID string) ([]*model.User, *Error) {
	actor, serr := u.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}
	if !actor.IsAdmin {
		return nil, NewError(ErrorCodeForbidden, "only admins may list users")
	}

	users, err := u.users.List(ctx)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list users")
	}

	result := make([]*model.User, 0, len(users))
	for _, user := range users {
		result = append(result, toModelUser(user))
	}
	return result, nil
}

// GetUser applies the visibility tiering: admins see the full record, a team
// leader sees a reduced profile of their own members and of peer leaders,
// everyone else is refused.
func (u *UserService) GetUser(ctx context.Context, targetID, actorID string) (*UserView, *Error) {
	if !validation.ValidUUID(targetID) {
		return nil, NewError(ErrorCodeValidation, "user id must be a valid UUID")
	}

	actor, serr := u.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}

	if actor.IsAdmin {
		target, err := u.users.Get(ctx, targetID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrorCodeNotFound, "user not found")
		}
		if err != nil {
			return nil, NewError(ErrorCodeUnspecified, "failed to get user")
		}
		return &UserView{User: toModelUser(target)}, nil
	}

	ledTeam, err := u.teams.GetByLeader(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeForbidden, "not allowed to view this user")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}

	target, err := u.users.Get(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}

	if target.SquadID != nil && *target.SquadID == ledTeam.ID {
		return &UserView{Profile: toModelUser(target).Profile()}, nil
	}

	// Peer leaders are visible to each other.
	if _, err = u.teams.GetByLeader(ctx, targetID); err == nil {
		return &UserView{Profile: toModelUser(target).Profile()}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}

	return nil, NewError(ErrorCodeForbidden, "not allowed to view this user")
}

// UpdateUser lets a user edit their own record and an admin edit any record.
// Promotion to admin requires an admin actor and a target without a squad;
// a promotion request that fails either condition is silently dropped rather
// than granted.
func (u *UserService) UpdateUser(ctx context.Context, targetID, actorID string, in *UpdateUserInput) (*model.User, *Error) {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(targetID) {
		return nil, NewError(ErrorCodeValidation, "user id must be a valid UUID")
	}

	actor, serr := u.actor(ctx, actorID)
	if serr != nil {
		return nil, serr
	}
	if actorID != targetID && !actor.IsAdmin {
		return nil, NewError(ErrorCodeForbidden, "not allowed to update this user")
	}

	target, err := u.users.Get(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update user")
	}

	// An empty patch changes nothing.
	if in.Username == nil && in.Email == nil && in.FirstName == nil &&
		in.LastName == nil && in.Password == nil && in.IsAdmin == nil {
		return toModelUser(target), nil
	}

	if in.Username != nil && !validation.ValidUsername(*in.Username) {
		return nil, NewError(ErrorCodeValidation, "username must be 1-30 characters of letters, digits and underscores")
	}
	if in.Email != nil && !validation.ValidEmail(*in.Email) {
		return nil, NewError(ErrorCodeValidation, "email must be a valid address")
	}
	if in.FirstName != nil || in.LastName != nil {
		first, last := target.FirstName, target.LastName
		if in.FirstName != nil {
			first = *in.FirstName
		}
		if in.LastName != nil {
			last = *in.LastName
		}
		if !validation.ValidPersonName(first + last) {
			return nil, NewError(ErrorCodeValidation, "name must be at least 3 characters of letters and spaces")
		}
	}
	if in.Password != nil && !validation.ValidPassword(*in.Password) {
		return nil, NewError(ErrorCodeValidation, "password must be at least 8 characters with letters and digits")
	}

	if in.Username != nil && *in.Username != target.Username {
		other, err := u.users.GetByUsername(ctx, *in.Username)
		if err == nil && other.ID != targetID {
			return nil, NewError(ErrorCodeConflict, "username already taken")
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrorCodeUnspecified, "failed to update user")
		}
	}

	patch := &repository.UserPatch{
		ID:        targetID,
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}

	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			l.Error("failed to hash password", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to update user")
		}
		patch.PasswordHash = &hash
	}

	if in.IsAdmin != nil {
		isAdmin := *in.IsAdmin
		// A member may never hold the admin flag, and only an admin may
		// grant it. Anything else is downgraded to false.
		if isAdmin && (!actor.IsAdmin || target.SquadID != nil) {
			isAdmin = false
		}
		patch.IsAdmin = &isAdmin
	}

	updated, err := u.users.Patch(ctx, patch)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeConflict, "username already taken")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		l.Error("failed to patch user", zap.String("user_id", targetID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update user")
	}

	return toModelUser(updated), nil
}

// DeleteUser removes a user. Admin only, and a user who currently leads a
// team cannot be deleted until the team is reassigned or disbanded.
func (u *UserService) DeleteUser(ctx context.Context, targetID, actorID string) *Error {
	l := logger.FromContext(ctx)

	if !validation.ValidUUID(targetID) {
		return NewError(ErrorCodeValidation, "user id must be a valid UUID")
	}

	actor, serr := u.actor(ctx, actorID)
	if serr != nil {
		return serr
	}
	if !actor.IsAdmin {
		return NewError(ErrorCodeForbidden, "only admins may delete users")
	}

	_, err := u.teams.GetByLeader(ctx, targetID)
	if err == nil {
		return NewError(ErrorCodeForbidden, "user leads a team and cannot be deleted")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeUnspecified, "failed to delete user")
	}

	err = u.users.Delete(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		l.Error("failed to delete user", zap.String("user_id", targetID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to delete user")
	}

	l.Info("user deleted", zap.String("user_id", targetID), zap.String("actor_id", actorID))

	return nil
}

// actor re-reads the live record of the requesting user. Role-sensitive
// decisions never trust the cached admin claim from the session token.
func (u *UserService) actor(ctx context.Context, actorID string) (*repository.User, *Error) {
	actor, err := u.users.Get(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeForbidden, "unknown requesting user")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load requesting user")
	}
	return actor, nil
}

func toModelUser(u *repository.User) *model.User {
	return &model.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		SquadID:      u.SquadID,
	}
}

func (u *UserService) WithUserRepo(r repository.UserRepository) *UserService {
	u.users = r
	return u
}

func (u *UserService) WithTeamRepo(r repository.TeamRepository) *UserService {
	u.teams = r
	return u
}
