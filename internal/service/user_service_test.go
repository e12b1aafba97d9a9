package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/internal/repository"
)

func TestUserService_Register(t *testing.T) {
	tests := []struct {
		name          string
		input         *RegisterInput
		setupMocks    func(*MockUserRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success",
			input: &RegisterInput{
				Username:  "john_doe",
				Email:     "john@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "hunter2hunter2",
			},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john_doe").Return(nil, repository.ErrNotFound)
				ur.On("Create", mock.Anything, mock.MatchedBy(func(u *repository.User) bool {
					return u.Username == "john_doe" &&
						u.ID != "" &&
						!u.IsAdmin &&
						u.SquadID == nil &&
						u.PasswordHash != "" &&
						u.PasswordHash != "hunter2hunter2"
				})).Return(nil)
			},
			expectedError: false,
		},
		{
			name: "username with forbidden characters",
			input: &RegisterInput{
				Username:  "john doe!",
				Email:     "john@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "hunter2hunter2",
			},
			setupMocks:    func(ur *MockUserRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "malformed email",
			input: &RegisterInput{
				Username:  "john_doe",
				Email:     "not-an-email",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "hunter2hunter2",
			},
			setupMocks:    func(ur *MockUserRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "display name too short",
			input: &RegisterInput{
				Username:  "jd",
				Email:     "jd@example.com",
				FirstName: "J",
				LastName:  "D",
				Password:  "hunter2hunter2",
			},
			setupMocks:    func(ur *MockUserRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "password without digits",
			input: &RegisterInput{
				Username:  "john_doe",
				Email:     "john@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "onlyletters",
			},
			setupMocks:    func(ur *MockUserRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name: "username already taken",
			input: &RegisterInput{
				Username:  "john_doe",
				Email:     "john@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "hunter2hunter2",
			},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john_doe").Return(&repository.User{ID: userID, Username: "john_doe"}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
		{
			// Concurrent registration slipping past the fast path is caught
			// by the unique index.
			name: "unique index conflict on insert",
			input: &RegisterInput{
				Username:  "john_doe",
				Email:     "john@example.com",
				FirstName: "John",
				LastName:  "Doe",
				Password:  "hunter2hunter2",
			},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john_doe").Return(nil, repository.ErrNotFound)
				ur.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)

			tt.setupMocks(mockUserRepo)

			service := NewUserService(mockTx).WithUserRepo(mockUserRepo)

			got, err := service.Register(context.Background(), tt.input)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, tt.input.Username, got.Username)
				assert.False(t, got.IsAdmin)
				assert.Nil(t, got.SquadID)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	hash, err := auth.HashPassword("hunter2hunter2")
	assert.NoError(t, err)

	stored := &repository.User{ID: userID, Username: "john_doe", Email: "john@example.com", PasswordHash: hash}

	tests := []struct {
		name          string
		login         string
		password      string
		setupMocks    func(*MockUserRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "login by username",
			login:    "john_doe",
			password: "hunter2hunter2",
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john_doe").Return(stored, nil)
			},
			expectedError: false,
		},
		{
			name:     "login by email",
			login:    "john@example.com",
			password: "hunter2hunter2",
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john@example.com").Return(nil, repository.ErrNotFound)
				ur.On("GetByEmail", mock.Anything, "john@example.com").Return(stored, nil)
			},
			expectedError: false,
		},
		{
			name:     "wrong password",
			login:    "john_doe",
			password: "wrongpass99",
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "john_doe").Return(stored, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeBadCredentials,
		},
		{
			name:     "unknown user",
			login:    "nobody",
			password: "hunter2hunter2",
			setupMocks: func(ur *MockUserRepository) {
				ur.On("GetByUsername", mock.Anything, "nobody").Return(nil, repository.ErrNotFound)
				ur.On("GetByEmail", mock.Anything, "nobody").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeBadCredentials,
		},
	}

	var messages []string

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)

			tt.setupMocks(mockUserRepo)

			service := NewUserService(mockTx).WithUserRepo(mockUserRepo)

			got, serr := service.Login(context.Background(), tt.login, tt.password)

			if tt.expectedError {
				assert.Error(t, serr)
				assert.Equal(t, tt.errorCode, serr.Code)
				assert.Nil(t, got)
				messages = append(messages, serr.Message)
			} else {
				assert.Nil(t, serr)
				assert.Equal(t, userID, got.ID)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}

	// A wrong password and an unknown user must be indistinguishable.
	assert.Len(t, messages, 2)
	assert.Equal(t, messages[0], messages[1])
}

func TestUserService_GetUser(t *testing.T) {
	tests := []struct {
		name          string
		targetID      string
		actorID       string
		setupMocks    func(*MockUserRepository, *MockTeamRepository)
		expectedError bool
		errorCode     ErrorCode
		wantFull      bool
	}{
		{
			name:     "admin gets the full record",
			targetID: userID,
			actorID:  adminID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Username: "john"}, nil)
			},
			wantFull: true,
		},
		{
			name:     "leader gets a reduced view of own member",
			targetID: memberID,
			actorID:  leaderID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, leaderID).Return(&repository.User{ID: leaderID, SquadID: strPtr(teamID)}, nil)
				tr.On("GetByLeader", mock.Anything, leaderID).Return(&repository.Team{ID: teamID, LeaderID: leaderID}, nil)
				ur.On("Get", mock.Anything, memberID).Return(&repository.User{ID: memberID, Username: "member", SquadID: strPtr(teamID)}, nil)
			},
			wantFull: false,
		},
		{
			name:     "leader gets a reduced view of a peer leader",
			targetID: userID,
			actorID:  leaderID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, leaderID).Return(&repository.User{ID: leaderID, SquadID: strPtr(teamID)}, nil)
				tr.On("GetByLeader", mock.Anything, leaderID).Return(&repository.Team{ID: teamID, LeaderID: leaderID}, nil)
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Username: "peer", SquadID: strPtr(otherTeam)}, nil)
				tr.On("GetByLeader", mock.Anything, userID).Return(&repository.Team{ID: otherTeam, LeaderID: userID}, nil)
			},
			wantFull: false,
		},
		{
			name:     "leader cannot view an unrelated user",
			targetID: userID,
			actorID:  leaderID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, leaderID).Return(&repository.User{ID: leaderID, SquadID: strPtr(teamID)}, nil)
				tr.On("GetByLeader", mock.Anything, leaderID).Return(&repository.Team{ID: teamID, LeaderID: leaderID}, nil)
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, SquadID: strPtr(otherTeam)}, nil)
				tr.On("GetByLeader", mock.Anything, userID).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:     "regular user cannot view others",
			targetID: userID,
			actorID:  memberID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, memberID).Return(&repository.User{ID: memberID, SquadID: strPtr(teamID)}, nil)
				tr.On("GetByLeader", mock.Anything, memberID).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:     "admin on a missing user",
			targetID: userID,
			actorID:  adminID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("Get", mock.Anything, userID).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)
			mockTeamRepo := new(MockTeamRepository)

			tt.setupMocks(mockUserRepo, mockTeamRepo)

			service := NewUserService(mockTx).
				WithUserRepo(mockUserRepo).
				WithTeamRepo(mockTeamRepo)

			got, err := service.GetUser(context.Background(), tt.targetID, tt.actorID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				if tt.wantFull {
					assert.NotNil(t, got.User)
					assert.Nil(t, got.Profile)
				} else {
					assert.NotNil(t, got.Profile)
					assert.Nil(t, got.User)
				}
			}

			mockUserRepo.AssertExpectations(t)
			mockTeamRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_UpdateUser(t *testing.T) {
	tests := []struct {
		name          string
		targetID      string
		actorID       string
		input         *UpdateUserInput
		setupMocks    func(*MockUserRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "user updates own email",
			targetID: userID,
			actorID:  userID,
			input:    &UpdateUserInput{Email: strPtr("new@example.com")},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Username: "john", FirstName: "John", LastName: "Doe"}, nil)
				ur.On("Patch", mock.Anything, &repository.UserPatch{ID: userID, Email: strPtr("new@example.com")}).
					Return(&repository.User{ID: userID, Username: "john", Email: "new@example.com"}, nil)
			},
			expectedError: false,
		},
		{
			name:     "user cannot update someone else",
			targetID: userID,
			actorID:  memberID,
			input:    &UpdateUserInput{Email: strPtr("new@example.com")},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, memberID).Return(&repository.User{ID: memberID}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:     "admin promotes a squadless user",
			targetID: userID,
			actorID:  adminID,
			input:    &UpdateUserInput{IsAdmin: boolPtr(true)},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, FirstName: "John", LastName: "Doe"}, nil)
				ur.On("Patch", mock.Anything, &repository.UserPatch{ID: userID, IsAdmin: boolPtr(true)}).
					Return(&repository.User{ID: userID, IsAdmin: true}, nil)
			},
			expectedError: false,
		},
		{
			// Promotion of a team member is silently dropped, not rejected.
			name:     "admin promoting a team member is forced to false",
			targetID: memberID,
			actorID:  adminID,
			input:    &UpdateUserInput{IsAdmin: boolPtr(true)},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("Get", mock.Anything, memberID).Return(&repository.User{ID: memberID, FirstName: "Jane", LastName: "Doe", SquadID: strPtr(teamID)}, nil)
				ur.On("Patch", mock.Anything, &repository.UserPatch{ID: memberID, IsAdmin: boolPtr(false)}).
					Return(&repository.User{ID: memberID, SquadID: strPtr(teamID)}, nil)
			},
			expectedError: false,
		},
		{
			name:     "self promotion never elevates",
			targetID: userID,
			actorID:  userID,
			input:    &UpdateUserInput{IsAdmin: boolPtr(true)},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, FirstName: "John", LastName: "Doe"}, nil)
				ur.On("Patch", mock.Anything, &repository.UserPatch{ID: userID, IsAdmin: boolPtr(false)}).
					Return(&repository.User{ID: userID}, nil)
			},
			expectedError: false,
		},
		{
			name:     "username change to a taken name",
			targetID: userID,
			actorID:  userID,
			input:    &UpdateUserInput{Username: strPtr("taken")},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Username: "john"}, nil)
				ur.On("GetByUsername", mock.Anything, "taken").Return(&repository.User{ID: memberID, Username: "taken"}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
		{
			name:     "password change is rehashed",
			targetID: userID,
			actorID:  userID,
			input:    &UpdateUserInput{Password: strPtr("newpass1234")},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Username: "john"}, nil)
				ur.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.UserPatch) bool {
					return p.PasswordHash != nil && *p.PasswordHash != "newpass1234"
				})).Return(&repository.User{ID: userID}, nil)
			},
			expectedError: false,
		},
		{
			name:     "target not found",
			targetID: userID,
			actorID:  adminID,
			input:    &UpdateUserInput{Email: strPtr("new@example.com")},
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("Get", mock.Anything, userID).Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)

			tt.setupMocks(mockUserRepo)

			service := NewUserService(mockTx).WithUserRepo(mockUserRepo)

			got, err := service.UpdateUser(context.Background(), tt.targetID, tt.actorID, tt.input)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.NotNil(t, got)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	tests := []struct {
		name          string
		targetID      string
		actorID       string
		setupMocks    func(*MockUserRepository, *MockTeamRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "admin deletes a user",
			targetID: userID,
			actorID:  adminID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				tr.On("GetByLeader", mock.Anything, userID).Return(nil, repository.ErrNotFound)
				ur.On("Delete", mock.Anything, userID).Return(nil)
			},
			expectedError: false,
		},
		{
			name:     "non-admin is refused",
			targetID: userID,
			actorID:  memberID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, memberID).Return(&repository.User{ID: memberID}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			// A leader must hand over or disband their team before deletion,
			// even when an admin asks.
			name:     "target leads a team",
			targetID: leaderID,
			actorID:  adminID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				tr.On("GetByLeader", mock.Anything, leaderID).Return(&repository.Team{ID: teamID, LeaderID: leaderID}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:     "target not found",
			targetID: userID,
			actorID:  adminID,
			setupMocks: func(ur *MockUserRepository, tr *MockTeamRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				tr.On("GetByLeader", mock.Anything, userID).Return(nil, repository.ErrNotFound)
				ur.On("Delete", mock.Anything, userID).Return(repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)
			mockTeamRepo := new(MockTeamRepository)

			tt.setupMocks(mockUserRepo, mockTeamRepo)

			service := NewUserService(mockTx).
				WithUserRepo(mockUserRepo).
				WithTeamRepo(mockTeamRepo)

			err := service.DeleteUser(context.Background(), tt.targetID, tt.actorID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				assert.Nil(t, err)
			}

			mockUserRepo.AssertExpectations(t)
			mockTeamRepo.AssertExpectations(t)
		})
	}
}

func TestUserService_ListUsers(t *testing.T) {
	tests := []struct {
		name          string
		actorID       string
		setupMocks    func(*MockUserRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:    "admin lists users",
			actorID: adminID,
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, adminID).Return(&repository.User{ID: adminID, IsAdmin: true}, nil)
				ur.On("List", mock.Anything).Return([]*repository.User{
					{ID: userID, Username: "john"},
					{ID: memberID, Username: "jane"},
				}, nil)
			},
			expectedError: false,
		},
		{
			name:    "non-admin is refused",
			actorID: userID,
			setupMocks: func(ur *MockUserRepository) {
				ur.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)

			tt.setupMocks(mockUserRepo)

			service := NewUserService(mockTx).WithUserRepo(mockUserRepo)

			got, err := service.ListUsers(context.Background(), tt.actorID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Len(t, got, 2)
			}

			mockUserRepo.AssertExpectations(t)
		})
	}
}
