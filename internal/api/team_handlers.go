package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/squad-manager/internal/service"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Name     string `json:"name" validate:"required,team_name"`
		LeaderID string `json:"leader_id" validate:"required,uuid"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating team", zap.String("team_name", req.Name), zap.String("leader_id", req.LeaderID))

	team, err := h.team.CreateTeam(e.Request().Context(), req.Name, req.LeaderID)
	if err != nil {
		l.Error("failed to create team", zap.String("team_name", req.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusCreated, team)
}

func (h *Handler) ListTeams(e echo.Context) error {
	teams, err := h.team.ListTeams(e.Request().Context())
	if err != nil {
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, teams)
}

func (h *Handler) GetTeam(e echo.Context) error {
	team, err := h.team.GetTeam(e.Request().Context(), e.Param("team_id"))
	if err != nil {
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, team)
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	var req struct {
		Name     *string `json:"name" validate:"omitempty,team_name"`
		LeaderID *string `json:"leader_id" validate:"omitempty,uuid"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	teamID := e.Param("team_id")

	l.Info("updating team", zap.String("team_id", teamID), zap.String("actor_id", claims.UserID))

	team, err := h.team.UpdateTeam(e.Request().Context(), teamID, claims.UserID, &service.UpdateTeamInput{
		Name:     req.Name,
		LeaderID: req.LeaderID,
	})
	if err != nil {
		l.Error("failed to update team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, team)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	teamID := e.Param("team_id")

	l.Info("deleting team", zap.String("team_id", teamID), zap.String("actor_id", claims.UserID))

	if err := h.team.DeleteTeam(e.Request().Context(), teamID, claims.UserID); err != nil {
		l.Error("failed to delete team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, nil)
}

func (h *Handler) GetTeamMembers(e echo.Context) error {
	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	members, err := h.team.GetTeamMembers(e.Request().Context(), e.Param("team_id"), claims.UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, members)
}

func (h *Handler) InsertMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	teamID := e.Param("team_id")
	userID := e.Param("user_id")

	l.Info("adding team member",
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
		zap.String("actor_id", claims.UserID))

	member, err := h.team.InsertMember(e.Request().Context(), teamID, userID, claims.UserID)
	if err != nil {
		l.Error("failed to add team member",
			zap.String("team_id", teamID),
			zap.String("user_id", userID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusCreated, member)
}

func (h *Handler) RemoveMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	teamID := e.Param("team_id")
	userID := e.Param("user_id")

	l.Info("removing team member",
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
		zap.String("actor_id", claims.UserID))

	member, err := h.team.RemoveMember(e.Request().Context(), teamID, userID, claims.UserID)
	if err != nil {
		l.Error("failed to remove team member",
			zap.String("team_id", teamID),
			zap.String("user_id", userID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, member)
}
