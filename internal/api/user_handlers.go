package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/internal/service"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Username  string `json:"username" validate:"required,username"`
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"required"`
		LastName  string `json:"last_name" validate:"required"`
		Password  string `json:"password" validate:"required,user_password"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("registering user", zap.String("username", req.Username))

	user, err := h.user.Register(e.Request().Context(), &service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		l.Error("failed to register user", zap.String("username", req.Username), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusCreated, user)
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	user, serr := h.user.Login(e.Request().Context(), req.Login, req.Password)
	if serr != nil {
		return h.transportError(e, serr)
	}

	token, err := h.issuer.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		l.Error("failed to issue session token", zap.String("user_id", user.ID), zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to log in"))
	}

	e.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.issuer.TTL()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	l.Info("user logged in", zap.String("user_id", user.ID))

	return h.respond(e, http.StatusOK, user)
}

func (h *Handler) Logout(e echo.Context) error {
	e.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return h.respond(e, http.StatusOK, nil)
}

func (h *Handler) GetMe(e echo.Context) error {
	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	user, err := h.user.GetMe(e.Request().Context(), claims.UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, user)
}

func (h *Handler) ListUsers(e echo.Context) error {
	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	users, err := h.user.ListUsers(e.Request().Context(), claims.UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, users)
}

func (h *Handler) GetUser(e echo.Context) error {
	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	view, err := h.user.GetUser(e.Request().Context(), e.Param("id"), claims.UserID)
	if err != nil {
		return h.transportError(e, err)
	}

	if view.User != nil {
		return h.respond(e, http.StatusOK, view.User)
	}
	return h.respond(e, http.StatusOK, view.Profile)
}

func (h *Handler) UpdateUser(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	var req struct {
		Username  *string `json:"username" validate:"omitempty,username"`
		Email     *string `json:"email" validate:"omitempty,email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Password  *string `json:"password"`
		IsAdmin   *bool   `json:"is_admin"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	targetID := e.Param("id")

	l.Info("updating user", zap.String("user_id", targetID), zap.String("actor_id", claims.UserID))

	user, err := h.user.UpdateUser(e.Request().Context(), targetID, claims.UserID, &service.UpdateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		IsAdmin:   req.IsAdmin,
	})
	if err != nil {
		l.Error("failed to update user", zap.String("user_id", targetID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, user)
}

func (h *Handler) DeleteUser(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	claims, ok := h.identity(e)
	if !ok {
		return h.unauthorized(e)
	}

	targetID := e.Param("id")

	l.Info("deleting user", zap.String("user_id", targetID), zap.String("actor_id", claims.UserID))

	if err := h.user.DeleteUser(e.Request().Context(), targetID, claims.UserID); err != nil {
		l.Error("failed to delete user", zap.String("user_id", targetID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return h.respond(e, http.StatusOK, nil)
}

func (h *Handler) identity(e echo.Context) (*auth.SessionClaims, bool) {
	return IdentityFromContext(e.Request().Context())
}

func (h *Handler) unauthorized(e echo.Context) error {
	return e.JSON(http.StatusUnauthorized, envelope{
		Error:  "log in to access this resource",
		Status: http.StatusUnauthorized,
	})
}
