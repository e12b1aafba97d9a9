package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/internal/service"
	"go.uber.org/zap"
)

// envelope is the uniform response body: exactly one of Data and Error is
// set, and Status mirrors the HTTP status code.
type envelope struct {
	Data   any `json:"data"`
	Error  any `json:"error"`
	Status int `json:"status"`
}

type Handler struct {
	team *service.TeamService
	user *service.UserService

	issuer *auth.Issuer

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithUserService(user *service.UserService) *Handler {
	h.user = user
	return h
}

func (h *Handler) WithIssuer(issuer *auth.Issuer) *Handler {
	h.issuer = issuer
	return h
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	e.POST("/user", h.Register)
	e.POST("/user/login", h.Login)
	e.DELETE("/user/logout", h.Logout)

	secured := e.Group("", AuthMiddleware(h.issuer))

	secured.GET("/user", h.ListUsers)
	secured.GET("/user/me", h.GetMe)
	secured.GET("/user/:id", h.GetUser)
	secured.PATCH("/user/:id", h.UpdateUser)
	secured.DELETE("/user/:id", h.DeleteUser)

	secured.POST("/teams", h.CreateTeam)
	secured.GET("/teams", h.ListTeams)
	secured.GET("/teams/:team_id", h.GetTeam)
	secured.PATCH("/teams/:team_id", h.UpdateTeam)
	secured.DELETE("/teams/:team_id", h.DeleteTeam)
	secured.GET("/teams/:team_id/members", h.GetTeamMembers)
	secured.POST("/teams/:team_id/member/:user_id", h.InsertMember)
	secured.DELETE("/teams/:team_id/member/:user_id", h.RemoveMember)
}

func (h *Handler) respond(e echo.Context, status int, data any) error {
	return e.JSON(status, envelope{
		Data:   data,
		Status: status,
	})
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	status := statusForCode(err.Code)
	return e.JSON(status, envelope{
		Error:  err.Message,
		Status: status,
	})
}

func statusForCode(code service.ErrorCode) int {
	switch code {
	case service.ErrorCodeValidation, service.ErrorCodeInvalidBody, service.ErrorCodeConflict:
		return http.StatusBadRequest
	case service.ErrorCodeForbidden:
		return http.StatusForbidden
	case service.ErrorCodeNotFound, service.ErrorCodeBadCredentials:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
