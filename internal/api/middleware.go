package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

// SessionCookieName is the http-only cookie carrying the session token.
const SessionCookieName = "sessionID"

type identityKey struct{}

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware requires a valid session cookie and stores the verified
// claims on the request context. Handlers read the identity via
// IdentityFromContext; the service layer re-reads the live record for
// role-sensitive decisions.
func AuthMiddleware(issuer *auth.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, envelope{
					Error:  "log in to access this resource",
					Status: http.StatusUnauthorized,
				})
			}

			claims, err := issuer.VerifyToken(cookie.Value)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, envelope{
					Error:  "invalid session token",
					Status: http.StatusUnauthorized,
				})
			}

			req := c.Request()
			ctx := context.WithValue(req.Context(), identityKey{}, claims)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// IdentityFromContext returns the session claims attached by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(identityKey{}).(*auth.SessionClaims)
	return claims, ok
}
