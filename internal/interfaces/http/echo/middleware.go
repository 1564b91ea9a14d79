package echo

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mohammadpnp/school-import/internal/logging"
)

// HeaderUserID carries the authenticated caller id set by the upstream gateway.
const HeaderUserID = "X-User-ID"

const callerKey = "caller_id"

// RequireCaller rejects requests without a positive numeric X-User-ID.
func RequireCaller() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			id, err := strconv.ParseInt(raw, 10, 64)
			if raw == "" || err != nil || id <= 0 {
				return c.JSON(http.StatusUnauthorized, apiResponse{Error: &errorBody{
					Code:    "unauthorized",
					Message: "missing or invalid " + HeaderUserID + " header",
				}})
			}
			c.Set(callerKey, id)
			return next(c)
		}
	}
}

func callerID(c echo.Context) int64 {
	id, _ := c.Get(callerKey).(int64)
	return id
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			if v.Status >= http.StatusInternalServerError {
				entry.Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
