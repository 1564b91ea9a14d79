package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorStatus struct {
	status int
	code   string
}

var errorStatuses = map[error]errorStatus{
	domain.ErrValidationFailed:     {http.StatusUnprocessableEntity, "validation_failed"},
	domain.ErrEmptyFile:            {http.StatusUnprocessableEntity, "empty_file"},
	domain.ErrNoHeaders:            {http.StatusUnprocessableEntity, "no_headers"},
	domain.ErrNoDataRows:           {http.StatusUnprocessableEntity, "no_data_rows"},
	domain.ErrParseFailure:         {http.StatusUnprocessableEntity, "parse_failure"},
	domain.ErrFileTypeMismatch:     {http.StatusUnsupportedMediaType, "file_type_mismatch"},
	domain.ErrBatchNotFound:        {http.StatusNotFound, "not_found"},
	domain.ErrFileNotFound:         {http.StatusGone, "file_not_found"},
	domain.ErrStateConflict:        {http.StatusConflict, "state_conflict"},
	domain.ErrCommitConflict:       {http.StatusConflict, "commit_conflict"},
	domain.ErrPartialCommitFailure: {http.StatusMultiStatus, "partial_commit_failure"},
}

// errorResponder turns pipeline errors into the response envelope. Details
// of unexpected errors are only exposed in debug mode.
type errorResponder struct {
	logger *logging.Logger
	debug  bool
}

func (r errorResponder) respond(c echo.Context, err error, data any) error {
	kind := domain.KindOf(err)
	mapped, ok := errorStatuses[kind]
	if !ok {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"path":       c.Path(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).Error("request failed")

		body := &errorBody{Code: "internal_error", Message: "internal server error"}
		if r.debug {
			body.Details = err.Error()
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: body})
	}

	body := &errorBody{Code: mapped.code, Message: domain.PublicMessage(err)}
	var pipelineErr *domain.Error
	if errors.As(err, &pipelineErr) {
		switch {
		case len(pipelineErr.Fields) > 0:
			body.Details = pipelineErr.Fields
		case len(pipelineErr.Rows) > 0:
			body.Details = pipelineErr.Rows
		}
	}
	return c.JSON(mapped.status, apiResponse{Data: data, Error: body})
}

func (r errorResponder) badRequest(c echo.Context, field, message string) error {
	return r.respond(c, domain.NewError(domain.ErrValidationFailed, "invalid request").
		WithFields(domain.FieldError{Field: field, Message: message}), nil)
}
