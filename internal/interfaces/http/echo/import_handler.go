package echo

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	app "github.com/mohammadpnp/school-import/internal/application/importing"
	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

// ImportUseCases groups the operations served under /api/v1/imports.
type ImportUseCases struct {
	Modules  app.ListModules
	Upload   app.UploadBatch
	Validate app.ValidateBatch
	Preview  app.PreviewBatch
	Commit   app.CommitBatch
	Cancel   app.CancelBatch
	History  app.ListHistory
	Template app.DownloadTemplate
}

type ImportHandler struct {
	uc        ImportUseCases
	responder errorResponder
}

type commitRequest struct {
	SkipInvalid *bool `json:"skip_invalid"`
}

func NewImportHandler(uc ImportUseCases, logger *logging.Logger, debug bool) *ImportHandler {
	return &ImportHandler{uc: uc, responder: errorResponder{logger: logger, debug: debug}}
}

func (h *ImportHandler) ListModules(c echo.Context) error {
	out, err := h.uc.Modules.Execute(c.Request().Context())
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Upload(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return h.responder.badRequest(c, "file", "a spreadsheet file is required")
	}
	branchID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("branch_id")), 10, 64)
	if err != nil {
		return h.responder.badRequest(c, "branch_id", "must be a positive integer")
	}

	src, err := header.Open()
	if err != nil {
		return h.responder.respond(c, fmt.Errorf("open uploaded file: %w", err), nil)
	}
	defer src.Close()

	out, err := h.uc.Upload.Execute(c.Request().Context(), app.UploadBatchInput{
		Entity:       entity,
		UploadedBy:   callerID(c),
		BranchID:     branchID,
		Filename:     header.Filename,
		Content:      src,
		Grade:        optionalForm(c, "grade"),
		Section:      optionalForm(c, "section"),
		AcademicYear: optionalForm(c, "academic_year"),
		Department:   optionalForm(c, "department"),
	})
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusCreated, apiResponse{Data: out})
}

func (h *ImportHandler) Validate(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	out, err := h.uc.Validate.Execute(c.Request().Context(), app.ValidateBatchInput{
		Entity:  entity,
		BatchID: c.Param("batch_id"),
	})
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Preview(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	in := app.PreviewBatchInput{Entity: entity, BatchID: c.Param("batch_id")}
	if err := echo.QueryParamsBinder(c).
		String("status", &in.Status).
		Int("page", &in.Page).
		Int("per_page", &in.PerPage).
		BindError(); err != nil {
		return h.responder.respond(c, bindingError(err), nil)
	}

	out, err := h.uc.Preview.Execute(c.Request().Context(), in)
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Commit(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return h.responder.badRequest(c, "body", "invalid request body")
	}

	out, err := h.uc.Commit.Execute(c.Request().Context(), app.CommitBatchInput{
		Entity:      entity,
		BatchID:     c.Param("batch_id"),
		CommittedBy: callerID(c),
		SkipInvalid: req.SkipInvalid,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPartialCommitFailure) {
			return h.responder.respond(c, err, out)
		}
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Cancel(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	out, err := h.uc.Cancel.Execute(c.Request().Context(), app.CancelBatchInput{
		Entity:  entity,
		BatchID: c.Param("batch_id"),
	})
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) History(c echo.Context) error {
	var in app.ListHistoryInput
	if err := echo.QueryParamsBinder(c).
		String("entity", &in.Entity).
		String("status", &in.Status).
		Int("days", &in.Days).
		Int("page", &in.Page).
		Int("per_page", &in.PerPage).
		BindError(); err != nil {
		return h.responder.respond(c, bindingError(err), nil)
	}

	out, err := h.uc.History.Execute(c.Request().Context(), in)
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Template(c echo.Context) error {
	entity, err := domain.ParseEntityType(c.Param("entity"))
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	out, err := h.uc.Template.Execute(c.Request().Context(), app.DownloadTemplateInput{Entity: entity})
	if err != nil {
		return h.responder.respond(c, err, nil)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", out.Filename))
	return c.Blob(http.StatusOK, out.ContentType, out.Content)
}

func optionalForm(c echo.Context, name string) *string {
	value := strings.TrimSpace(c.FormValue(name))
	if value == "" {
		return nil
	}
	return &value
}

func bindingError(err error) error {
	var bindErr *echo.BindingError
	if errors.As(err, &bindErr) && len(bindErr.Field) > 0 {
		return domain.NewError(domain.ErrValidationFailed, "invalid query parameter").
			WithFields(domain.FieldError{Field: bindErr.Field, Message: "must be a number"})
	}
	return domain.NewError(domain.ErrValidationFailed, "invalid query parameters").WithCause(err)
}
