package importing

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

// BatchSummary is the caller-facing view of a batch record.
type BatchSummary struct {
	ID               string               `json:"batch_id"`
	Entity           domain.EntityType    `json:"entity"`
	Status           domain.BatchStatus   `json:"status"`
	BranchID         int64                `json:"branch_id"`
	UploadedBy       int64                `json:"uploaded_by"`
	OriginalFilename string               `json:"original_filename"`
	StoredFilename   string               `json:"stored_filename"`
	FileSize         int64                `json:"file_size"`
	FileKind         domain.FileKind      `json:"file_kind"`
	Context          domain.ImportContext `json:"context"`
	TotalRows        int64                `json:"total_rows"`
	ValidRows        int64                `json:"valid_rows"`
	InvalidRows      int64                `json:"invalid_rows"`
	ImportedRows     int64                `json:"imported_rows"`
	ErrorMessage     *string              `json:"error_message,omitempty"`
	UploadedAt       time.Time            `json:"uploaded_at"`
	ValidatedAt      *time.Time           `json:"validated_at,omitempty"`
	ImportStartedAt  *time.Time           `json:"import_started_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
}

func summarize(batch domain.Batch) BatchSummary {
	return BatchSummary{
		ID:               batch.ID,
		Entity:           batch.Entity,
		Status:           batch.Status,
		BranchID:         batch.BranchID,
		UploadedBy:       batch.UploadedBy,
		OriginalFilename: batch.OriginalFilename,
		StoredFilename:   batch.StoredFilename,
		FileSize:         batch.FileSize,
		FileKind:         batch.FileKind,
		Context:          batch.Context,
		TotalRows:        batch.TotalRows,
		ValidRows:        batch.ValidRows,
		InvalidRows:      batch.InvalidRows,
		ImportedRows:     batch.ImportedRows,
		ErrorMessage:     batch.ErrorMessage,
		UploadedAt:       batch.UploadedAt,
		ValidatedAt:      batch.ValidatedAt,
		ImportStartedAt:  batch.ImportStartedAt,
		CompletedAt:      batch.CompletedAt,
		CancelledAt:      batch.CancelledAt,
	}
}

// Pagination mirrors the page metadata returned by list endpoints.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPagination(page, perPage int, total int64) Pagination {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

func pageBounds(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage, perPage
}

// loadActiveBatch returns the batch when it exists for entity and has not
// been cancelled.
func loadActiveBatch(ctx context.Context, repo domain.BatchRepository, entity domain.EntityType, batchID string) (domain.Batch, error) {
	batch, err := repo.Get(ctx, batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return domain.Batch{}, domain.NewError(domain.ErrBatchNotFound, "import batch %s not found", batchID)
		}
		return domain.Batch{}, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	if batch.Entity != entity || batch.Status == domain.BatchCancelled {
		return domain.Batch{}, domain.NewError(domain.ErrBatchNotFound, "import batch %s not found", batchID)
	}
	return batch, nil
}

// failBatch records cause on the batch and moves it to failed. The cause
// is returned unchanged; a failure to persist the state is logged.
func failBatch(ctx context.Context, repo domain.BatchRepository, logger *logging.Logger, batch *domain.Batch, cause error) error {
	reason := domain.PublicMessage(cause)
	if domain.KindOf(cause) == domain.ErrUnexpected {
		reason = "internal error while processing the batch"
		logger.WithError(cause).Error("batch processing failed")
	}

	ctx = context.WithoutCancel(ctx)
	if err := batch.Fail(reason, time.Now().UTC()); err != nil {
		logger.WithError(err).Warn("batch could not be marked failed")
		return cause
	}
	if err := repo.Save(ctx, batch); err != nil {
		logger.WithError(err).Error("persist failed batch state")
	}
	return cause
}
