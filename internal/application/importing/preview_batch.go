package importing

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

type PreviewBatchInput struct {
	Entity  domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
	BatchID string            `json:"batch_id" validate:"required"`
	Status  string            `json:"status" validate:"omitempty,oneof=pending valid invalid"`
	Page    int               `json:"page" validate:"gte=1"`
	PerPage int               `json:"per_page" validate:"gte=1,lte=200"`
}

type PreviewRow struct {
	RowNumber    int                   `json:"row_number"`
	Status       domain.RowStatus      `json:"status"`
	Errors       []string              `json:"errors"`
	Imported     bool                  `json:"imported"`
	ProductionID *int64                `json:"production_id,omitempty"`
	Student      *domain.StudentFields `json:"student,omitempty"`
	Teacher      *domain.TeacherFields `json:"teacher,omitempty"`
	Unmapped     map[string]string     `json:"unmapped,omitempty"`
}

type PreviewBatchOutput struct {
	Batch      BatchSummary     `json:"batch"`
	Counts     domain.RowCounts `json:"counts"`
	Rows       []PreviewRow     `json:"rows"`
	Pagination Pagination       `json:"pagination"`
}

type PreviewBatch interface {
	Execute(ctx context.Context, in PreviewBatchInput) (PreviewBatchOutput, error)
}

type previewBatch struct {
	batches domain.BatchRepository
	staging domain.StagingStore
}

func NewPreviewBatch(batches domain.BatchRepository, staging domain.StagingStore) PreviewBatch {
	return &previewBatch{batches: batches, staging: staging}
}

func (uc *previewBatch) Execute(ctx context.Context, in PreviewBatchInput) (PreviewBatchOutput, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.PerPage == 0 {
		in.PerPage = 50
	}
	if err := validateInput(in); err != nil {
		return PreviewBatchOutput{}, err
	}

	batch, err := loadActiveBatch(ctx, uc.batches, in.Entity, in.BatchID)
	if err != nil {
		return PreviewBatchOutput{}, err
	}

	counts, err := uc.staging.Counts(ctx, batch.Entity, batch.ID)
	if err != nil {
		return PreviewBatchOutput{}, fmt.Errorf("count staging rows: %w", err)
	}

	query := domain.RowQuery{}
	query.Offset, query.Limit = pageBounds(in.Page, in.PerPage)
	total := counts.Total
	if in.Status != "" {
		status, _ := domain.ParseRowStatus(in.Status)
		query.Status = &status
		switch status {
		case domain.RowValid:
			total = counts.Valid
		case domain.RowInvalid:
			total = counts.Invalid
		default:
			total = counts.Pending
		}
	}

	rows, err := uc.staging.List(ctx, batch.Entity, batch.ID, query)
	if err != nil {
		return PreviewBatchOutput{}, fmt.Errorf("list staging rows: %w", err)
	}

	out := PreviewBatchOutput{
		Batch:      summarize(batch),
		Counts:     counts,
		Rows:       make([]PreviewRow, 0, len(rows)),
		Pagination: newPagination(in.Page, in.PerPage, total),
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, PreviewRow{
			RowNumber:    row.RowNumber,
			Status:       row.Status,
			Errors:       row.Errors,
			Imported:     row.Imported,
			ProductionID: row.ProductionID,
			Student:      row.Student,
			Teacher:      row.Teacher,
			Unmapped:     row.Unmapped,
		})
	}
	return out, nil
}
