package importing

import (
	"context"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

type ListHistoryInput struct {
	Entity  string `json:"entity" validate:"omitempty,oneof=student teacher students teachers"`
	Status  string `json:"status" validate:"omitempty,oneof=uploaded validating validated importing completed failed cancelled"`
	Days    int    `json:"days" validate:"gte=0,lte=3650"`
	Page    int    `json:"page" validate:"gte=1"`
	PerPage int    `json:"per_page" validate:"gte=1,lte=100"`
}

type ListHistoryOutput struct {
	Items      []BatchSummary `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

type ListHistory interface {
	Execute(ctx context.Context, in ListHistoryInput) (ListHistoryOutput, error)
}

type listHistory struct {
	batches domain.BatchRepository
}

func NewListHistory(batches domain.BatchRepository) ListHistory {
	return &listHistory{batches: batches}
}

func (uc *listHistory) Execute(ctx context.Context, in ListHistoryInput) (ListHistoryOutput, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.PerPage == 0 {
		in.PerPage = 20
	}
	if err := validateInput(in); err != nil {
		return ListHistoryOutput{}, err
	}

	query := domain.HistoryQuery{}
	query.Offset, query.Limit = pageBounds(in.Page, in.PerPage)
	if in.Entity != "" {
		entity, err := domain.ParseEntityType(in.Entity)
		if err != nil {
			return ListHistoryOutput{}, err
		}
		query.Entity = &entity
	}
	if in.Status != "" {
		status, _ := domain.ParseBatchStatus(in.Status)
		query.Status = &status
	}
	if in.Days > 0 {
		since := time.Now().UTC().AddDate(0, 0, -in.Days)
		query.Since = &since
	}

	batches, total, err := uc.batches.History(ctx, query)
	if err != nil {
		return ListHistoryOutput{}, fmt.Errorf("list batch history: %w", err)
	}

	items := make([]BatchSummary, 0, len(batches))
	for _, batch := range batches {
		items = append(items, summarize(batch))
	}
	return ListHistoryOutput{Items: items, Pagination: newPagination(in.Page, in.PerPage, total)}, nil
}
