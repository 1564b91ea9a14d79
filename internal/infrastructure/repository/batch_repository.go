package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	row, err := toBatchModel(*batch)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create import batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) Get(ctx context.Context, batchID string) (domain.Batch, error) {
	// Postgres rejects malformed uuids with a syntax error; treat them as unknown.
	if _, err := uuid.Parse(batchID); err != nil {
		return domain.Batch{}, domain.ErrBatchNotFound
	}

	var row models.ImportBatch
	err := r.db.WithContext(ctx).First(&row, "id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Batch{}, domain.ErrBatchNotFound
		}
		return domain.Batch{}, fmt.Errorf("get import batch: %w", err)
	}
	return fromBatchModel(row)
}

func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	row, err := toBatchModel(*batch)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&models.ImportBatch{}).
		Where("id = ?", batch.ID).
		Select("*").
		Omit("id", "uploaded_at").
		Updates(&row)
	if result.Error != nil {
		return fmt.Errorf("save import batch: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (r *BatchRepository) History(ctx context.Context, q domain.HistoryQuery) ([]domain.Batch, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportBatch{})
	if q.Entity != nil {
		query = query.Where("entity = ?", string(*q.Entity))
	}
	if q.Status != nil {
		query = query.Where("status = ?", string(*q.Status))
	}
	if q.Since != nil {
		query = query.Where("uploaded_at >= ?", *q.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count import batches: %w", err)
	}

	var rows []models.ImportBatch
	page := query.Order("uploaded_at DESC").Order("id").Offset(q.Offset)
	if q.Limit > 0 {
		page = page.Limit(q.Limit)
	}
	if err := page.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list import batches: %w", err)
	}

	out := make([]domain.Batch, 0, len(rows))
	for _, row := range rows {
		batch, err := fromBatchModel(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, batch)
	}
	return out, total, nil
}

func (r *BatchRepository) LastCompletedAt(ctx context.Context, entity domain.EntityType) (*time.Time, error) {
	var last *time.Time
	err := r.db.WithContext(ctx).Model(&models.ImportBatch{}).
		Where("entity = ? AND status = ?", string(entity), string(domain.BatchCompleted)).
		Select("MAX(completed_at)").
		Scan(&last).Error
	if err != nil {
		return nil, fmt.Errorf("last completed %s import: %w", entity, err)
	}
	return last, nil
}
