package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) BranchByID(ctx context.Context, branchID int64) (domain.Branch, bool, error) {
	var row models.Branch
	err := r.db.WithContext(ctx).First(&row, "id = ?", branchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Branch{}, false, nil
		}
		return domain.Branch{}, false, fmt.Errorf("get branch %d: %w", branchID, err)
	}
	return fromBranchModel(row), true, nil
}

func (r *ReferenceRepository) BranchesByCode(ctx context.Context, codes []string) (map[string]domain.Branch, error) {
	out := make(map[string]domain.Branch, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var rows []models.Branch
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find branches by code: %w", err)
	}
	for _, row := range rows {
		out[row.Code] = fromBranchModel(row)
	}
	return out, nil
}

// GradesForBranch returns the grade names of a branch, lowercased.
func (r *ReferenceRepository) GradesForBranch(ctx context.Context, branchID int64) (map[string]bool, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Where("branch_id = ?", branchID).
		Pluck("LOWER(TRIM(name))", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list grades of branch %d: %w", branchID, err)
	}
	return toSet(names), nil
}
