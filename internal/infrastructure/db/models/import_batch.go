package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportBatch struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	Entity           string         `gorm:"size:20;not null"`
	UploadedBy       int64          `gorm:"not null"`
	BranchID         int64          `gorm:"not null"`
	OriginalFilename string         `gorm:"size:255;not null"`
	StoredFilename   string         `gorm:"size:255;not null"`
	FileSize         int64          `gorm:"not null;default:0"`
	FileKind         string         `gorm:"size:10;not null"`
	Context          datatypes.JSON `gorm:"type:jsonb;not null"`
	Status           string         `gorm:"size:20;not null"`
	TotalRows        int64          `gorm:"not null;default:0"`
	ValidRows        int64          `gorm:"not null;default:0"`
	InvalidRows      int64          `gorm:"not null;default:0"`
	ImportedRows     int64          `gorm:"not null;default:0"`
	ErrorMessage     *string        `gorm:"type:text"`
	UploadedAt       time.Time      `gorm:"not null"`
	ValidatedAt      *time.Time
	ImportStartedAt  *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	UpdatedAt        time.Time
}

func (ImportBatch) TableName() string {
	return "import_batches"
}
