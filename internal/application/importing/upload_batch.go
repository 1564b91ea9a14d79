package importing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type UploadBatchInput struct {
	Entity       domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
	UploadedBy   int64             `json:"uploaded_by" validate:"required,gt=0"`
	BranchID     int64             `json:"branch_id" validate:"required,gt=0"`
	Filename     string            `json:"file" validate:"required,max=255"`
	Content      io.Reader         `json:"-" validate:"required"`
	Grade        *string           `json:"grade" validate:"omitempty,max=50"`
	Section      *string           `json:"section" validate:"omitempty,max=50"`
	AcademicYear *string           `json:"academic_year" validate:"omitempty,max=20"`
	Department   *string           `json:"department" validate:"omitempty,max=100"`
}

type UploadBatchOutput struct {
	BatchID          string             `json:"batch_id"`
	Entity           domain.EntityType  `json:"entity"`
	Status           domain.BatchStatus `json:"status"`
	OriginalFilename string             `json:"original_filename"`
	StoredFilename   string             `json:"stored_filename"`
	FileSize         int64              `json:"file_size"`
	FileKind         domain.FileKind    `json:"file_kind"`
}

type UploadBatch interface {
	Execute(ctx context.Context, in UploadBatchInput) (UploadBatchOutput, error)
}

type UploadConfig struct {
	MaxUploadBytes int64
}

type uploadBatch struct {
	batches  domain.BatchRepository
	refs     domain.ReferenceDirectory
	storage  domain.FileStorage
	decoder  domain.TabularDecoder
	logger   *logging.Logger
	cfg      UploadConfig
	newToken func() string
}

func NewUploadBatch(
	batches domain.BatchRepository,
	refs domain.ReferenceDirectory,
	storage domain.FileStorage,
	decoder domain.TabularDecoder,
	logger *logging.Logger,
	cfg UploadConfig,
) UploadBatch {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &uploadBatch{
		batches:  batches,
		refs:     refs,
		storage:  storage,
		decoder:  decoder,
		logger:   logger,
		cfg:      cfg,
		newToken: uuid.NewString,
	}
}

func (uc *uploadBatch) Execute(ctx context.Context, in UploadBatchInput) (UploadBatchOutput, error) {
	if err := validateInput(in); err != nil {
		return UploadBatchOutput{}, err
	}

	declared, ok := domain.FileKindFromFilename(in.Filename)
	if !ok {
		return UploadBatchOutput{}, domain.NewError(domain.ErrValidationFailed, "unsupported file type").
			WithFields(domain.FieldError{Field: "file", Message: "must be a .csv, .xlsx or .xls file"})
	}

	branch, found, err := uc.refs.BranchByID(ctx, in.BranchID)
	if err != nil {
		return UploadBatchOutput{}, fmt.Errorf("look up branch %d: %w", in.BranchID, err)
	}
	if !found {
		return UploadBatchOutput{}, domain.NewError(domain.ErrValidationFailed, "branch %d does not exist", in.BranchID).
			WithFields(domain.FieldError{Field: "branch_id", Message: "branch does not exist"})
	}

	batchID := uc.newToken()
	storedName := batchID + declared.Extension()
	logger := uc.logger.WithBatch(batchID, in.Entity.String())

	size, err := uc.storage.Save(ctx, storedName, io.LimitReader(in.Content, uc.cfg.MaxUploadBytes+1))
	if err != nil {
		return UploadBatchOutput{}, fmt.Errorf("store upload: %w", err)
	}
	kind, err := uc.inspect(ctx, storedName, declared, size)
	if err != nil {
		uc.discard(ctx, logger, storedName)
		return UploadBatchOutput{}, err
	}

	batch := domain.Batch{
		ID:               batchID,
		Entity:           in.Entity,
		UploadedBy:       in.UploadedBy,
		BranchID:         branch.ID,
		OriginalFilename: strings.TrimSpace(in.Filename),
		StoredFilename:   storedName,
		FileSize:         size,
		FileKind:         kind,
		Context:          importContext(in),
		Status:           domain.BatchUploaded,
		UploadedAt:       time.Now().UTC(),
	}
	if err := uc.batches.Create(ctx, &batch); err != nil {
		uc.discard(ctx, logger, storedName)
		return UploadBatchOutput{}, fmt.Errorf("create batch: %w", err)
	}

	logger.WithFields(logrus.Fields{"file_kind": kind, "file_size": size, "branch_id": branch.ID}).Info("import batch uploaded")

	return UploadBatchOutput{
		BatchID:          batch.ID,
		Entity:           batch.Entity,
		Status:           batch.Status,
		OriginalFilename: batch.OriginalFilename,
		StoredFilename:   batch.StoredFilename,
		FileSize:         batch.FileSize,
		FileKind:         batch.FileKind,
	}, nil
}

func (uc *uploadBatch) inspect(ctx context.Context, storedName string, declared domain.FileKind, size int64) (domain.FileKind, error) {
	if size == 0 {
		return "", domain.NewError(domain.ErrEmptyFile, "the uploaded file is empty")
	}
	if size > uc.cfg.MaxUploadBytes {
		return "", domain.NewError(domain.ErrValidationFailed, "the file is larger than %d bytes", uc.cfg.MaxUploadBytes).
			WithFields(domain.FieldError{Field: "file", Message: fmt.Sprintf("must be at most %d bytes", uc.cfg.MaxUploadBytes)})
	}

	path, err := uc.storage.Path(ctx, storedName)
	if err != nil {
		return "", err
	}
	kind, err := uc.decoder.Detect(ctx, path, declared)
	if err != nil {
		var kindErr *domain.Error
		if errors.As(err, &kindErr) {
			return "", err
		}
		return "", fmt.Errorf("detect file type: %w", err)
	}
	return kind, nil
}

func (uc *uploadBatch) discard(ctx context.Context, logger *logging.Logger, storedName string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), storedName); err != nil {
		logger.WithError(err).Warn("remove rejected upload")
	}
}

// importContext keeps only the context values that apply to the entity.
func importContext(in UploadBatchInput) domain.ImportContext {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	}

	if in.Entity == domain.EntityTeacher {
		return domain.ImportContext{Department: clean(in.Department)}
	}
	return domain.ImportContext{
		Grade:        clean(in.Grade),
		Section:      clean(in.Section),
		AcademicYear: clean(in.AcademicYear),
	}
}
