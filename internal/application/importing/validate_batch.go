package importing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type ValidateBatchInput struct {
	Entity  domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
	BatchID string            `json:"batch_id" validate:"required"`
}

type ValidateBatchOutput struct {
	BatchID  string             `json:"batch_id"`
	Status   domain.BatchStatus `json:"status"`
	Total    int64              `json:"total_rows"`
	Valid    int64              `json:"valid_rows"`
	Invalid  int64              `json:"invalid_rows"`
	Imported int64              `json:"imported_rows"`
	Unmapped []string           `json:"unmapped_columns,omitempty"`
}

type ValidateBatch interface {
	Execute(ctx context.Context, in ValidateBatchInput) (ValidateBatchOutput, error)
}

type ValidateConfig struct {
	ParseTimeout time.Duration
}

type validateBatch struct {
	batches   domain.BatchRepository
	staging   domain.StagingStore
	storage   domain.FileStorage
	decoder   domain.TabularDecoder
	validator *Validator
	locker    domain.BatchLocker
	logger    *logging.Logger
	cfg       ValidateConfig
}

func NewValidateBatch(
	batches domain.BatchRepository,
	staging domain.StagingStore,
	storage domain.FileStorage,
	decoder domain.TabularDecoder,
	validator *Validator,
	locker domain.BatchLocker,
	logger *logging.Logger,
	cfg ValidateConfig,
) ValidateBatch {
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 60 * time.Second
	}
	return &validateBatch{
		batches:   batches,
		staging:   staging,
		storage:   storage,
		decoder:   decoder,
		validator: validator,
		locker:    locker,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *validateBatch) Execute(ctx context.Context, in ValidateBatchInput) (ValidateBatchOutput, error) {
	if err := validateInput(in); err != nil {
		return ValidateBatchOutput{}, err
	}

	unlock, err := uc.locker.Lock(ctx, in.BatchID)
	if err != nil {
		return ValidateBatchOutput{}, fmt.Errorf("lock batch %s: %w", in.BatchID, err)
	}
	defer unlock()

	batch, err := loadActiveBatch(ctx, uc.batches, in.Entity, in.BatchID)
	if err != nil {
		return ValidateBatchOutput{}, err
	}
	logger := uc.logger.WithBatch(batch.ID, batch.Entity.String())

	if err := batch.Transition(domain.BatchValidating, time.Now().UTC()); err != nil {
		return ValidateBatchOutput{}, err
	}
	if err := uc.batches.Save(ctx, &batch); err != nil {
		return ValidateBatchOutput{}, fmt.Errorf("save batch: %w", err)
	}

	counts, err := uc.staging.Counts(ctx, batch.Entity, batch.ID)
	if err != nil {
		return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("count staging rows: %w", err))
	}

	var unmapped []string
	if counts.Total == 0 {
		unmapped, err = uc.stage(ctx, batch, logger)
		if err != nil {
			logger.WithError(err).Warn("staging failed")
			return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, err)
		}
	}

	rows, err := uc.staging.List(ctx, batch.Entity, batch.ID, domain.RowQuery{})
	if err != nil {
		return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("list staging rows: %w", err))
	}
	if err := uc.validator.Validate(ctx, batch, rows); err != nil {
		return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("validate rows: %w", err))
	}

	evaluated := make([]domain.StagingRow, 0, len(rows))
	for _, row := range rows {
		if !row.Imported {
			evaluated = append(evaluated, row)
		}
	}
	if err := uc.staging.SaveValidation(ctx, batch.Entity, evaluated); err != nil {
		return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("save validation: %w", err))
	}

	counts, err = uc.staging.Counts(ctx, batch.Entity, batch.ID)
	if err != nil {
		return ValidateBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("count staging rows: %w", err))
	}
	batch.ApplyCounts(counts)
	if err := batch.Transition(domain.BatchValidated, time.Now().UTC()); err != nil {
		return ValidateBatchOutput{}, err
	}
	if err := uc.batches.Save(ctx, &batch); err != nil {
		return ValidateBatchOutput{}, fmt.Errorf("save batch: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"total":   counts.Total,
		"valid":   counts.Valid,
		"invalid": counts.Invalid,
	}).Info("import batch validated")

	return ValidateBatchOutput{
		BatchID:  batch.ID,
		Status:   batch.Status,
		Total:    counts.Total,
		Valid:    counts.Valid,
		Invalid:  counts.Invalid,
		Imported: counts.Imported,
		Unmapped: unmapped,
	}, nil
}

// stage decodes the stored upload and bulk-inserts its normalised rows. It
// returns the labels of columns that did not map to any field.
func (uc *validateBatch) stage(ctx context.Context, batch domain.Batch, logger *logging.Logger) ([]string, error) {
	path, err := uc.storage.Path(ctx, batch.StorageKey())
	if err != nil {
		return nil, err
	}

	parseCtx, cancel := context.WithTimeout(ctx, uc.cfg.ParseTimeout)
	defer cancel()

	table, err := uc.decoder.Decode(parseCtx, path, batch.FileKind)
	if err != nil {
		return nil, err
	}

	schema := domain.SchemaFor(batch.Entity)
	columns := schema.MapColumns(table.Headers)
	if !domain.HasMappedColumn(columns) {
		return nil, domain.NewError(domain.ErrNoHeaders,
			"none of the column headers match a %s field; download the template to see the expected headers", batch.Entity)
	}

	var unmapped []string
	for _, column := range columns {
		if !column.Mapped() {
			unmapped = append(unmapped, column.Label())
		}
	}

	rows := make([]domain.StagingRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row, ok := schema.NormalizeRow(columns, raw)
		if !ok {
			continue
		}
		row.BatchID = batch.ID
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, domain.NewError(domain.ErrNoDataRows, "the file has no rows with data in recognised columns")
	}

	if err := uc.staging.Insert(ctx, batch.Entity, batch.ID, rows); err != nil {
		return nil, fmt.Errorf("insert staging rows: %w", err)
	}
	logger.WithFields(logrus.Fields{"rows": len(rows), "unmapped_columns": len(unmapped)}).Info("rows staged")
	return unmapped, nil
}
