package importing

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type CommitBatchInput struct {
	Entity      domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
	BatchID     string            `json:"batch_id" validate:"required"`
	CommittedBy int64             `json:"committed_by" validate:"required,gt=0"`
	// SkipInvalid defaults to true when nil.
	SkipInvalid *bool `json:"skip_invalid"`
}

type CommitBatchOutput struct {
	BatchID   string              `json:"batch_id"`
	Status    domain.BatchStatus  `json:"status"`
	Attempted int                 `json:"attempted"`
	Imported  int                 `json:"imported"`
	Failed    int                 `json:"failed"`
	Failures  []domain.RowFailure `json:"failures,omitempty"`
}

type CommitBatch interface {
	// Execute returns the counts together with ErrPartialCommitFailure when
	// some rows could not be imported.
	Execute(ctx context.Context, in CommitBatchInput) (CommitBatchOutput, error)
}

type commitBatch struct {
	batches domain.BatchRepository
	staging domain.StagingStore
	storage domain.FileStorage
	refs    domain.ReferenceDirectory
	engine  *CommitEngine
	locker  domain.BatchLocker
	logger  *logging.Logger
}

func NewCommitBatch(
	batches domain.BatchRepository,
	staging domain.StagingStore,
	storage domain.FileStorage,
	refs domain.ReferenceDirectory,
	engine *CommitEngine,
	locker domain.BatchLocker,
	logger *logging.Logger,
) CommitBatch {
	return &commitBatch{
		batches: batches,
		staging: staging,
		storage: storage,
		refs:    refs,
		engine:  engine,
		locker:  locker,
		logger:  logger,
	}
}

func (uc *commitBatch) Execute(ctx context.Context, in CommitBatchInput) (CommitBatchOutput, error) {
	if err := validateInput(in); err != nil {
		return CommitBatchOutput{}, err
	}
	skipInvalid := in.SkipInvalid == nil || *in.SkipInvalid

	unlock, err := uc.locker.Lock(ctx, in.BatchID)
	if err != nil {
		return CommitBatchOutput{}, fmt.Errorf("lock batch %s: %w", in.BatchID, err)
	}
	defer unlock()

	batch, err := loadActiveBatch(ctx, uc.batches, in.Entity, in.BatchID)
	if err != nil {
		return CommitBatchOutput{}, err
	}
	if batch.Status != domain.BatchValidated {
		return CommitBatchOutput{}, domain.NewError(domain.ErrCommitConflict,
			"batch must be validated before commit (current status: %s)", batch.Status)
	}
	logger := uc.logger.WithBatch(batch.ID, batch.Entity.String())

	rows, err := uc.staging.List(ctx, batch.Entity, batch.ID, domain.RowQuery{})
	if err != nil {
		return CommitBatchOutput{}, fmt.Errorf("list staging rows: %w", err)
	}
	pending := lo.Filter(rows, func(row domain.StagingRow, _ int) bool { return !row.Imported })
	if len(pending) == 0 {
		return CommitBatchOutput{}, domain.NewError(domain.ErrCommitConflict, "every row of this batch is already imported")
	}

	if !skipInvalid {
		if rejected, count := ineligibleRows(pending); count > 0 {
			return CommitBatchOutput{}, domain.NewError(domain.ErrValidationFailed,
				"%d rows are not valid; fix them and re-validate, or commit with skip_invalid", count).
				WithRows(rejected...)
		}
	}

	branches, err := uc.branchesFor(ctx, pending)
	if err != nil {
		return CommitBatchOutput{}, err
	}

	if err := batch.Transition(domain.BatchImporting, time.Now().UTC()); err != nil {
		return CommitBatchOutput{}, err
	}
	if err := uc.batches.Save(ctx, &batch); err != nil {
		return CommitBatchOutput{}, fmt.Errorf("save batch: %w", err)
	}

	result, commitErr := uc.engine.Commit(ctx, CommitPlan{
		Batch:       batch,
		Rows:        pending,
		Branches:    branches,
		SkipInvalid: skipInvalid,
		CommittedBy: in.CommittedBy,
	})

	counts, err := uc.staging.Counts(context.WithoutCancel(ctx), batch.Entity, batch.ID)
	if err != nil {
		return CommitBatchOutput{}, failBatch(ctx, uc.batches, logger, &batch, fmt.Errorf("count staging rows: %w", err))
	}
	batch.ApplyCounts(counts)

	out := CommitBatchOutput{
		BatchID:   batch.ID,
		Attempted: result.Attempted,
		Imported:  result.Imported,
		Failed:    result.Failed,
		Failures:  result.Failures,
	}
	fields := logrus.Fields{"attempted": result.Attempted, "imported": result.Imported, "failed": result.Failed}

	if commitErr != nil || len(result.Failures) > 0 {
		summary := domain.NewError(domain.ErrPartialCommitFailure,
			"%d of %d rows were imported; %d failed", result.Imported, result.Attempted, result.Failed).
			WithRows(result.Failures...)
		if commitErr != nil {
			summary = summary.WithCause(commitErr)
		}
		_ = failBatch(ctx, uc.batches, logger, &batch, summary)
		logger.WithFields(fields).Warn("import batch commit incomplete")
		out.Status = batch.Status
		return out, summary
	}

	if err := batch.Transition(domain.BatchCompleted, time.Now().UTC()); err != nil {
		return CommitBatchOutput{}, err
	}
	if err := uc.batches.Save(context.WithoutCancel(ctx), &batch); err != nil {
		return CommitBatchOutput{}, fmt.Errorf("save batch: %w", err)
	}
	if err := uc.storage.Delete(context.WithoutCancel(ctx), batch.StorageKey()); err != nil {
		logger.WithError(err).Warn("remove stored upload")
	}

	logger.WithFields(fields).Info("import batch committed")
	out.Status = batch.Status
	return out, nil
}

func (uc *commitBatch) branchesFor(ctx context.Context, rows []domain.StagingRow) (map[string]domain.Branch, error) {
	codes := lo.Uniq(lo.FilterMap(rows, func(row domain.StagingRow, _ int) (string, bool) {
		code := textKey(rowBranchCode(row))
		return code, code != ""
	}))
	if len(codes) == 0 {
		return map[string]domain.Branch{}, nil
	}
	branches, err := uc.refs.BranchesByCode(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("look up branch codes: %w", err)
	}
	return branches, nil
}

func ineligibleRows(rows []domain.StagingRow) ([]domain.RowFailure, int) {
	var out []domain.RowFailure
	count := 0
	for _, row := range rows {
		if row.Eligible() {
			continue
		}
		count++
		reason := string(row.Status)
		if len(row.Errors) > 0 {
			reason = row.Errors[0]
		}
		if len(out) < maxStoredFailures {
			out = append(out, domain.RowFailure{RowNumber: row.RowNumber, Reason: reason})
		}
	}
	return out, count
}
