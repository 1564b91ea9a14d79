package importing

import (
	"context"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

type CancelBatchInput struct {
	Entity  domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
	BatchID string            `json:"batch_id" validate:"required"`
}

type CancelBatchOutput struct {
	BatchID string             `json:"batch_id"`
	Status  domain.BatchStatus `json:"status"`
}

type CancelBatch interface {
	Execute(ctx context.Context, in CancelBatchInput) (CancelBatchOutput, error)
}

type cancelBatch struct {
	batches domain.BatchRepository
	staging domain.StagingStore
	storage domain.FileStorage
	locker  domain.BatchLocker
	logger  *logging.Logger
}

func NewCancelBatch(
	batches domain.BatchRepository,
	staging domain.StagingStore,
	storage domain.FileStorage,
	locker domain.BatchLocker,
	logger *logging.Logger,
) CancelBatch {
	return &cancelBatch{batches: batches, staging: staging, storage: storage, locker: locker, logger: logger}
}

// Execute removes the staged rows and the stored upload, then marks the
// batch cancelled. The batch record stays for history.
func (uc *cancelBatch) Execute(ctx context.Context, in CancelBatchInput) (CancelBatchOutput, error) {
	if err := validateInput(in); err != nil {
		return CancelBatchOutput{}, err
	}

	unlock, err := uc.locker.Lock(ctx, in.BatchID)
	if err != nil {
		return CancelBatchOutput{}, fmt.Errorf("lock batch %s: %w", in.BatchID, err)
	}
	defer unlock()

	batch, err := loadActiveBatch(ctx, uc.batches, in.Entity, in.BatchID)
	if err != nil {
		return CancelBatchOutput{}, err
	}
	if !batch.Status.CanTransitionTo(domain.BatchCancelled) {
		return CancelBatchOutput{}, domain.NewError(domain.ErrStateConflict, "a %s batch cannot be cancelled", batch.Status)
	}

	if err := uc.staging.Delete(ctx, batch.Entity, batch.ID); err != nil {
		return CancelBatchOutput{}, fmt.Errorf("delete staging rows: %w", err)
	}
	if err := uc.storage.Delete(ctx, batch.StorageKey()); err != nil {
		return CancelBatchOutput{}, fmt.Errorf("delete stored upload: %w", err)
	}

	if err := batch.Transition(domain.BatchCancelled, time.Now().UTC()); err != nil {
		return CancelBatchOutput{}, err
	}
	if err := uc.batches.Save(ctx, &batch); err != nil {
		return CancelBatchOutput{}, fmt.Errorf("save batch: %w", err)
	}

	uc.logger.WithBatch(batch.ID, batch.Entity.String()).Info("import batch cancelled")
	return CancelBatchOutput{BatchID: batch.ID, Status: batch.Status}, nil
}
