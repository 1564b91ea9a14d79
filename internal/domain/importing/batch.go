package importing

import (
	"time"
	"unicode/utf8"
)

type BatchStatus string

const (
	BatchUploaded   BatchStatus = "uploaded"
	BatchValidating BatchStatus = "validating"
	BatchValidated  BatchStatus = "validated"
	BatchImporting  BatchStatus = "importing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchUploaded:   {BatchValidating, BatchCancelled},
	BatchValidating: {BatchValidated, BatchFailed, BatchCancelled},
	BatchValidated:  {BatchValidating, BatchImporting, BatchCancelled},
	BatchImporting:  {BatchCompleted, BatchFailed, BatchCancelled},
	BatchFailed:     {BatchValidating, BatchCancelled},
}

func ParseBatchStatus(raw string) (BatchStatus, bool) {
	status := BatchStatus(raw)
	switch status {
	case BatchUploaded, BatchValidating, BatchValidated, BatchImporting, BatchCompleted, BatchFailed, BatchCancelled:
		return status, true
	}
	return "", false
}

func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the batch accepts no further mutation.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchCancelled
}

// ImportContext carries the values applied to every row of a batch when the
// row itself leaves them blank.
type ImportContext struct {
	Grade        *string `json:"grade,omitempty"`
	Section      *string `json:"section,omitempty"`
	AcademicYear *string `json:"academic_year,omitempty"`
	Department   *string `json:"department,omitempty"`
}

type Batch struct {
	ID               string
	Entity           EntityType
	UploadedBy       int64
	BranchID         int64
	OriginalFilename string
	StoredFilename   string
	FileSize         int64
	FileKind         FileKind
	Context          ImportContext
	Status           BatchStatus
	TotalRows        int64
	ValidRows        int64
	InvalidRows      int64
	ImportedRows     int64
	ErrorMessage     *string
	UploadedAt       time.Time
	ValidatedAt      *time.Time
	ImportStartedAt  *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// Transition moves the batch along the lifecycle and stamps the phase time.
func (b *Batch) Transition(next BatchStatus, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return NewError(ErrStateConflict, "batch %s cannot move from %s to %s", b.ID, b.Status, next)
	}

	b.Status = next
	switch next {
	case BatchValidating:
		b.ErrorMessage = nil
	case BatchValidated:
		b.ValidatedAt = &now
	case BatchImporting:
		b.ImportStartedAt = &now
		b.ErrorMessage = nil
	case BatchCompleted:
		b.CompletedAt = &now
	case BatchCancelled:
		b.CancelledAt = &now
	}
	return nil
}

// Fail moves the batch to failed and records the reason.
func (b *Batch) Fail(reason string, now time.Time) error {
	if err := b.Transition(BatchFailed, now); err != nil {
		return err
	}
	reason = TruncateReason(reason)
	b.ErrorMessage = &reason
	return nil
}

// ApplyCounts copies staging counts onto the batch record.
func (b *Batch) ApplyCounts(counts RowCounts) {
	b.TotalRows = counts.Total
	b.ValidRows = counts.Valid
	b.InvalidRows = counts.Invalid
	b.ImportedRows = counts.Imported
}

// StorageKey is the blob key of the raw upload.
func (b Batch) StorageKey() string {
	return b.StoredFilename
}

// TruncateReason caps reason at 1000 bytes without splitting a character.
func TruncateReason(reason string) string {
	const maxLen = 1000
	if len(reason) <= maxLen {
		return reason
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
