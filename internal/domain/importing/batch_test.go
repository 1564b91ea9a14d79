package importing_test

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

func TestBatchLifecycleHappyPath(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	batch := domain.Batch{ID: "b-1", Status: domain.BatchUploaded}

	for _, next := range []domain.BatchStatus{
		domain.BatchValidating,
		domain.BatchValidated,
		domain.BatchValidating,
		domain.BatchValidated,
		domain.BatchImporting,
		domain.BatchCompleted,
	} {
		require.NoError(t, batch.Transition(next, now))
	}
	assert.True(t, batch.Status.IsTerminal())
	require.NotNil(t, batch.CompletedAt)
	require.NotNil(t, batch.ImportStartedAt)
}

func TestBatchTerminalStatesRejectMutation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, status := range []domain.BatchStatus{domain.BatchCompleted, domain.BatchCancelled} {
		batch := domain.Batch{ID: "b-2", Status: status}
		for _, next := range []domain.BatchStatus{domain.BatchValidating, domain.BatchImporting, domain.BatchCancelled, domain.BatchFailed} {
			err := batch.Transition(next, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrStateConflict))
		}
	}
}

func TestBatchCommitRequiresValidated(t *testing.T) {
	t.Parallel()

	batch := domain.Batch{ID: "b-3", Status: domain.BatchUploaded}
	assert.Error(t, batch.Transition(domain.BatchImporting, time.Now()))
}

func TestBatchFailRecordsTruncatedReason(t *testing.T) {
	t.Parallel()

	batch := domain.Batch{ID: "b-4", Status: domain.BatchValidating}
	require.NoError(t, batch.Fail(strings.Repeat("x", 1500), time.Now()))
	assert.Equal(t, domain.BatchFailed, batch.Status)
	require.NotNil(t, batch.ErrorMessage)
	assert.Len(t, *batch.ErrorMessage, 1000)

	require.NoError(t, batch.Transition(domain.BatchValidating, time.Now()))
	assert.Nil(t, batch.ErrorMessage)
}

func TestTruncateReasonKeepsWholeCharacters(t *testing.T) {
	t.Parallel()

	reason := strings.Repeat("x", 999) + strings.Repeat("é", 10)
	got := domain.TruncateReason(reason)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", 999), got)

	assert.Equal(t, "short é", domain.TruncateReason("short é"))
	assert.Len(t, domain.TruncateReason(strings.Repeat("ü", 600)), 1000)
}

func TestStagingRowValidationInvariant(t *testing.T) {
	t.Parallel()

	row := domain.StagingRow{Status: domain.RowPending}
	row.ApplyValidation([]string{"first_name is required"})
	assert.Equal(t, domain.RowInvalid, row.Status)
	assert.False(t, row.Eligible())

	row.ApplyValidation(nil)
	assert.Equal(t, domain.RowValid, row.Status)
	assert.Empty(t, row.Errors)
	assert.True(t, row.Eligible())

	row.MarkImported(42)
	assert.False(t, row.Eligible())
	assert.Equal(t, int64(42), *row.ProductionID)
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("zip: not a valid zip file")
	err := domain.NewError(domain.ErrParseFailure, "could not read workbook").WithCause(cause)

	assert.True(t, errors.Is(err, domain.ErrParseFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, domain.ErrParseFailure, domain.KindOf(err))
	assert.Equal(t, "could not read workbook", domain.PublicMessage(err))

	assert.Equal(t, domain.ErrUnexpected, domain.KindOf(errors.New("boom")))
	assert.Equal(t, "internal server error", domain.PublicMessage(errors.New("boom")))
	assert.Equal(t, "import batch not found", domain.PublicMessage(domain.ErrBatchNotFound))
}
