package importing_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadpnp/school-import/internal/application/importing"
	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/file"
	"github.com/mohammadpnp/school-import/internal/infrastructure/tabular"
	"github.com/mohammadpnp/school-import/internal/logging"
)

const (
	mainBranchID int64 = 1
	eastBranchID int64 = 2
	adminID      int64 = 7
)

type pipeline struct {
	storageDir string
	batches    *memBatches
	staging    *memStaging
	production *memProduction
	refs       *memRefs

	upload   importing.UploadBatch
	validate importing.ValidateBatch
	preview  importing.PreviewBatch
	commit   importing.CommitBatch
	cancel   importing.CancelBatch
	history  importing.ListHistory
	modules  importing.ListModules
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir)
	require.NoError(t, err)

	p := &pipeline{
		storageDir: dir,
		batches:    newMemBatches(),
		staging:    newMemStaging(),
		refs: &memRefs{
			branches: map[int64]domain.Branch{
				mainBranchID: {ID: mainBranchID, Code: "MAIN"},
				eastBranchID: {ID: eastBranchID, Code: "EAST"},
			},
			grades: map[int64]map[string]bool{
				mainBranchID: {"6": true, "7": true},
				eastBranchID: {"6": true},
			},
		},
	}
	p.production = newMemProduction(p.staging)

	logger := logging.Discard()
	decoder := tabular.NewDecoder(tabular.Options{Strict: true})
	locker := importing.NewKeyedMutex()
	validator := importing.NewValidator(p.refs, p.production)
	engine := importing.NewCommitEngine(p.production, plainHasher{}, logger)

	p.upload = importing.NewUploadBatch(p.batches, p.refs, storage, decoder, logger, importing.UploadConfig{MaxUploadBytes: 1 << 20})
	p.validate = importing.NewValidateBatch(p.batches, p.staging, storage, decoder, validator, locker, logger, importing.ValidateConfig{})
	p.preview = importing.NewPreviewBatch(p.batches, p.staging)
	p.commit = importing.NewCommitBatch(p.batches, p.staging, storage, p.refs, engine, locker, logger)
	p.cancel = importing.NewCancelBatch(p.batches, p.staging, storage, locker, logger)
	p.history = importing.NewListHistory(p.batches)
	p.modules = importing.NewListModules(p.batches, p.production)
	return p
}

func (p *pipeline) uploadCSV(t *testing.T, entity domain.EntityType, content string, grade *string) string {
	t.Helper()
	out, err := p.upload.Execute(context.Background(), importing.UploadBatchInput{
		Entity:     entity,
		UploadedBy: adminID,
		BranchID:   mainBranchID,
		Filename:   "roster.csv",
		Content:    strings.NewReader(content),
		Grade:      grade,
	})
	require.NoError(t, err)
	require.Equal(t, domain.BatchUploaded, out.Status)
	return out.BatchID
}

func (p *pipeline) rows(t *testing.T, batchID string) []domain.StagingRow {
	t.Helper()
	rows, err := p.staging.List(context.Background(), domain.EntityStudent, batchID, domain.RowQuery{})
	require.NoError(t, err)
	return rows
}

func strptr(s string) *string { return &s }

func boolptr(b bool) *bool { return &b }

const mixedStudents = "admission_number,first_name,last_name,date_of_birth,email\n" +
	"ADM-1,Amina,Rahman,2012-04-17,amina@example.com\n" +
	"ADM-2,Omar,,2011-02-01,\n" +
	"ADM-1,Sara,Khan,2012-05-05,\n"

func TestStudentBatchValidatesAndCommitsValidRows(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))

	validated, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchValidated, validated.Status)
	assert.EqualValues(t, 3, validated.Total)
	assert.EqualValues(t, 1, validated.Valid)
	assert.EqualValues(t, 2, validated.Invalid)

	rows := p.rows(t, batchID)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.RowValid, rows[0].Status)
	assert.Contains(t, rows[1].Errors, "last_name is required")
	assert.Contains(t, rows[2].Errors, "admission_number ADM-1 is a duplicate within batch (rows 2, 4)")

	committed, err := p.commit.Execute(ctx, importing.CommitBatchInput{
		Entity:      domain.EntityStudent,
		BatchID:     batchID,
		CommittedBy: adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, committed.Status)
	assert.Equal(t, 3, committed.Attempted)
	assert.Equal(t, 1, committed.Imported)
	assert.Equal(t, 2, committed.Failed)

	require.Len(t, p.production.students, 1)
	for _, acc := range p.production.accounts {
		assert.Equal(t, "ADM-1", acc.Username)
		assert.Equal(t, "hashed:17042012", acc.PasswordHash)
		assert.True(t, acc.MustChangePassword)
		assert.NotZero(t, acc.ProfileID)
	}
	for _, student := range p.production.students {
		assert.Equal(t, "6", student.Grade)
		assert.Equal(t, batchID, student.ImportBatchID)
	}

	batch, err := p.batches.Get(ctx, batchID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, batch.ImportedRows)
	assert.NotNil(t, batch.CompletedAt)

	entries, err := os.ReadDir(p.storageDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "stored upload is removed after a completed commit")
}

func TestCommitNeverImportsARowTwice(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))

	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.NoError(t, err)

	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.ErrorIs(t, err, domain.ErrCommitConflict)
	assert.Len(t, p.production.students, 1)
}

func TestValidationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))

	first, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	firstRows := p.rows(t, batchID)

	second, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	secondRows := p.rows(t, batchID)

	assert.Equal(t, first, second)
	require.Len(t, secondRows, len(firstRows))
	for i := range firstRows {
		assert.Equal(t, firstRows[i].ID, secondRows[i].ID, "rows are staged once")
		assert.Equal(t, firstRows[i].Status, secondRows[i].Status)
		assert.Equal(t, firstRows[i].Errors, secondRows[i].Errors)
	}
}

func TestValidationSeparatesProductionAndBatchDuplicates(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.production.seedStudent(mainBranchID, "ADM-9", "taken@example.com")
	p.production.seedStudent(eastBranchID, "ADM-5", "east@example.com")

	csv := "admission_number,first_name,last_name,date_of_birth,email,branch_code\n" +
		"ADM-9,Lina,Haddad,2012-01-01,,\n" +
		"ADM-5,Yusuf,Ali,2012-01-02,,\n" +
		"ADM-5,Hana,Saleh,2012-01-03,,EAST\n" +
		"ADM-6,Rami,Nasser,2012-01-04,TAKEN@example.com,\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, strptr("6"))

	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	rows := p.rows(t, batchID)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"admission_number ADM-9 already exists"}, rows[0].Errors)
	assert.Equal(t, []string{"username ADM-5 already exists"}, rows[1].Errors, "the login name is taken in another branch")
	assert.Equal(t, []string{
		"admission_number ADM-5 already exists",
		"username ADM-5 is a duplicate within batch (rows 3, 4)",
	}, rows[2].Errors)
	assert.Equal(t, []string{"email taken@example.com already exists"}, rows[3].Errors)
}

func TestValidationRejectsUsernameSharedAcrossBranches(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	csv := "admission_number,first_name,last_name,date_of_birth,branch_code\n" +
		"ADM-9,Lina,Haddad,2012-01-01,MAIN\n" +
		"ADM-9,Yusuf,Ali,2012-01-02,EAST\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, strptr("6"))

	validated, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, validated.Valid)
	assert.EqualValues(t, 1, validated.Invalid)

	rows := p.rows(t, batchID)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.RowValid, rows[0].Status)
	assert.Equal(t, []string{"username ADM-9 is a duplicate within batch (rows 2, 3)"}, rows[1].Errors)

	committed, err := p.commit.Execute(ctx, importing.CommitBatchInput{
		Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID, SkipInvalid: boolptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, committed.Status)
	assert.EqualValues(t, 1, committed.Imported)
	assert.Empty(t, committed.Failures)
}

func TestValidationBoundsTextToColumnLengths(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	csv := "admission_number,first_name,last_name,date_of_birth,blood_group\n" +
		"ADM-1," + strings.Repeat("é", 120) + ",Rahman,2012-01-01,B+\n" +
		"ADM-2,Omar,Aziz,2012-01-02,AB positive\n" +
		strings.Repeat("9", 101) + ",Sara,Khan,2012-01-03,O-\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, strptr("6"))

	out, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Valid)

	rows := p.rows(t, batchID)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.RowValid, rows[0].Status, "length counts characters, not bytes")
	assert.Equal(t, []string{"blood_group must be at most 10 characters"}, rows[1].Errors)
	assert.Equal(t, []string{"admission_number must be at most 100 characters"}, rows[2].Errors)
}

func TestValidationChecksGradeAndCapacity(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	capacity := int64(2)
	p.refs.branches[mainBranchID] = domain.Branch{ID: mainBranchID, Code: "MAIN", Capacity: &capacity}
	p.production.seedStudent(mainBranchID, "OLD-1", "old@example.com")

	csv := "admission_number,first_name,last_name,date_of_birth,grade\n" +
		"ADM-1,Amina,Rahman,2012-04-17,9\n" +
		"ADM-2,Omar,Aziz,2011-02-01,6\n" +
		"ADM-3,Sara,Khan,2012-05-05,7\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, nil)

	out, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Valid)

	rows := p.rows(t, batchID)
	assert.Equal(t, []string{`grade "9" does not exist for branch MAIN`}, rows[0].Errors)
	assert.Equal(t, domain.RowValid, rows[1].Status)
	assert.Equal(t, []string{"branch MAIN is at capacity (2 students)"}, rows[2].Errors)
}

func TestStrictCommitAbortsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{
		Entity:      domain.EntityStudent,
		BatchID:     batchID,
		CommittedBy: adminID,
		SkipInvalid: boolptr(false),
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	var pipelineErr *domain.Error
	require.ErrorAs(t, err, &pipelineErr)
	assert.Len(t, pipelineErr.Rows, 2)
	assert.Empty(t, p.production.students)
	assert.Empty(t, p.production.accounts)

	batch, err := p.batches.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchValidated, batch.Status)
}

func TestStrictCommitRollsBackEveryRowOnFailure(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	csv := "admission_number,first_name,last_name,date_of_birth\n" +
		"ADM-1,Amina,Rahman,2012-04-17\n" +
		"ADM-2,Omar,Aziz,2011-02-01\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	p.production.failStudent["ADM-2"] = true
	out, err := p.commit.Execute(ctx, importing.CommitBatchInput{
		Entity:      domain.EntityStudent,
		BatchID:     batchID,
		CommittedBy: adminID,
		SkipInvalid: boolptr(false),
	})
	require.ErrorIs(t, err, domain.ErrPartialCommitFailure)
	assert.Equal(t, 0, out.Imported)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, domain.BatchFailed, out.Status)
	assert.Empty(t, p.production.students)
	assert.Empty(t, p.production.accounts)
	for _, row := range p.rows(t, batchID) {
		assert.False(t, row.Imported)
	}
}

func TestPartialCommitFailsBatchAndCanBeResumed(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	csv := "admission_number,first_name,last_name,date_of_birth\n" +
		"ADM-1,Amina,Rahman,2012-04-17\n" +
		"ADM-2,Omar,Aziz,2011-02-01\n"
	batchID := p.uploadCSV(t, domain.EntityStudent, csv, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	p.production.failStudent["ADM-2"] = true
	out, err := p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.ErrorIs(t, err, domain.ErrPartialCommitFailure)
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, 3, out.Failures[0].RowNumber)
	assert.Equal(t, "internal error while importing the row", out.Failures[0].Reason)
	assert.Len(t, p.production.accounts, 1, "the failed row's account is rolled back")

	batch, err := p.batches.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchFailed, batch.Status)
	require.NotNil(t, batch.ErrorMessage)
	assert.Contains(t, *batch.ErrorMessage, "1 of 2 rows were imported")

	delete(p.production.failStudent, "ADM-2")
	revalidated, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, revalidated.Imported)
	assert.EqualValues(t, 2, revalidated.Valid, "imported rows keep their valid status")

	out, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempted)
	assert.Equal(t, 1, out.Imported)
	assert.Len(t, p.production.students, 2)
}

func TestCancelRemovesStagedDataAndHidesBatch(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	out, err := p.cancel.Execute(ctx, importing.CancelBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCancelled, out.Status)

	assert.Empty(t, p.rows(t, batchID))
	_, err = os.Stat(filepath.Join(p.storageDir, batchID+".csv"))
	assert.True(t, os.IsNotExist(err))

	_, err = p.preview.Execute(ctx, importing.PreviewBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.ErrorIs(t, err, domain.ErrBatchNotFound)
	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.ErrorIs(t, err, domain.ErrBatchNotFound)

	hist, err := p.history.Execute(ctx, importing.ListHistoryInput{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, batchID, hist.Items[0].ID)
}

func TestCancelCompletedBatchIsAConflict(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.NoError(t, err)

	_, err = p.cancel.Execute(ctx, importing.CancelBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestCommitRequiresValidation(t *testing.T) {
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))

	_, err := p.commit.Execute(context.Background(), importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.ErrorIs(t, err, domain.ErrCommitConflict)
}

func TestBatchOfAnotherEntityIsNotFound(t *testing.T) {
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))

	_, err := p.validate.Execute(context.Background(), importing.ValidateBatchInput{Entity: domain.EntityTeacher, BatchID: batchID})
	require.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestPreviewFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)

	out, err := p.preview.Execute(ctx, importing.PreviewBatchInput{
		Entity:  domain.EntityStudent,
		BatchID: batchID,
		Status:  "invalid",
		Page:    1,
		PerPage: 1,
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 3, out.Rows[0].RowNumber)
	assert.EqualValues(t, 2, out.Pagination.Total)
	assert.Equal(t, 2, out.Pagination.TotalPages)
	assert.EqualValues(t, 1, out.Counts.Valid)
	assert.EqualValues(t, 2, out.Counts.Invalid)
	require.NotNil(t, out.Rows[0].Student)
	assert.Equal(t, "Omar", *out.Rows[0].Student.FirstName)
}

func TestTeacherBatchValidation(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.production.seedTeacher("EMP-1", "old@example.com")

	csv := "employee_id,first_name,last_name,email,experience_years,branch_code\n" +
		"EMP-1,Nadia,Karim,nadia@example.com,4,\n" +
		"EMP-2,Tariq,Hamdan,tariq@example.com,-3,\n" +
		"EMP-3,Laila,Farouk,laila@example.com,2,NORTH\n" +
		"EMP-4,Samir,Jaber,samir@example.com,10,EAST\n"
	batchID := p.uploadCSV(t, domain.EntityTeacher, csv, nil)

	out, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityTeacher, BatchID: batchID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Valid)
	assert.EqualValues(t, 3, out.Invalid)

	rows, err := p.staging.List(ctx, domain.EntityTeacher, batchID, domain.RowQuery{})
	require.NoError(t, err)
	assert.Contains(t, rows[0].Errors, "employee_id EMP-1 already exists")
	assert.NotEmpty(t, rows[1].Errors)
	assert.Contains(t, rows[2].Errors, `branch_code "NORTH" does not exist`)
	assert.Equal(t, domain.RowValid, rows[3].Status)

	committed, err := p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityTeacher, BatchID: batchID, CommittedBy: adminID})
	require.NoError(t, err)
	assert.Equal(t, 1, committed.Imported)

	var created domain.NewTeacher
	for _, teacher := range p.production.teachers {
		if teacher.EmployeeID == "EMP-4" {
			created = teacher
		}
	}
	assert.Equal(t, eastBranchID, created.BranchID)
	assert.Equal(t, "EMP-4", created.EmployeeID)
}

func TestUploadRejectsRenamedWorkbook(t *testing.T) {
	p := newPipeline(t)
	workbook, err := tabular.NewTemplateWriter().Template(context.Background(), domain.SchemaFor(domain.EntityStudent))
	require.NoError(t, err)

	_, err = p.upload.Execute(context.Background(), importing.UploadBatchInput{
		Entity:     domain.EntityStudent,
		UploadedBy: adminID,
		BranchID:   mainBranchID,
		Filename:   "students.csv",
		Content:    strings.NewReader(string(workbook)),
	})
	require.ErrorIs(t, err, domain.ErrFileTypeMismatch)

	entries, err := os.ReadDir(p.storageDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, p.batches.batches)
}

func TestUploadRejectsBadInput(t *testing.T) {
	p := newPipeline(t)
	tests := []struct {
		name string
		in   importing.UploadBatchInput
		kind error
	}{
		{
			name: "unknown branch",
			in:   importing.UploadBatchInput{Entity: domain.EntityStudent, UploadedBy: adminID, BranchID: 99, Filename: "a.csv", Content: strings.NewReader("a\n1\n")},
			kind: domain.ErrValidationFailed,
		},
		{
			name: "unsupported extension",
			in:   importing.UploadBatchInput{Entity: domain.EntityStudent, UploadedBy: adminID, BranchID: mainBranchID, Filename: "a.pdf", Content: strings.NewReader("a\n1\n")},
			kind: domain.ErrValidationFailed,
		},
		{
			name: "missing uploader",
			in:   importing.UploadBatchInput{Entity: domain.EntityStudent, BranchID: mainBranchID, Filename: "a.csv", Content: strings.NewReader("a\n1\n")},
			kind: domain.ErrValidationFailed,
		},
		{
			name: "empty file",
			in:   importing.UploadBatchInput{Entity: domain.EntityStudent, UploadedBy: adminID, BranchID: mainBranchID, Filename: "a.csv", Content: strings.NewReader("")},
			kind: domain.ErrEmptyFile,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.upload.Execute(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.kind)
		})
	}
	assert.Empty(t, p.batches.batches)
}

func TestValidateFailsBatchWithoutMappedColumns(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, "colour,shape\nred,round\n", nil)

	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.ErrorIs(t, err, domain.ErrNoHeaders)

	batch, err := p.batches.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchFailed, batch.Status)
	require.NotNil(t, batch.ErrorMessage)
}

func TestListModulesReportsCountsAndLastImport(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	batchID := p.uploadCSV(t, domain.EntityStudent, mixedStudents, strptr("6"))
	_, err := p.validate.Execute(ctx, importing.ValidateBatchInput{Entity: domain.EntityStudent, BatchID: batchID})
	require.NoError(t, err)
	_, err = p.commit.Execute(ctx, importing.CommitBatchInput{Entity: domain.EntityStudent, BatchID: batchID, CommittedBy: adminID})
	require.NoError(t, err)

	out, err := p.modules.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, out.Modules, 2)

	students := out.Modules[0]
	assert.Equal(t, domain.EntityStudent, students.Entity)
	assert.EqualValues(t, 1, students.RecordCount)
	assert.NotNil(t, students.LastImportedAt)
	assert.Contains(t, students.Required, "admission_number")

	teachers := out.Modules[1]
	assert.Equal(t, domain.EntityTeacher, teachers.Entity)
	assert.Nil(t, teachers.LastImportedAt)
	assert.Contains(t, teachers.Columns, "employee_id")
}

func TestListHistoryFiltersByEntity(t *testing.T) {
	p := newPipeline(t)
	p.uploadCSV(t, domain.EntityStudent, mixedStudents, nil)
	p.uploadCSV(t, domain.EntityTeacher, "employee_id\nEMP-1\n", nil)

	out, err := p.history.Execute(context.Background(), importing.ListHistoryInput{Entity: "teachers"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, domain.EntityTeacher, out.Items[0].Entity)
	assert.EqualValues(t, 1, out.Pagination.Total)

	_, err = p.history.Execute(context.Background(), importing.ListHistoryInput{Status: "archived"})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}
