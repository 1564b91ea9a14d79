package importing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/logging"
)

// maxStoredFailures caps the row failures carried in one commit result.
const maxStoredFailures = 100

// CommitPlan is one commit call over the not-yet-imported rows of a batch.
type CommitPlan struct {
	Batch       domain.Batch
	Rows        []domain.StagingRow
	Branches    map[string]domain.Branch
	SkipInvalid bool
	CommittedBy int64
}

type CommitResult struct {
	Attempted int                 `json:"attempted"`
	Imported  int                 `json:"imported"`
	Failed    int                 `json:"failed"`
	Failures  []domain.RowFailure `json:"failures,omitempty"`
}

func (r *CommitResult) fail(rowNumber int, reason string) {
	r.Failed++
	if len(r.Failures) < maxStoredFailures {
		r.Failures = append(r.Failures, domain.RowFailure{RowNumber: rowNumber, Reason: domain.TruncateReason(reason)})
	}
}

// CommitEngine materialises staged rows as account + profile pairs.
type CommitEngine struct {
	store  domain.CommitStore
	hasher domain.PasswordHasher
	logger *logging.Logger
}

func NewCommitEngine(store domain.CommitStore, hasher domain.PasswordHasher, logger *logging.Logger) *CommitEngine {
	return &CommitEngine{store: store, hasher: hasher, logger: logger}
}

// Commit processes plan.Rows. With SkipInvalid every eligible row runs in its
// own transaction and ineligible rows count as failed. Without it all rows
// share one transaction and the first failure rolls everything back; the
// returned error is then non-nil. Imported rows are marked in place.
func (e *CommitEngine) Commit(ctx context.Context, plan CommitPlan) (CommitResult, error) {
	result := CommitResult{Attempted: len(plan.Rows)}
	logger := e.logger.WithBatch(plan.Batch.ID, plan.Batch.Entity.String())

	if !plan.SkipInvalid {
		return e.commitAll(ctx, plan, result, logger)
	}

	for i := range plan.Rows {
		row := &plan.Rows[i]
		if !row.Eligible() {
			result.Failed++
			continue
		}
		if err := ctx.Err(); err != nil {
			result.fail(row.RowNumber, "commit interrupted: "+err.Error())
			continue
		}

		var profileID int64
		err := e.store.Transact(ctx, func(tx domain.CommitTx) error {
			id, err := e.commitRow(ctx, tx, plan, *row)
			profileID = id
			return err
		})
		if err != nil {
			logger.WithError(err).WithField("row", row.RowNumber).Warn("row commit failed")
			result.fail(row.RowNumber, rowFailureReason(err))
			continue
		}
		row.MarkImported(profileID)
		result.Imported++
	}
	return result, nil
}

func (e *CommitEngine) commitAll(ctx context.Context, plan CommitPlan, result CommitResult, logger *logging.Logger) (CommitResult, error) {
	ids := make(map[int]int64, len(plan.Rows))
	var failedRow int
	err := e.store.Transact(ctx, func(tx domain.CommitTx) error {
		for _, row := range plan.Rows {
			if !row.Eligible() {
				failedRow = row.RowNumber
				return domain.NewError(domain.ErrValidationFailed, "row %d is %s", row.RowNumber, row.Status)
			}
			id, err := e.commitRow(ctx, tx, plan, row)
			if err != nil {
				failedRow = row.RowNumber
				return err
			}
			ids[row.RowNumber] = id
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).WithField("row", failedRow).Warn("commit rolled back")
		result.fail(failedRow, rowFailureReason(err))
		result.Failed = result.Attempted
		return result, err
	}

	for i := range plan.Rows {
		plan.Rows[i].MarkImported(ids[plan.Rows[i].RowNumber])
	}
	result.Imported = len(plan.Rows)
	return result, nil
}

// commitRow creates the account, then the profile, links them and marks the
// staging row. It returns the profile id.
func (e *CommitEngine) commitRow(ctx context.Context, tx domain.CommitTx, plan CommitPlan, row domain.StagingRow) (int64, error) {
	branch := plan.Branches[textKey(rowBranchCode(row))]
	if textKey(rowBranchCode(row)) == "" {
		branch = domain.Branch{ID: plan.Batch.BranchID}
	}
	if branch.ID == 0 {
		return 0, domain.NewError(domain.ErrCommitConflict, "%s %q no longer exists", domain.FieldBranchCode, textKey(rowBranchCode(row)))
	}

	account, password, err := e.accountFor(plan, row, branch.ID)
	if err != nil {
		return 0, err
	}
	account.PasswordHash, err = e.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash initial password: %w", err)
	}

	accountID, err := tx.CreateAccount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}

	var profileID int64
	if row.Teacher != nil {
		profileID, err = tx.CreateTeacher(ctx, newTeacher(plan.Batch, row, accountID, branch.ID))
		if err != nil {
			return 0, fmt.Errorf("create teacher: %w", err)
		}
	} else {
		profileID, err = tx.CreateStudent(ctx, newStudent(plan.Batch, row, accountID, branch.ID))
		if err != nil {
			return 0, fmt.Errorf("create student: %w", err)
		}
	}

	if err := tx.LinkAccountProfile(ctx, accountID, profileID); err != nil {
		return 0, fmt.Errorf("link account: %w", err)
	}
	if err := tx.MarkImported(ctx, plan.Batch.Entity, row.ID, profileID); err != nil {
		return 0, fmt.Errorf("mark staging row imported: %w", err)
	}
	return profileID, nil
}

// accountFor derives the login identity and initial password of a row.
func (e *CommitEngine) accountFor(plan CommitPlan, row domain.StagingRow, branchID int64) (domain.NewAccount, string, error) {
	account := domain.NewAccount{
		BranchID:           branchID,
		Role:               plan.Batch.Entity,
		MustChangePassword: true,
		CreatedBy:          plan.CommittedBy,
	}

	if t := row.Teacher; t != nil {
		email := emailKey(t.Email)
		account.Username = email
		account.Email = &email
		account.Phone = t.Phone
		account.FullName = fullName(t.FirstName, t.LastName)
		return account, textKey(t.EmployeeID), nil
	}

	s := row.Student
	if s == nil {
		return domain.NewAccount{}, "", errors.New("staging row has no fields")
	}
	number := textKey(s.AdmissionNumber)
	account.Username = number
	if email := emailKey(s.Email); email != "" {
		account.Email = &email
	}
	account.Phone = s.Phone
	account.FullName = fullName(s.FirstName, s.LastName)

	password := number
	if s.DateOfBirth != nil {
		password = s.DateOfBirth.Format("02012006")
	}
	return account, password, nil
}

func newStudent(batch domain.Batch, row domain.StagingRow, accountID, branchID int64) domain.NewStudent {
	s := row.Student
	return domain.NewStudent{
		AccountID:       accountID,
		BranchID:        branchID,
		ImportBatchID:   batch.ID,
		AdmissionNumber: textKey(s.AdmissionNumber),
		FirstName:       textKey(s.FirstName),
		LastName:        textKey(s.LastName),
		DateOfBirth:     s.DateOfBirth,
		Gender:          canonicalGender(s.Gender),
		Grade:           textKey(effectiveGrade(row, batch.Context)),
		Section:         firstNonBlank(s.Section, batch.Context.Section),
		AcademicYear:    batch.Context.AcademicYear,
		RollNumber:      s.RollNumber,
		AdmissionDate:   s.AdmissionDate,
		GuardianName:    s.GuardianName,
		GuardianPhone:   s.GuardianPhone,
		GuardianEmail:   s.GuardianEmail,
		Address:         s.Address,
		BloodGroup:      s.BloodGroup,
		Nationality:     s.Nationality,
		Remarks:         s.Remarks,
	}
}

func newTeacher(batch domain.Batch, row domain.StagingRow, accountID, branchID int64) domain.NewTeacher {
	t := row.Teacher
	return domain.NewTeacher{
		AccountID:       accountID,
		BranchID:        branchID,
		ImportBatchID:   batch.ID,
		EmployeeID:      textKey(t.EmployeeID),
		FirstName:       textKey(t.FirstName),
		LastName:        textKey(t.LastName),
		DateOfBirth:     t.DateOfBirth,
		Gender:          canonicalGender(t.Gender),
		Qualification:   t.Qualification,
		Specialization:  t.Specialization,
		Designation:     t.Designation,
		Department:      firstNonBlank(t.Department, batch.Context.Department),
		JoiningDate:     t.JoiningDate,
		ExperienceYears: t.ExperienceYears,
		Address:         t.Address,
		Remarks:         t.Remarks,
	}
}

func fullName(first, last *string) string {
	return strings.TrimSpace(textKey(first) + " " + textKey(last))
}

func canonicalGender(raw *string) *string {
	if raw == nil {
		return nil
	}
	if gender, ok := normalizeGender(*raw); ok {
		return &gender
	}
	return raw
}

func firstNonBlank(values ...*string) *string {
	for _, v := range values {
		if textKey(v) != "" {
			return v
		}
	}
	return nil
}

// rowFailureReason keeps the caller-facing part of a commit error. Internal
// details stay in the log.
func rowFailureReason(err error) string {
	if domain.KindOf(err) != domain.ErrUnexpected {
		return domain.PublicMessage(err)
	}
	return "internal error while importing the row"
}
