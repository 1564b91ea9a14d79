package importing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

// Validator applies the per-entity business rules to staged rows. Lookups
// against production and reference data happen on every run, so a row can
// become valid after the reference data changes.
type Validator struct {
	refs  domain.ReferenceDirectory
	index domain.ProductionIndex
	now   func() time.Time
}

func NewValidator(refs domain.ReferenceDirectory, index domain.ProductionIndex) *Validator {
	return &Validator{refs: refs, index: index, now: time.Now}
}

// Validate sets status and errors on every row that has not been imported.
// Rows are expected in row-number order.
func (v *Validator) Validate(ctx context.Context, batch domain.Batch, rows []domain.StagingRow) error {
	branches, err := v.resolveBranches(ctx, batch, rows)
	if err != nil {
		return err
	}
	if batch.Entity == domain.EntityTeacher {
		return v.validateTeachers(ctx, rows, branches)
	}
	return v.validateStudents(ctx, batch, rows, branches)
}

// branchSet resolves the effective branch of a row: its own branch_code when
// present, otherwise the batch's branch.
type branchSet struct {
	home      domain.Branch
	homeFound bool
	byCode    map[string]domain.Branch
}

func (b branchSet) forRow(code *string) (domain.Branch, string, bool) {
	if key := textKey(code); key != "" {
		branch, ok := b.byCode[key]
		if !ok {
			return domain.Branch{}, fmt.Sprintf("%s %q does not exist", domain.FieldBranchCode, key), false
		}
		return branch, "", true
	}
	if !b.homeFound {
		return domain.Branch{}, "the batch branch no longer exists", false
	}
	return b.home, "", true
}

func (v *Validator) resolveBranches(ctx context.Context, batch domain.Batch, rows []domain.StagingRow) (branchSet, error) {
	home, found, err := v.refs.BranchByID(ctx, batch.BranchID)
	if err != nil {
		return branchSet{}, fmt.Errorf("look up branch %d: %w", batch.BranchID, err)
	}

	codes := lo.Uniq(lo.FilterMap(rows, func(row domain.StagingRow, _ int) (string, bool) {
		code := textKey(rowBranchCode(row))
		return code, code != "" && !row.Imported
	}))
	byCode := map[string]domain.Branch{}
	if len(codes) > 0 {
		byCode, err = v.refs.BranchesByCode(ctx, codes)
		if err != nil {
			return branchSet{}, fmt.Errorf("look up branch codes: %w", err)
		}
	}
	return branchSet{home: home, homeFound: found, byCode: byCode}, nil
}

func rowBranchCode(row domain.StagingRow) *string {
	if row.Teacher != nil {
		return row.Teacher.BranchCode
	}
	if row.Student != nil {
		return row.Student.BranchCode
	}
	return nil
}

func effectiveGrade(row domain.StagingRow, c domain.ImportContext) *string {
	if textKey(row.Student.Grade) != "" {
		return row.Student.Grade
	}
	return c.Grade
}

func (v *Validator) validateStudents(ctx context.Context, batch domain.Batch, rows []domain.StagingRow, branches branchSet) error {
	now := v.now()

	type pending struct {
		row    *domain.StagingRow
		errs   *rowErrors
		branch *domain.Branch
	}

	admissions := occurrences{}
	usernames := occurrences{}
	emails := occurrences{}
	var checks []pending
	for i := range rows {
		row := &rows[i]
		if row.Student == nil {
			return fmt.Errorf("row %d is not a student row", row.RowNumber)
		}

		branch, branchErr, branchOK := branches.forRow(row.Student.BranchCode)
		admissionScope := textKey(row.Student.BranchCode)
		if branchOK {
			admissionScope = fmt.Sprint(branch.ID)
		}
		if number := textKey(row.Student.AdmissionNumber); number != "" {
			admissions.add(admissionScope+"|"+number, row.RowNumber)
			// The admission number is also the login name, which spans branches.
			usernames.add(number, row.RowNumber)
		}
		emails.add(emailKey(row.Student.Email), row.RowNumber)

		if row.Imported {
			continue
		}

		s := row.Student
		errs := newRowErrors(*row)
		errs.requireText(domain.FieldFirstName, s.FirstName)
		errs.requireText(domain.FieldLastName, s.LastName)
		errs.requireText(domain.FieldAdmissionNumber, s.AdmissionNumber)
		errs.requireDate(domain.FieldDateOfBirth, s.DateOfBirth)
		errs.requireText(domain.FieldGrade, effectiveGrade(*row, batch.Context))
		errs.lengths(domain.SchemaFor(domain.EntityStudent), *row)

		errs.email(domain.FieldEmail, s.Email)
		errs.phone(domain.FieldPhone, s.Phone)
		errs.gender(s.Gender)
		errs.birthDate(s.DateOfBirth, now)
		errs.notFarFuture(domain.FieldAdmissionDate, s.AdmissionDate, now)
		errs.phone(domain.FieldGuardianPhone, s.GuardianPhone)
		errs.email(domain.FieldGuardianEmail, s.GuardianEmail)

		check := pending{row: row, errs: errs}
		if branchOK {
			check.branch = &branch
		} else {
			errs.add("%s", branchErr)
		}
		checks = append(checks, check)
	}

	// Production lookups, batched per branch.
	numbersByBranch := map[int64][]string{}
	var emailList, usernameList []string
	for _, check := range checks {
		number := textKey(check.row.Student.AdmissionNumber)
		if number != "" {
			usernameList = append(usernameList, number)
		}
		if number != "" && check.branch != nil {
			numbersByBranch[check.branch.ID] = append(numbersByBranch[check.branch.ID], number)
		}
		if email := emailKey(check.row.Student.Email); email != "" {
			emailList = append(emailList, email)
		}
	}

	existingEmails, err := v.existingEmails(ctx, emailList)
	if err != nil {
		return err
	}
	existingUsernames, err := v.existingUsernames(ctx, usernameList)
	if err != nil {
		return err
	}
	existingNumbers := map[int64]map[string]bool{}
	grades := map[int64]map[string]bool{}
	for branchID, numbers := range numbersByBranch {
		found, err := v.index.ExistingAdmissionNumbers(ctx, branchID, lo.Uniq(numbers))
		if err != nil {
			return fmt.Errorf("look up admission numbers: %w", err)
		}
		existingNumbers[branchID] = found
	}
	for _, check := range checks {
		if check.branch == nil {
			continue
		}
		if _, ok := grades[check.branch.ID]; ok {
			continue
		}
		found, err := v.refs.GradesForBranch(ctx, check.branch.ID)
		if err != nil {
			return fmt.Errorf("look up grades for branch %d: %w", check.branch.ID, err)
		}
		grades[check.branch.ID] = found
	}

	for _, check := range checks {
		s := check.row.Student
		number := textKey(s.AdmissionNumber)
		inBranch, dupInBranch := false, false
		if check.branch != nil && number != "" {
			if existingNumbers[check.branch.ID][number] {
				inBranch = true
				check.errs.add("%s %s already exists", domain.FieldAdmissionNumber, number)
			}
			if dup, ok := admissions.duplicate(fmt.Sprint(check.branch.ID)+"|"+number, check.row.RowNumber); ok {
				dupInBranch = true
				check.errs.add("%s %s is a duplicate within batch (rows %s)", domain.FieldAdmissionNumber, number, formatRows(dup))
			}
		}
		if number != "" {
			if !inBranch && existingUsernames[number] {
				check.errs.add("username %s already exists", number)
			}
			if dup, ok := usernames.duplicate(number, check.row.RowNumber); ok && !dupInBranch {
				check.errs.add("username %s is a duplicate within batch (rows %s)", number, formatRows(dup))
			}
		}
		if email := emailKey(s.Email); email != "" {
			if existingEmails[email] {
				check.errs.add("%s %s already exists", domain.FieldEmail, email)
			}
			if dup, ok := emails.duplicate(email, check.row.RowNumber); ok {
				check.errs.add("%s %s is a duplicate within batch (rows %s)", domain.FieldEmail, email, formatRows(dup))
			}
		}
		if grade := textKey(effectiveGrade(*check.row, batch.Context)); grade != "" && check.branch != nil {
			if !grades[check.branch.ID][strings.ToLower(grade)] {
				check.errs.add("%s %q does not exist for branch %s", domain.FieldGrade, grade, check.branch.Code)
			}
		}
	}

	// Capacity is consumed in row order by rows that are otherwise valid.
	enrolled := map[int64]int64{}
	for _, check := range checks {
		if check.branch == nil || check.branch.Capacity == nil || len(check.errs.result()) > 0 {
			continue
		}
		id := check.branch.ID
		if _, ok := enrolled[id]; !ok {
			count, err := v.index.StudentCount(ctx, id)
			if err != nil {
				return fmt.Errorf("count students of branch %d: %w", id, err)
			}
			enrolled[id] = count
		}
		if enrolled[id]+1 > *check.branch.Capacity {
			check.errs.add("branch %s is at capacity (%d students)", check.branch.Code, *check.branch.Capacity)
			continue
		}
		enrolled[id]++
	}

	for _, check := range checks {
		check.row.ApplyValidation(check.errs.result())
	}
	return nil
}

func (v *Validator) validateTeachers(ctx context.Context, rows []domain.StagingRow, branches branchSet) error {
	now := v.now()

	type pending struct {
		row  *domain.StagingRow
		errs *rowErrors
	}

	employeeIDs := occurrences{}
	emails := occurrences{}
	var checks []pending
	for i := range rows {
		row := &rows[i]
		if row.Teacher == nil {
			return fmt.Errorf("row %d is not a teacher row", row.RowNumber)
		}
		employeeIDs.add(textKey(row.Teacher.EmployeeID), row.RowNumber)
		emails.add(emailKey(row.Teacher.Email), row.RowNumber)
		if row.Imported {
			continue
		}

		t := row.Teacher
		errs := newRowErrors(*row)
		errs.requireText(domain.FieldFirstName, t.FirstName)
		errs.requireText(domain.FieldLastName, t.LastName)
		errs.requireText(domain.FieldEmail, t.Email)
		errs.requireText(domain.FieldEmployeeID, t.EmployeeID)
		errs.lengths(domain.SchemaFor(domain.EntityTeacher), *row)

		errs.email(domain.FieldEmail, t.Email)
		errs.phone(domain.FieldPhone, t.Phone)
		errs.gender(t.Gender)
		errs.birthDate(t.DateOfBirth, now)
		errs.notFarFuture(domain.FieldJoiningDate, t.JoiningDate, now)
		if t.ExperienceYears != nil && *t.ExperienceYears < 0 {
			errs.add("%s must not be negative", domain.FieldExperienceYears)
		}
		if _, branchErr, ok := branches.forRow(t.BranchCode); !ok {
			errs.add("%s", branchErr)
		}
		checks = append(checks, pending{row: row, errs: errs})
	}

	emailList := lo.FilterMap(checks, func(c pending, _ int) (string, bool) {
		email := emailKey(c.row.Teacher.Email)
		return email, email != ""
	})
	idList := lo.Uniq(lo.FilterMap(checks, func(c pending, _ int) (string, bool) {
		id := textKey(c.row.Teacher.EmployeeID)
		return id, id != ""
	}))

	existingEmails, err := v.existingEmails(ctx, emailList)
	if err != nil {
		return err
	}
	existingUsernames, err := v.existingUsernames(ctx, emailList)
	if err != nil {
		return err
	}
	existingIDs := map[string]bool{}
	if len(idList) > 0 {
		existingIDs, err = v.index.ExistingEmployeeIDs(ctx, idList)
		if err != nil {
			return fmt.Errorf("look up employee ids: %w", err)
		}
	}

	for _, check := range checks {
		t := check.row.Teacher
		if id := textKey(t.EmployeeID); id != "" {
			if existingIDs[id] {
				check.errs.add("%s %s already exists", domain.FieldEmployeeID, id)
			}
			if dup, ok := employeeIDs.duplicate(id, check.row.RowNumber); ok {
				check.errs.add("%s %s is a duplicate within batch (rows %s)", domain.FieldEmployeeID, id, formatRows(dup))
			}
		}
		if email := emailKey(t.Email); email != "" {
			switch {
			case existingEmails[email]:
				check.errs.add("%s %s already exists", domain.FieldEmail, email)
			case existingUsernames[email]:
				check.errs.add("username %s already exists", email)
			}
			if dup, ok := emails.duplicate(email, check.row.RowNumber); ok {
				check.errs.add("%s %s is a duplicate within batch (rows %s)", domain.FieldEmail, email, formatRows(dup))
			}
		}
		check.row.ApplyValidation(check.errs.result())
	}
	return nil
}

func (v *Validator) existingEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	emails = lo.Uniq(emails)
	if len(emails) == 0 {
		return map[string]bool{}, nil
	}
	found, err := v.index.ExistingEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("look up e-mails: %w", err)
	}
	return found, nil
}

func (v *Validator) existingUsernames(ctx context.Context, usernames []string) (map[string]bool, error) {
	usernames = lo.Uniq(usernames)
	if len(usernames) == 0 {
		return map[string]bool{}, nil
	}
	found, err := v.index.ExistingUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("look up usernames: %w", err)
	}
	return found, nil
}
