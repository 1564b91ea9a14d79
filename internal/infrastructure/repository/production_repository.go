package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

const uniqueViolation = "23505"

// ProductionRepository reads and writes the live accounts, students and
// teachers tables.
type ProductionRepository struct {
	db *gorm.DB
}

func NewProductionRepository(db *gorm.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

func (r *ProductionRepository) ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	if len(emails) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("LOWER(email) IN ?", emails).
		Pluck("LOWER(email)", &found).Error
	if err != nil {
		return nil, fmt.Errorf("find existing e-mails: %w", err)
	}
	return toSet(found), nil
}

func (r *ProductionRepository) ExistingUsernames(ctx context.Context, usernames []string) (map[string]bool, error) {
	if len(usernames) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("username IN ?", usernames).
		Pluck("username", &found).Error
	if err != nil {
		return nil, fmt.Errorf("find existing usernames: %w", err)
	}
	return toSet(found), nil
}

func (r *ProductionRepository) ExistingAdmissionNumbers(ctx context.Context, branchID int64, numbers []string) (map[string]bool, error) {
	if len(numbers) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("branch_id = ? AND admission_number IN ?", branchID, numbers).
		Pluck("admission_number", &found).Error
	if err != nil {
		return nil, fmt.Errorf("find existing admission numbers: %w", err)
	}
	return toSet(found), nil
}

func (r *ProductionRepository) ExistingEmployeeIDs(ctx context.Context, employeeIDs []string) (map[string]bool, error) {
	if len(employeeIDs) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&models.Teacher{}).
		Where("employee_id IN ?", employeeIDs).
		Pluck("employee_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("find existing employee ids: %w", err)
	}
	return toSet(found), nil
}

func (r *ProductionRepository) StudentCount(ctx context.Context, branchID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Where("branch_id = ?", branchID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count students of branch %d: %w", branchID, err)
	}
	return count, nil
}

func (r *ProductionRepository) Count(ctx context.Context, entity domain.EntityType) (int64, error) {
	var model any = &models.Student{}
	if entity == domain.EntityTeacher {
		model = &models.Teacher{}
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s records: %w", entity, err)
	}
	return count, nil
}

func (r *ProductionRepository) Transact(ctx context.Context, fn func(tx domain.CommitTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&commitTx{db: tx})
	})
}

type commitTx struct {
	db *gorm.DB
}

func (t *commitTx) CreateAccount(ctx context.Context, account domain.NewAccount) (int64, error) {
	row := models.Account{
		Username:           account.Username,
		Email:              account.Email,
		Phone:              account.Phone,
		FullName:           account.FullName,
		Role:               string(account.Role),
		BranchID:           account.BranchID,
		PasswordHash:       account.PasswordHash,
		MustChangePassword: account.MustChangePassword,
	}
	if account.CreatedBy > 0 {
		row.CreatedBy = &account.CreatedBy
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if strings.Contains(constraint, "email") && account.Email != nil {
				return 0, domain.NewError(domain.ErrCommitConflict, "%s %s already exists", domain.FieldEmail, *account.Email)
			}
			return 0, domain.NewError(domain.ErrCommitConflict, "username %s already exists", account.Username)
		}
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return row.ID, nil
}

func (t *commitTx) CreateStudent(ctx context.Context, student domain.NewStudent) (int64, error) {
	row := models.Student{
		UserID:          student.AccountID,
		BranchID:        student.BranchID,
		ImportBatchID:   optionalText(student.ImportBatchID),
		AdmissionNumber: student.AdmissionNumber,
		FirstName:       student.FirstName,
		LastName:        student.LastName,
		DateOfBirth:     student.DateOfBirth,
		Gender:          student.Gender,
		Grade:           student.Grade,
		Section:         student.Section,
		AcademicYear:    student.AcademicYear,
		RollNumber:      student.RollNumber,
		AdmissionDate:   student.AdmissionDate,
		GuardianName:    student.GuardianName,
		GuardianPhone:   student.GuardianPhone,
		GuardianEmail:   student.GuardianEmail,
		Address:         student.Address,
		BloodGroup:      student.BloodGroup,
		Nationality:     student.Nationality,
		Remarks:         student.Remarks,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return 0, domain.NewError(domain.ErrCommitConflict, "%s %s already exists", domain.FieldAdmissionNumber, student.AdmissionNumber)
		}
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return row.ID, nil
}

func (t *commitTx) CreateTeacher(ctx context.Context, teacher domain.NewTeacher) (int64, error) {
	row := models.Teacher{
		UserID:          teacher.AccountID,
		BranchID:        teacher.BranchID,
		ImportBatchID:   optionalText(teacher.ImportBatchID),
		EmployeeID:      teacher.EmployeeID,
		FirstName:       teacher.FirstName,
		LastName:        teacher.LastName,
		DateOfBirth:     teacher.DateOfBirth,
		Gender:          teacher.Gender,
		Qualification:   teacher.Qualification,
		Specialization:  teacher.Specialization,
		Designation:     teacher.Designation,
		Department:      teacher.Department,
		JoiningDate:     teacher.JoiningDate,
		ExperienceYears: teacher.ExperienceYears,
		Address:         teacher.Address,
		Remarks:         teacher.Remarks,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return 0, domain.NewError(domain.ErrCommitConflict, "%s %s already exists", domain.FieldEmployeeID, teacher.EmployeeID)
		}
		return 0, fmt.Errorf("insert teacher: %w", err)
	}
	return row.ID, nil
}

func (t *commitTx) LinkAccountProfile(ctx context.Context, accountID, profileID int64) error {
	err := t.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("profile_id", profileID).Error
	if err != nil {
		return fmt.Errorf("link account %d to profile %d: %w", accountID, profileID, err)
	}
	return nil
}

// MarkImported flips the staging row exactly once; a row that is already
// imported or no longer valid is a conflict.
func (t *commitTx) MarkImported(ctx context.Context, entity domain.EntityType, stagingRowID, productionID int64) error {
	result := t.db.WithContext(ctx).Table(stagingTable(entity)).
		Where("id = ? AND imported = FALSE AND status = ?", stagingRowID, string(domain.RowValid)).
		Updates(map[string]any{"imported": true, "production_id": productionID})
	if result.Error != nil {
		return fmt.Errorf("mark staging row %d imported: %w", stagingRowID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewError(domain.ErrCommitConflict, "staging row %d is already imported", stagingRowID)
	}
	return nil
}

func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func optionalText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
