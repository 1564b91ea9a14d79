package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

var stagingBaseColumns = []string{"batch_id", "row_number", "status", "errors", "parse_issues", "unmapped", "imported"}

var studentStagingColumns = append(append([]string{}, stagingBaseColumns...),
	"admission_number", "first_name", "last_name", "email", "phone", "date_of_birth", "gender", "grade",
	"section", "roll_number", "branch_code", "admission_date", "guardian_name", "guardian_phone",
	"guardian_email", "address", "blood_group", "nationality", "remarks",
)

var teacherStagingColumns = append(append([]string{}, stagingBaseColumns...),
	"employee_id", "first_name", "last_name", "email", "phone", "date_of_birth", "gender", "qualification",
	"specialization", "designation", "department", "joining_date", "experience_years", "branch_code",
	"address", "remarks",
)

func stagingTable(entity domain.EntityType) string {
	if entity == domain.EntityTeacher {
		return models.TeacherImport{}.TableName()
	}
	return models.StudentImport{}.TableName()
}

// StagingRepository bulk-loads parsed rows with COPY and reads them back
// through gorm.
type StagingRepository struct {
	pool *pgxpool.Pool
	db   *gorm.DB
}

func NewStagingRepository(pool *pgxpool.Pool, db *gorm.DB) *StagingRepository {
	return &StagingRepository{pool: pool, db: db}
}

func (r *StagingRepository) Insert(ctx context.Context, entity domain.EntityType, batchID string, rows []domain.StagingRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := studentStagingColumns
	if entity == domain.EntityTeacher {
		columns = teacherStagingColumns
	}
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		encoded, err := encodeStagingJSON(row)
		if err != nil {
			return err
		}
		status := row.Status
		if status == "" {
			status = domain.RowPending
		}
		base := []any{batchID, int32(row.RowNumber), string(status), encoded.errors, encoded.parseIssues, encoded.unmapped, row.Imported}
		switch {
		case entity == domain.EntityTeacher && row.Teacher != nil:
			values = append(values, append(base, teacherValues(row.Teacher)...))
		case entity == domain.EntityStudent && row.Student != nil:
			values = append(values, append(base, studentValues(row.Student)...))
		default:
			return fmt.Errorf("row %d does not carry %s fields", row.RowNumber, entity)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable(entity)}, columns, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("copy %s staging rows: %w", entity, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit staging rows: %w", err)
	}
	return nil
}

func studentValues(s *domain.StudentFields) []any {
	return []any{
		s.AdmissionNumber, s.FirstName, s.LastName, s.Email, s.Phone, s.DateOfBirth, s.Gender, s.Grade,
		s.Section, s.RollNumber, s.BranchCode, s.AdmissionDate, s.GuardianName, s.GuardianPhone,
		s.GuardianEmail, s.Address, s.BloodGroup, s.Nationality, s.Remarks,
	}
}

func teacherValues(t *domain.TeacherFields) []any {
	var experience *int32
	if t.ExperienceYears != nil {
		v := int32(*t.ExperienceYears)
		experience = &v
	}
	return []any{
		t.EmployeeID, t.FirstName, t.LastName, t.Email, t.Phone, t.DateOfBirth, t.Gender, t.Qualification,
		t.Specialization, t.Designation, t.Department, t.JoiningDate, experience, t.BranchCode,
		t.Address, t.Remarks,
	}
}

func (r *StagingRepository) List(ctx context.Context, entity domain.EntityType, batchID string, q domain.RowQuery) ([]domain.StagingRow, error) {
	query := r.db.WithContext(ctx).Where("batch_id = ?", batchID)
	if q.Status != nil {
		query = query.Where("status = ?", string(*q.Status))
	}
	query = query.Order("row_number").Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if entity == domain.EntityTeacher {
		var rows []models.TeacherImport
		if err := query.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("list teacher staging rows: %w", err)
		}
		out := make([]domain.StagingRow, 0, len(rows))
		for _, m := range rows {
			row, err := fromTeacherImport(m)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil
	}

	var rows []models.StudentImport
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list student staging rows: %w", err)
	}
	out := make([]domain.StagingRow, 0, len(rows))
	for _, m := range rows {
		row, err := fromStudentImport(m)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// SaveValidation writes status and errors of every row in one transaction.
func (r *StagingRepository) SaveValidation(ctx context.Context, entity domain.EntityType, rows []domain.StagingRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			errs, err := marshalList(row.Errors)
			if err != nil {
				return fmt.Errorf("encode errors of row %d: %w", row.RowNumber, err)
			}
			err = tx.Table(stagingTable(entity)).
				Where("id = ? AND imported = FALSE", row.ID).
				Updates(map[string]any{"status": string(row.Status), "errors": datatypes.JSON(errs)}).Error
			if err != nil {
				return fmt.Errorf("save validation of row %d: %w", row.RowNumber, err)
			}
		}
		return nil
	})
}

func (r *StagingRepository) Counts(ctx context.Context, entity domain.EntityType, batchID string) (domain.RowCounts, error) {
	var counts domain.RowCounts
	err := r.db.WithContext(ctx).Raw(`
SELECT
  COUNT(*) AS total,
  COUNT(*) FILTER (WHERE status = 'valid') AS valid,
  COUNT(*) FILTER (WHERE status = 'invalid') AS invalid,
  COUNT(*) FILTER (WHERE status = 'pending') AS pending,
  COUNT(*) FILTER (WHERE imported) AS imported
FROM `+stagingTable(entity)+`
WHERE batch_id = ?
`, batchID).Scan(&counts).Error
	if err != nil {
		return domain.RowCounts{}, fmt.Errorf("count %s staging rows: %w", entity, err)
	}
	return counts, nil
}

func (r *StagingRepository) Delete(ctx context.Context, entity domain.EntityType, batchID string) error {
	err := r.db.WithContext(ctx).Exec("DELETE FROM "+stagingTable(entity)+" WHERE batch_id = ?", batchID).Error
	if err != nil {
		return fmt.Errorf("delete %s staging rows: %w", entity, err)
	}
	return nil
}
