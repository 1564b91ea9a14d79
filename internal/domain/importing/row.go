package importing

import "time"

type RowStatus string

const (
	RowPending RowStatus = "pending"
	RowValid   RowStatus = "valid"
	RowInvalid RowStatus = "invalid"
)

func ParseRowStatus(raw string) (RowStatus, bool) {
	status := RowStatus(raw)
	switch status {
	case RowPending, RowValid, RowInvalid:
		return status, true
	}
	return "", false
}

type StudentFields struct {
	AdmissionNumber *string    `json:"admission_number"`
	FirstName       *string    `json:"first_name"`
	LastName        *string    `json:"last_name"`
	Email           *string    `json:"email"`
	Phone           *string    `json:"phone"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Gender          *string    `json:"gender"`
	Grade           *string    `json:"grade"`
	Section         *string    `json:"section"`
	RollNumber      *string    `json:"roll_number"`
	BranchCode      *string    `json:"branch_code"`
	AdmissionDate   *time.Time `json:"admission_date"`
	GuardianName    *string    `json:"guardian_name"`
	GuardianPhone   *string    `json:"guardian_phone"`
	GuardianEmail   *string    `json:"guardian_email"`
	Address         *string    `json:"address"`
	BloodGroup      *string    `json:"blood_group"`
	Nationality     *string    `json:"nationality"`
	Remarks         *string    `json:"remarks"`
}

type TeacherFields struct {
	EmployeeID      *string    `json:"employee_id"`
	FirstName       *string    `json:"first_name"`
	LastName        *string    `json:"last_name"`
	Email           *string    `json:"email"`
	Phone           *string    `json:"phone"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Gender          *string    `json:"gender"`
	Qualification   *string    `json:"qualification"`
	Specialization  *string    `json:"specialization"`
	Designation     *string    `json:"designation"`
	Department      *string    `json:"department"`
	JoiningDate     *time.Time `json:"joining_date"`
	ExperienceYears *int       `json:"experience_years"`
	BranchCode      *string    `json:"branch_code"`
	Address         *string    `json:"address"`
	Remarks         *string    `json:"remarks"`
}

// StagingRow is one parsed spreadsheet row. Exactly one of Student and
// Teacher is set, matching the batch entity.
type StagingRow struct {
	ID           int64
	BatchID      string
	RowNumber    int
	Status       RowStatus
	Errors       []string
	ParseIssues  []string
	Unmapped     map[string]string
	Imported     bool
	ProductionID *int64
	Student      *StudentFields
	Teacher      *TeacherFields
}

func (r StagingRow) Entity() EntityType {
	if r.Teacher != nil {
		return EntityTeacher
	}
	return EntityStudent
}

// ApplyValidation keeps status and errors consistent: invalid iff errors exist.
func (r *StagingRow) ApplyValidation(errs []string) {
	if len(errs) == 0 {
		r.Status = RowValid
		r.Errors = []string{}
		return
	}
	r.Status = RowInvalid
	r.Errors = errs
}

// Eligible reports whether the commit engine may materialise the row.
func (r StagingRow) Eligible() bool {
	return r.Status == RowValid && !r.Imported
}

func (r *StagingRow) MarkImported(productionID int64) {
	r.Imported = true
	r.ProductionID = &productionID
}

type RowCounts struct {
	Total    int64 `json:"total"`
	Valid    int64 `json:"valid"`
	Invalid  int64 `json:"invalid"`
	Pending  int64 `json:"pending"`
	Imported int64 `json:"imported"`
}

// CountRows aggregates counts from in-memory rows.
func CountRows(rows []StagingRow) RowCounts {
	counts := RowCounts{Total: int64(len(rows))}
	for _, row := range rows {
		switch row.Status {
		case RowValid:
			counts.Valid++
		case RowInvalid:
			counts.Invalid++
		default:
			counts.Pending++
		}
		if row.Imported {
			counts.Imported++
		}
	}
	return counts
}
