package models

import (
	"time"

	"gorm.io/datatypes"
)

// StagingColumns are shared by both staging tables.
type StagingColumns struct {
	ID           int64          `gorm:"primaryKey"`
	BatchID      string         `gorm:"type:uuid;not null;index"`
	RowNumber    int            `gorm:"not null"`
	Status       string         `gorm:"size:10;not null;default:pending"`
	Errors       datatypes.JSON `gorm:"type:jsonb;not null"`
	ParseIssues  datatypes.JSON `gorm:"type:jsonb;not null"`
	Unmapped     datatypes.JSON `gorm:"type:jsonb;not null"`
	Imported     bool           `gorm:"not null;default:false"`
	ProductionID *int64
}

type StudentImport struct {
	StagingColumns  `gorm:"embedded"`
	AdmissionNumber *string
	FirstName       *string
	LastName        *string
	Email           *string
	Phone           *string
	DateOfBirth     *time.Time `gorm:"type:date"`
	Gender          *string
	Grade           *string
	Section         *string
	RollNumber      *string
	BranchCode      *string
	AdmissionDate   *time.Time `gorm:"type:date"`
	GuardianName    *string
	GuardianPhone   *string
	GuardianEmail   *string
	Address         *string
	BloodGroup      *string
	Nationality     *string
	Remarks         *string
}

func (StudentImport) TableName() string {
	return "student_imports"
}

type TeacherImport struct {
	StagingColumns  `gorm:"embedded"`
	EmployeeID      *string
	FirstName       *string
	LastName        *string
	Email           *string
	Phone           *string
	DateOfBirth     *time.Time `gorm:"type:date"`
	Gender          *string
	Qualification   *string
	Specialization  *string
	Designation     *string
	Department      *string
	JoiningDate     *time.Time `gorm:"type:date"`
	ExperienceYears *int
	BranchCode      *string
	Address         *string
	Remarks         *string
}

func (TeacherImport) TableName() string {
	return "teacher_imports"
}
