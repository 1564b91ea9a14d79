package models

import "time"

type Branch struct {
	ID        int64  `gorm:"primaryKey"`
	Code      string `gorm:"size:50;not null;uniqueIndex"`
	Name      string `gorm:"size:255;not null"`
	Capacity  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Branch) TableName() string {
	return "branches"
}

type Grade struct {
	ID        int64  `gorm:"primaryKey"`
	BranchID  int64  `gorm:"not null;index"`
	Name      string `gorm:"size:50;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Grade) TableName() string {
	return "grades"
}

// Account is a login identity. ProfileID points at the student or teacher
// row created with it.
type Account struct {
	ID                 int64   `gorm:"primaryKey"`
	Username           string  `gorm:"size:320;not null;uniqueIndex"`
	Email              *string `gorm:"size:320;uniqueIndex"`
	Phone              *string `gorm:"size:32"`
	FullName           string  `gorm:"size:255;not null"`
	Role               string  `gorm:"size:20;not null"`
	BranchID           int64   `gorm:"not null"`
	PasswordHash       string  `gorm:"type:text;not null"`
	MustChangePassword bool    `gorm:"not null;default:true"`
	ProfileID          *int64
	CreatedBy          *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Account) TableName() string {
	return "users"
}

type Student struct {
	ID              int64      `gorm:"primaryKey"`
	UserID          int64      `gorm:"not null;uniqueIndex"`
	BranchID        int64      `gorm:"not null"`
	ImportBatchID   *string    `gorm:"type:uuid"`
	AdmissionNumber string     `gorm:"size:100;not null"`
	FirstName       string     `gorm:"size:120;not null"`
	LastName        string     `gorm:"size:120;not null"`
	DateOfBirth     *time.Time `gorm:"type:date"`
	Gender          *string
	Grade           string `gorm:"size:50;not null"`
	Section         *string
	AcademicYear    *string
	RollNumber      *string
	AdmissionDate   *time.Time `gorm:"type:date"`
	GuardianName    *string
	GuardianPhone   *string
	GuardianEmail   *string
	Address         *string
	BloodGroup      *string
	Nationality     *string
	Remarks         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Student) TableName() string {
	return "students"
}

type Teacher struct {
	ID              int64      `gorm:"primaryKey"`
	UserID          int64      `gorm:"not null;uniqueIndex"`
	BranchID        int64      `gorm:"not null"`
	ImportBatchID   *string    `gorm:"type:uuid"`
	EmployeeID      string     `gorm:"size:100;not null;uniqueIndex"`
	FirstName       string     `gorm:"size:120;not null"`
	LastName        string     `gorm:"size:120;not null"`
	DateOfBirth     *time.Time `gorm:"type:date"`
	Gender          *string
	Qualification   *string
	Specialization  *string
	Designation     *string
	Department      *string
	JoiningDate     *time.Time `gorm:"type:date"`
	ExperienceYears *int
	Address         *string
	Remarks         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Teacher) TableName() string {
	return "teachers"
}
