package importing

import (
	"context"
	"io"
	"time"
)

type HistoryQuery struct {
	Entity *EntityType
	Status *BatchStatus
	Since  *time.Time
	Offset int
	Limit  int
}

type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	// Get returns ErrBatchNotFound for unknown ids.
	Get(ctx context.Context, batchID string) (Batch, error)
	Save(ctx context.Context, batch *Batch) error
	History(ctx context.Context, q HistoryQuery) ([]Batch, int64, error)
	LastCompletedAt(ctx context.Context, entity EntityType) (*time.Time, error)
}

// RowQuery selects staging rows of one batch in row-number order. Limit 0
// returns every row.
type RowQuery struct {
	Status *RowStatus
	Offset int
	Limit  int
}

type StagingStore interface {
	Insert(ctx context.Context, entity EntityType, batchID string, rows []StagingRow) error
	List(ctx context.Context, entity EntityType, batchID string, q RowQuery) ([]StagingRow, error)
	SaveValidation(ctx context.Context, entity EntityType, rows []StagingRow) error
	Counts(ctx context.Context, entity EntityType, batchID string) (RowCounts, error)
	Delete(ctx context.Context, entity EntityType, batchID string) error
}

type Branch struct {
	ID   int64
	Code string
	// Capacity is the student ceiling; nil means unlimited.
	Capacity *int64
}

type ReferenceDirectory interface {
	BranchByID(ctx context.Context, branchID int64) (Branch, bool, error)
	BranchesByCode(ctx context.Context, codes []string) (map[string]Branch, error)
	GradesForBranch(ctx context.Context, branchID int64) (map[string]bool, error)
}

// ProductionIndex answers uniqueness and size questions about live records.
type ProductionIndex interface {
	ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error)
	// ExistingUsernames matches account login names exactly, across every branch.
	ExistingUsernames(ctx context.Context, usernames []string) (map[string]bool, error)
	ExistingAdmissionNumbers(ctx context.Context, branchID int64, numbers []string) (map[string]bool, error)
	ExistingEmployeeIDs(ctx context.Context, employeeIDs []string) (map[string]bool, error)
	StudentCount(ctx context.Context, branchID int64) (int64, error)
	Count(ctx context.Context, entity EntityType) (int64, error)
}

type NewAccount struct {
	Username           string
	Email              *string
	Phone              *string
	FullName           string
	Role               EntityType
	BranchID           int64
	PasswordHash       string
	MustChangePassword bool
	CreatedBy          int64
}

type NewStudent struct {
	AccountID       int64
	BranchID        int64
	ImportBatchID   string
	AdmissionNumber string
	FirstName       string
	LastName        string
	DateOfBirth     *time.Time
	Gender          *string
	Grade           string
	Section         *string
	AcademicYear    *string
	RollNumber      *string
	AdmissionDate   *time.Time
	GuardianName    *string
	GuardianPhone   *string
	GuardianEmail   *string
	Address         *string
	BloodGroup      *string
	Nationality     *string
	Remarks         *string
}

type NewTeacher struct {
	AccountID       int64
	BranchID        int64
	ImportBatchID   string
	EmployeeID      string
	FirstName       string
	LastName        string
	DateOfBirth     *time.Time
	Gender          *string
	Qualification   *string
	Specialization  *string
	Designation     *string
	Department      *string
	JoiningDate     *time.Time
	ExperienceYears *int
	Address         *string
	Remarks         *string
}

// CommitTx is the set of writes performed for a row inside one transaction.
type CommitTx interface {
	CreateAccount(ctx context.Context, account NewAccount) (int64, error)
	CreateStudent(ctx context.Context, student NewStudent) (int64, error)
	CreateTeacher(ctx context.Context, teacher NewTeacher) (int64, error)
	LinkAccountProfile(ctx context.Context, accountID, profileID int64) error
	MarkImported(ctx context.Context, entity EntityType, stagingRowID, productionID int64) error
}

type CommitStore interface {
	// Transact runs fn in a transaction, rolling back when fn returns an error.
	Transact(ctx context.Context, fn func(tx CommitTx) error) error
}

type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	// Path returns the local path of a stored file or ErrFileNotFound.
	Path(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type TabularDecoder interface {
	// Detect reports the real kind of the file at path given the declared kind.
	Detect(ctx context.Context, path string, declared FileKind) (FileKind, error)
	Decode(ctx context.Context, path string, kind FileKind) (Table, error)
}

type TemplateWriter interface {
	Template(ctx context.Context, schema Schema) ([]byte, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// BatchLocker serialises lifecycle operations on one batch id.
type BatchLocker interface {
	Lock(ctx context.Context, batchID string) (unlock func(), err error)
}
