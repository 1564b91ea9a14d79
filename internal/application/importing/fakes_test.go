package importing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

type memBatches struct {
	mu      sync.Mutex
	batches map[string]domain.Batch
}

func newMemBatches() *memBatches {
	return &memBatches{batches: map[string]domain.Batch{}}
}

func (m *memBatches) Create(ctx context.Context, batch *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batch.ID]; ok {
		return fmt.Errorf("batch %s exists", batch.ID)
	}
	m.batches[batch.ID] = *batch
	return nil
}

func (m *memBatches) Get(ctx context.Context, batchID string) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return domain.Batch{}, domain.ErrBatchNotFound
	}
	return batch, nil
}

func (m *memBatches) Save(ctx context.Context, batch *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = *batch
	return nil
}

func (m *memBatches) History(ctx context.Context, q domain.HistoryQuery) ([]domain.Batch, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Batch
	for _, batch := range m.batches {
		if q.Entity != nil && batch.Entity != *q.Entity {
			continue
		}
		if q.Status != nil && batch.Status != *q.Status {
			continue
		}
		if q.Since != nil && batch.UploadedAt.Before(*q.Since) {
			continue
		}
		out = append(out, batch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	total := int64(len(out))
	if q.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (m *memBatches) LastCompletedAt(ctx context.Context, entity domain.EntityType) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for _, batch := range m.batches {
		if batch.Entity != entity || batch.Status != domain.BatchCompleted || batch.CompletedAt == nil {
			continue
		}
		if last == nil || batch.CompletedAt.After(*last) {
			last = batch.CompletedAt
		}
	}
	return last, nil
}

type memStaging struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string][]domain.StagingRow
}

func newMemStaging() *memStaging {
	return &memStaging{rows: map[string][]domain.StagingRow{}}
}

func (m *memStaging) Insert(ctx context.Context, entity domain.EntityType, batchID string, rows []domain.StagingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.nextID++
		row.ID = m.nextID
		row.BatchID = batchID
		m.rows[batchID] = append(m.rows[batchID], row)
	}
	return nil
}

func (m *memStaging) List(ctx context.Context, entity domain.EntityType, batchID string, q domain.RowQuery) ([]domain.StagingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StagingRow
	for _, row := range m.rows[batchID] {
		if q.Status != nil && row.Status != *q.Status {
			continue
		}
		out = append(out, row)
	}
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStaging) SaveValidation(ctx context.Context, entity domain.EntityType, rows []domain.StagingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, updated := range rows {
		stored := m.rows[updated.BatchID]
		for i := range stored {
			if stored[i].ID == updated.ID {
				stored[i].Status = updated.Status
				stored[i].Errors = updated.Errors
			}
		}
	}
	return nil
}

func (m *memStaging) Counts(ctx context.Context, entity domain.EntityType, batchID string) (domain.RowCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CountRows(m.rows[batchID]), nil
}

func (m *memStaging) Delete(ctx context.Context, entity domain.EntityType, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, batchID)
	return nil
}

func (m *memStaging) markImported(rowID, productionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for batchID, rows := range m.rows {
		for i := range rows {
			if rows[i].ID == rowID {
				m.rows[batchID][i].MarkImported(productionID)
			}
		}
	}
}

type memRefs struct {
	branches map[int64]domain.Branch
	grades   map[int64]map[string]bool
}

func (m *memRefs) BranchByID(ctx context.Context, branchID int64) (domain.Branch, bool, error) {
	branch, ok := m.branches[branchID]
	return branch, ok, nil
}

func (m *memRefs) BranchesByCode(ctx context.Context, codes []string) (map[string]domain.Branch, error) {
	out := map[string]domain.Branch{}
	for _, code := range codes {
		for _, branch := range m.branches {
			if branch.Code == code {
				out[code] = branch
			}
		}
	}
	return out, nil
}

func (m *memRefs) GradesForBranch(ctx context.Context, branchID int64) (map[string]bool, error) {
	return m.grades[branchID], nil
}

type account struct {
	domain.NewAccount
	ID        int64
	ProfileID int64
}

type memProduction struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]account
	students map[int64]domain.NewStudent
	teachers map[int64]domain.NewTeacher
	staging  *memStaging
	// failStudent makes CreateStudent fail for the given admission numbers.
	failStudent map[string]bool
}

func newMemProduction(staging *memStaging) *memProduction {
	return &memProduction{
		accounts:    map[int64]account{},
		students:    map[int64]domain.NewStudent{},
		teachers:    map[int64]domain.NewTeacher{},
		staging:     staging,
		failStudent: map[string]bool{},
	}
}

func (m *memProduction) seedStudent(branchID int64, admission, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	acc := account{ID: m.nextID, NewAccount: domain.NewAccount{Username: admission, Email: &email, Role: domain.EntityStudent, BranchID: branchID}}
	m.nextID++
	m.students[m.nextID] = domain.NewStudent{AccountID: acc.ID, BranchID: branchID, AdmissionNumber: admission}
	acc.ProfileID = m.nextID
	m.accounts[acc.ID] = acc
}

func (m *memProduction) seedTeacher(employeeID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.accounts[m.nextID] = account{ID: m.nextID, NewAccount: domain.NewAccount{Username: email, Email: &email, Role: domain.EntityTeacher}}
	m.nextID++
	m.teachers[m.nextID] = domain.NewTeacher{AccountID: m.nextID - 1, EmployeeID: employeeID}
}

func (m *memProduction) ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, email := range emails {
		for _, acc := range m.accounts {
			if acc.Email != nil && *acc.Email == email {
				out[email] = true
			}
		}
	}
	return out, nil
}

func (m *memProduction) ExistingUsernames(ctx context.Context, usernames []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, username := range usernames {
		for _, acc := range m.accounts {
			if acc.Username == username {
				out[username] = true
			}
		}
	}
	return out, nil
}

func (m *memProduction) ExistingAdmissionNumbers(ctx context.Context, branchID int64, numbers []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, number := range numbers {
		for _, student := range m.students {
			if student.BranchID == branchID && student.AdmissionNumber == number {
				out[number] = true
			}
		}
	}
	return out, nil
}

func (m *memProduction) ExistingEmployeeIDs(ctx context.Context, employeeIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range employeeIDs {
		for _, teacher := range m.teachers {
			if teacher.EmployeeID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *memProduction) StudentCount(ctx context.Context, branchID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, student := range m.students {
		if student.BranchID == branchID {
			n++
		}
	}
	return n, nil
}

func (m *memProduction) Count(ctx context.Context, entity domain.EntityType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entity == domain.EntityTeacher {
		return int64(len(m.teachers)), nil
	}
	return int64(len(m.students)), nil
}

// Transact buffers writes and applies them only when fn succeeds.
func (m *memProduction) Transact(ctx context.Context, fn func(tx domain.CommitTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		p:        m,
		accounts: map[int64]account{},
		students: map[int64]domain.NewStudent{},
		teachers: map[int64]domain.NewTeacher{},
		links:    map[int64]int64{},
		marks:    map[int64]int64{},
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, acc := range tx.accounts {
		m.accounts[id] = acc
	}
	for id, profile := range tx.links {
		acc := m.accounts[id]
		acc.ProfileID = profile
		m.accounts[id] = acc
	}
	for id, student := range tx.students {
		m.students[id] = student
	}
	for id, teacher := range tx.teachers {
		m.teachers[id] = teacher
	}
	for rowID, productionID := range tx.marks {
		m.staging.markImported(rowID, productionID)
	}
	return nil
}

type memTx struct {
	p        *memProduction
	accounts map[int64]account
	students map[int64]domain.NewStudent
	teachers map[int64]domain.NewTeacher
	links    map[int64]int64
	marks    map[int64]int64
}

func (tx *memTx) CreateAccount(ctx context.Context, acc domain.NewAccount) (int64, error) {
	for _, existing := range tx.allAccounts() {
		if existing.Username == acc.Username {
			return 0, domain.NewError(domain.ErrCommitConflict, "username %s already exists", acc.Username)
		}
	}
	tx.p.nextID++
	tx.accounts[tx.p.nextID] = account{ID: tx.p.nextID, NewAccount: acc}
	return tx.p.nextID, nil
}

func (tx *memTx) allAccounts() []account {
	out := make([]account, 0, len(tx.p.accounts)+len(tx.accounts))
	for _, acc := range tx.p.accounts {
		out = append(out, acc)
	}
	for _, acc := range tx.accounts {
		out = append(out, acc)
	}
	return out
}

func (tx *memTx) CreateStudent(ctx context.Context, student domain.NewStudent) (int64, error) {
	if tx.p.failStudent[student.AdmissionNumber] {
		return 0, fmt.Errorf("insert student %s: connection reset", student.AdmissionNumber)
	}
	tx.p.nextID++
	tx.students[tx.p.nextID] = student
	return tx.p.nextID, nil
}

func (tx *memTx) CreateTeacher(ctx context.Context, teacher domain.NewTeacher) (int64, error) {
	tx.p.nextID++
	tx.teachers[tx.p.nextID] = teacher
	return tx.p.nextID, nil
}

func (tx *memTx) LinkAccountProfile(ctx context.Context, accountID, profileID int64) error {
	tx.links[accountID] = profileID
	return nil
}

func (tx *memTx) MarkImported(ctx context.Context, entity domain.EntityType, stagingRowID, productionID int64) error {
	tx.marks[stagingRowID] = productionID
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}
