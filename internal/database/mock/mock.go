// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Failure returns the injected error for the next FailTimes calls, then nil.
// FailTimes < 0 fails forever. Calls counts every invocation.
type Failure struct {
	Err       error
	FailTimes int
	Calls     int
}

func (f *Failure) next() error {
	f.Calls++
	if f.Err == nil || f.FailTimes == 0 {
		return nil
	}
	if f.FailTimes > 0 {
		f.FailTimes--
	}
	return f.Err
}

// Fail makes the next n calls return err; n < 0 fails every call.
func (f *Failure) Fail(err error, n int) {
	f.Err = err
	f.FailTimes = n
}

// MockOwnerStore is a mock implementation of database.OwnerWriter and database.DepartmentStore
type MockOwnerStore struct {
	mu          sync.RWMutex
	owners      map[string]*database.Owner
	departments map[string]database.Department

	// Error injection
	GetOwnerFail         Failure
	GetByEmailFail       Failure
	ListOwnersFail       Failure
	CreateOwnerFail      Failure
	DeleteOwnerFail      Failure
	UpsertDepartmentFail Failure
	ListDepartmentsFail  Failure
}

// NewMockOwnerStore creates a new mock owner store
func NewMockOwnerStore() *MockOwnerStore {
	return &MockOwnerStore{
		owners:      make(map[string]*database.Owner),
		departments: make(map[string]database.Department),
	}
}

// AddOwner adds an owner to the mock store, bypassing validation
func (m *MockOwnerStore) AddOwner(owner database.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner.EmailCI = database.FoldKey(owner.Email)
	owner.DepartmentKey = database.FoldKey(owner.Department)
	m.owners[owner.ID] = &owner
}

// Len returns the number of owners
func (m *MockOwnerStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}

// CreateOwner stores a new owner
func (m *MockOwnerStore) CreateOwner(ctx context.Context, owner *database.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CreateOwnerFail.next(); err != nil {
		return err
	}

	emailCI := database.FoldKey(owner.Email)
	for _, o := range m.owners {
		if o.EmailCI == emailCI {
			return database.ErrDuplicateEmail
		}
	}
	if owner.ID == "" {
		owner.ID = uuid.New().String()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	owner.EmailCI = emailCI
	owner.DepartmentKey = database.FoldKey(owner.Department)

	stored := *owner
	m.owners[owner.ID] = &stored
	return nil
}

// GetOwner retrieves an owner by ID
func (m *MockOwnerStore) GetOwner(ctx context.Context, id string) (*database.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetOwnerFail.next(); err != nil {
		return nil, err
	}
	o, ok := m.owners[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// GetOwnerByEmail retrieves an owner by folded email
func (m *MockOwnerStore) GetOwnerByEmail(ctx context.Context, email string) (*database.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetByEmailFail.next(); err != nil {
		return nil, err
	}
	key := database.FoldKey(email)
	for _, o := range m.owners {
		if o.EmailCI == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

// ListOwners returns owners ordered by name
func (m *MockOwnerStore) ListOwners(ctx context.Context, filter database.OwnerFilter) ([]database.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ListOwnersFail.next(); err != nil {
		return nil, err
	}
	var out []database.Owner
	for _, o := range m.owners {
		if filter.DepartmentKey != "" && o.DepartmentKey != filter.DepartmentKey {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteOwner removes an owner
func (m *MockOwnerStore) DeleteOwner(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.DeleteOwnerFail.next(); err != nil {
		return false, err
	}
	_, ok := m.owners[id]
	delete(m.owners, id)
	return ok, nil
}

// UpsertDepartment records a department by folded key
func (m *MockOwnerStore) UpsertDepartment(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpsertDepartmentFail.next(); err != nil {
		return err
	}
	name = database.CleanName(name)
	key := database.FoldKey(name)
	if key == "" {
		return nil
	}
	if _, ok := m.departments[key]; !ok {
		m.departments[key] = database.Department{Key: key, Name: name, CreatedAt: time.Now().UTC()}
	}
	return nil
}

// ListDepartments returns departments ordered by name
func (m *MockOwnerStore) ListDepartments(ctx context.Context) ([]database.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ListDepartmentsFail.next(); err != nil {
		return nil, err
	}
	out := make([]database.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type attendanceKey struct {
	ownerID string
	date    string
	period  int
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore
type MockAttendanceStore struct {
	mu      sync.Mutex
	records map[attendanceKey]*database.AttendanceRecord

	// Error injection
	UpsertFail Failure
	ListFail   Failure
	CountFail  Failure
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{
		records: make(map[attendanceKey]*database.AttendanceRecord),
	}
}

// AddRecord adds a record to the mock store, replacing any with the same key
func (m *MockAttendanceStore) AddRecord(rec database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	m.records[attendanceKey{rec.OwnerID, rec.Date, rec.Period}] = &rec
}

// Len returns the number of records
func (m *MockAttendanceStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// UpsertAttendance creates or updates the record for (owner, date, period)
func (m *MockAttendanceStore) UpsertAttendance(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpsertFail.next(); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	key := attendanceKey{rec.OwnerID, rec.Date, rec.Period}
	if existing, ok := m.records[key]; ok {
		existing.Subject = rec.Subject
		existing.Time = rec.Time
		existing.UpdatedAt = now
		*rec = *existing
		return false, nil
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := *rec
	m.records[key] = &stored
	return true, nil
}

// ListAttendanceByDate returns records of a date ordered by period and time
func (m *MockAttendanceStore) ListAttendanceByDate(ctx context.Context, date string, period int) ([]database.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ListFail.next(); err != nil {
		return nil, err
	}
	var out []database.AttendanceRecord
	for k, r := range m.records {
		if k.date != date || (period > 0 && k.period != period) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountAttendanceByOwner counts records per owner in the inclusive date range
func (m *MockAttendanceStore) CountAttendanceByOwner(ctx context.Context, from, to string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CountFail.next(); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for k := range m.records {
		if k.date >= from && k.date <= to {
			counts[k.ownerID]++
		}
	}
	return counts, nil
}

// NewBackend returns a database.Backend backed by fresh mock stores.
func NewBackend() (*database.Backend, *MockOwnerStore, *MockAttendanceStore) {
	owners := NewMockOwnerStore()
	attendance := NewMockAttendanceStore()
	return &database.Backend{
		Name:        "mock",
		Owners:      owners,
		Departments: owners,
		Attendance:  attendance,
	}, owners, attendance
}
