package database

import (
	"context"
)

// OwnerReader provides read-only access to enrolled owners
type OwnerReader interface {
	// GetOwner retrieves an owner by ID, returns nil if not found
	GetOwner(ctx context.Context, id string) (*Owner, error)
	// GetOwnerByEmail retrieves an owner by email (case-insensitive), returns nil if not found
	GetOwnerByEmail(ctx context.Context, email string) (*Owner, error)
	// ListOwners returns owners ordered by name
	ListOwners(ctx context.Context, filter OwnerFilter) ([]Owner, error)
}

// OwnerWriter provides write access to owners
type OwnerWriter interface {
	OwnerReader

	// CreateOwner stores a new owner, assigning ID and CreatedAt when empty.
	// Returns ErrDuplicateEmail if the folded email is already taken.
	CreateOwner(ctx context.Context, owner *Owner) error
	// DeleteOwner removes an owner and reports whether it existed.
	// Attendance history and descriptors are left in place.
	DeleteOwner(ctx context.Context, id string) (bool, error)
}

// DepartmentStore keeps the deduplicated department list
type DepartmentStore interface {
	// UpsertDepartment records a department name, keyed by its folded form
	UpsertDepartment(ctx context.Context, name string) error
	// ListDepartments returns all departments ordered by name
	ListDepartments(ctx context.Context) ([]Department, error)
}

// AttendanceStore persists attendance records
type AttendanceStore interface {
	// UpsertAttendance creates the record for (OwnerID, Date, Period) or, if it
	// exists, overwrites its Subject and Time. rec.ID is set to the stored ID.
	// Reports whether a new record was created. Must be a single atomic operation.
	UpsertAttendance(ctx context.Context, rec *AttendanceRecord) (bool, error)
	// ListAttendanceByDate returns records of a date; period 0 means all periods
	ListAttendanceByDate(ctx context.Context, date string, period int) ([]AttendanceRecord, error)
	// CountAttendanceByOwner counts records per owner with from <= date <= to
	CountAttendanceByOwner(ctx context.Context, from, to string) (map[string]int, error)
}
