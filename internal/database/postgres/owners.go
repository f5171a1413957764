package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// OwnerRepository provides PostgreSQL-backed owner and department storage
type OwnerRepository struct {
	pool *Pool
}

// NewOwnerRepository creates a new OwnerRepository
func NewOwnerRepository(pool *Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

func newID() string {
	return uuid.New().String()
}

const ownerColumns = `id, name, email, email_ci, department, department_key, created_at`

func scanOwner(row interface{ Scan(...any) error }) (*database.Owner, error) {
	var o database.Owner
	if err := row.Scan(&o.ID, &o.Name, &o.Email, &o.EmailCI, &o.Department, &o.DepartmentKey, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// --- Owners ---

func (r *OwnerRepository) CreateOwner(ctx context.Context, owner *database.Owner) error {
	if owner.ID == "" {
		owner.ID = newID()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	owner.EmailCI = database.FoldKey(owner.Email)
	owner.DepartmentKey = database.FoldKey(owner.Department)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO owners (`+ownerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		owner.ID, owner.Name, owner.Email, owner.EmailCI, owner.Department, owner.DepartmentKey, owner.CreatedAt)
	if isUniqueViolation(err) {
		return database.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	return nil
}

func (r *OwnerRepository) GetOwner(ctx context.Context, id string) (*database.Owner, error) {
	o, err := scanOwner(r.pool.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

func (r *OwnerRepository) GetOwnerByEmail(ctx context.Context, email string) (*database.Owner, error) {
	o, err := scanOwner(r.pool.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE email_ci = $1`, database.FoldKey(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner by email: %w", err)
	}
	return o, nil
}

func (r *OwnerRepository) ListOwners(ctx context.Context, filter database.OwnerFilter) ([]database.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners`
	var args []any
	if filter.DepartmentKey != "" {
		query += ` WHERE department_key = $1`
		args = append(args, filter.DepartmentKey)
	}
	query += ` ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []database.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}
	return owners, nil
}

func (r *OwnerRepository) DeleteOwner(ctx context.Context, id string) (bool, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete owner: %w", err)
	}
	return n > 0, nil
}

// --- Departments ---

func (r *OwnerRepository) UpsertDepartment(ctx context.Context, name string) error {
	name = database.CleanName(name)
	key := database.FoldKey(name)
	if key == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO departments (key, name) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, key, name)
	if err != nil {
		return fmt.Errorf("upsert department: %w", err)
	}
	return nil
}

func (r *OwnerRepository) ListDepartments(ctx context.Context) ([]database.Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, name, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var departments []database.Department
	for rows.Next() {
		var d database.Department
		if err := rows.Scan(&d.Key, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return departments, nil
}
