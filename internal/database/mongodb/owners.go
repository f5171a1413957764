package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ownerDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Email         string    `bson:"email"`
	EmailCI       string    `bson:"email_ci"`
	Department    string    `bson:"department"`
	DepartmentKey string    `bson:"department_key"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (d ownerDoc) owner() database.Owner {
	return database.Owner{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		EmailCI:       d.EmailCI,
		Department:    d.Department,
		DepartmentKey: d.DepartmentKey,
		CreatedAt:     d.CreatedAt,
	}
}

type departmentDoc struct {
	Key       string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

// OwnerStore keeps owners in the users collection and departments in their own.
type OwnerStore struct {
	users       *mongo.Collection
	departments *mongo.Collection
}

// NewOwnerStore creates an OwnerStore on the users and departments collections of db.
func NewOwnerStore(db *mongo.Database) *OwnerStore {
	return &OwnerStore{
		users:       db.Collection(usersCollection),
		departments: db.Collection(departmentsCollection),
	}
}

// CreateOwner inserts a new owner, setting EmailCI/DepartmentKey and CreatedAt.
func (s *OwnerStore) CreateOwner(ctx context.Context, owner *database.Owner) error {
	if owner.ID == "" {
		owner.ID = uuid.New().String()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	owner.EmailCI = database.FoldKey(owner.Email)
	owner.DepartmentKey = database.FoldKey(owner.Department)

	_, err := s.users.InsertOne(ctx, ownerDoc{
		ID:            owner.ID,
		Name:          owner.Name,
		Email:         owner.Email,
		EmailCI:       owner.EmailCI,
		Department:    owner.Department,
		DepartmentKey: owner.DepartmentKey,
		CreatedAt:     owner.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return database.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	return nil
}

func (s *OwnerStore) findOne(ctx context.Context, filter bson.M) (*database.Owner, error) {
	var doc ownerDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := doc.owner()
	return &o, nil
}

// GetOwner returns nil, nil when no owner has the id.
func (s *OwnerStore) GetOwner(ctx context.Context, id string) (*database.Owner, error) {
	o, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

// GetOwnerByEmail matches the email case-insensitively, nil, nil when unknown.
func (s *OwnerStore) GetOwnerByEmail(ctx context.Context, email string) (*database.Owner, error) {
	o, err := s.findOne(ctx, bson.M{"email_ci": database.FoldKey(email)})
	if err != nil {
		return nil, fmt.Errorf("get owner by email: %w", err)
	}
	return o, nil
}

func (s *OwnerStore) ListOwners(ctx context.Context, filter database.OwnerFilter) ([]database.Owner, error) {
	query := bson.M{}
	if filter.DepartmentKey != "" {
		query["department_key"] = filter.DepartmentKey
	}

	cur, err := s.users.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	var docs []ownerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode owners: %w", err)
	}

	owners := make([]database.Owner, len(docs))
	for i, d := range docs {
		owners[i] = d.owner()
	}
	return owners, nil
}

func (s *OwnerStore) DeleteOwner(ctx context.Context, id string) (bool, error) {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete owner: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// UpsertDepartment records the department under its folded key, keeping the
// first spelling seen.
func (s *OwnerStore) UpsertDepartment(ctx context.Context, name string) error {
	name = database.CleanName(name)
	key := database.FoldKey(name)
	if key == "" {
		return nil
	}

	_, err := s.departments.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"name": name, "created_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("upsert department: %w", err)
	}
	return nil
}

func (s *OwnerStore) ListDepartments(ctx context.Context) ([]database.Department, error) {
	cur, err := s.departments.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	var docs []departmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode departments: %w", err)
	}

	departments := make([]database.Department, len(docs))
	for i, d := range docs {
		departments[i] = database.Department{Key: d.Key, Name: d.Name, CreatedAt: d.CreatedAt}
	}
	return departments, nil
}
