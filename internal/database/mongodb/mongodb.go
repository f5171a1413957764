// Package mongodb implements the storage backend on MongoDB.
//
// Collections mirror the layout used by the attendance frontend: users,
// attendance and departments. Uniqueness is enforced by indexes, so
// concurrent writers cannot create duplicate owners or attendance records.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "student_attendance_system"

	usersCollection       = "users"
	attendanceCollection  = "attendance"
	departmentsCollection = "departments"
)

// Connect opens a client, verifies it with a ping and ensures indexes.
func Connect(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	uri := cfg.URI
	if uri == "" {
		uri = defaultURI
	}
	name := cfg.Database
	if name == "" {
		name = defaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(name)
	if err := EnsureIndexes(ctx, db); err != nil {
		client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, db, nil
}

// EnsureIndexes creates the unique indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email_ci", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "department_key", Value: 1}, {Key: "name", Value: 1}}},
		},
		attendanceCollection: {
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: 1}, {Key: "period", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "period", Value: 1}}},
		},
		departmentsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// isNotFound reports a FindOne miss.
func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Register registers the MongoDB backend under config.BackendMongo.
func Register(cfg *config.MongoConfig) {
	database.RegisterBackend(config.BackendMongo, func(ctx context.Context) (*database.Backend, error) {
		client, db, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		owners := NewOwnerStore(db)
		return &database.Backend{
			Owners:      owners,
			Departments: owners,
			Attendance:  NewAttendanceStore(db),
			Close:       client.Disconnect,
		}, nil
	})
}
