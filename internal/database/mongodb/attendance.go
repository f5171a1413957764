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

type attendanceDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Date      string    `bson:"date"`
	Period    int       `bson:"period"`
	Subject   string    `bson:"subject"`
	Time      string    `bson:"time"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d attendanceDoc) record() database.AttendanceRecord {
	return database.AttendanceRecord{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Date:      d.Date,
		Period:    d.Period,
		Subject:   d.Subject,
		Time:      d.Time,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// AttendanceStore keeps attendance records in the attendance collection.
type AttendanceStore struct {
	c *mongo.Collection
}

// NewAttendanceStore creates an AttendanceStore on the attendance collection of db.
func NewAttendanceStore(db *mongo.Database) *AttendanceStore {
	return &AttendanceStore{c: db.Collection(attendanceCollection)}
}

// UpsertAttendance relies on the unique (owner_id, date, period) index.
// Two concurrent upserts of a missing record can both try to insert; the
// loser gets a duplicate key error and is retried once as a plain update.
func (s *AttendanceStore) UpsertAttendance(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	created, err := s.upsert(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		created, err = s.upsert(ctx, rec)
	}
	if err != nil {
		return false, fmt.Errorf("upsert attendance: %w", err)
	}
	return created, nil
}

func (s *AttendanceStore) upsert(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	newID := rec.ID
	if newID == "" {
		newID = uuid.New().String()
	}
	now := time.Now().UTC()

	filter := bson.M{"owner_id": rec.OwnerID, "date": rec.Date, "period": rec.Period}
	update := bson.M{
		"$set":         bson.M{"subject": rec.Subject, "time": rec.Time, "updated_at": now},
		"$setOnInsert": bson.M{"_id": newID, "created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc attendanceDoc
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return false, err
	}

	*rec = doc.record()
	return doc.ID == newID, nil
}

func (s *AttendanceStore) ListAttendanceByDate(ctx context.Context, date string, period int) ([]database.AttendanceRecord, error) {
	filter := bson.M{"date": date}
	if period > 0 {
		filter["period"] = period
	}

	sort := bson.D{{Key: "period", Value: 1}, {Key: "time", Value: 1}, {Key: "_id", Value: 1}}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	var docs []attendanceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}

	records := make([]database.AttendanceRecord, len(docs))
	for i, d := range docs {
		records[i] = d.record()
	}
	return records, nil
}

// CountAttendanceByOwner relies on YYYY-MM-DD strings sorting chronologically.
func (s *AttendanceStore) CountAttendanceByOwner(ctx context.Context, from, to string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{"_id": "$owner_id", "count": bson.M{"$sum": 1}}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	var rows []struct {
		OwnerID string `bson:"_id"`
		Count   int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode attendance counts: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.OwnerID] = r.Count
	}
	return counts, nil
}
