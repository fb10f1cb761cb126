package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"classroom/internal/database"
)

var (
	_ UserStore       = (*MongoUserRepository)(nil)
	_ SessionStore    = (*MongoSessionRepository)(nil)
	_ ResetTokenStore = (*MongoResetTokenRepository)(nil)
	_ ClassroomStore  = (*MongoClassroomRepository)(nil)
	_ CourseStore     = (*MongoCourseRepository)(nil)
	_ ExamStore       = (*MongoCourseRepository)(nil)
)

// NewMongoStore builds the repositories backed by a MongoDB database.
// Indexes are created separately with database.EnsureIndexes.
func NewMongoStore(db *mongo.Database) *Store {
	courses := NewMongoCourseRepository(db)
	return &Store{
		Users:       NewMongoUserRepository(db),
		Sessions:    NewMongoSessionRepository(db),
		ResetTokens: NewMongoResetTokenRepository(db),
		Classroom:   NewMongoClassroomRepository(db),
		Courses:     courses,
		Exams:       courses,
		ping: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
				return fmt.Errorf("%w: %v", database.ErrUnavailable, err)
			}
			return nil
		},
	}
}

// mongoError translates a driver error into a repository error
func mongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("failed to %s: %w", op, ErrConflict)
	case database.IsUnavailable(err):
		return fmt.Errorf("failed to %s: %w: %v", op, database.ErrUnavailable, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// objectID parses a hex id; malformed ids never match a document
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}
