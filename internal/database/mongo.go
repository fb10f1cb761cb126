package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names of the document store
const (
	UsersCollection         = "users"
	SessionsCollection      = "sessions"
	ResetTokensCollection   = "reset_tokens"
	ClassesCollection       = "classes"
	AssignmentsCollection   = "assignments"
	SubmissionsCollection   = "submissions"
	GradesCollection        = "grades"
	AnnouncementsCollection = "announcements"
	CoursesCollection       = "courses"
	EnrollmentsCollection   = "enrollments"
	ExamsCollection         = "exams"
	ExamResultsCollection   = "exam_results"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping
func ConnectMongo(ctx context.Context, uri, dbName string, logger *zap.SugaredLogger) (*mongo.Database, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Errorw("MongoDB connection failed", "error", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		logger.Errorw("MongoDB ping failed", "error", err)
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logger.Infow("MongoDB connected", "database", dbName)
	return client.Database(dbName), client, nil
}

// EnsureIndexes creates the unique, lookup and TTL indexes the repositories rely on.
// Creating an index that already exists with the same options is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				// Email is unique among active users only, so a soft-deleted
				// account does not block re-registration
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().
					SetName("uniq_active_email").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{
				Keys: bson.D{{Key: "oauth_provider", Value: 1}, {Key: "oauth_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_external_identity").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"oauth_id": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		SessionsCollection: {
			{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		ResetTokensCollection: {
			{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		ClassesCollection: {
			{Keys: bson.D{{Key: "teacher_id", Value: 1}}},
			{Keys: bson.D{{Key: "students", Value: 1}}},
		},
		AssignmentsCollection: {
			{Keys: bson.D{{Key: "class_id", Value: 1}}},
			{Keys: bson.D{{Key: "teacher_id", Value: 1}}},
			{Keys: bson.D{{Key: "due_date", Value: 1}}},
		},
		SubmissionsCollection: {
			{Keys: bson.D{{Key: "assignment_id", Value: 1}}},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
			{Keys: bson.D{{Key: "submitted_at", Value: -1}}},
		},
		GradesCollection: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "assignment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "assignment_id", Value: 1}}},
		},
		AnnouncementsCollection: {
			{Keys: bson.D{{Key: "class_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CoursesCollection: {
			{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		EnrollmentsCollection: {
			{
				Keys:    bson.D{{Key: "course_id", Value: 1}, {Key: "student_id", Value: 1}},
				Options: options.Index().SetName("uniq_enrollment").SetUnique(true),
			},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
		ExamsCollection: {
			{Keys: bson.D{{Key: "course_id", Value: 1}, {Key: "startDate", Value: -1}}},
			{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ExamResultsCollection: {
			{
				// Guests have no student_id and may submit any number of times
				Keys: bson.D{{Key: "exam_id", Value: 1}, {Key: "student_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_exam_student").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"student_id": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "student_id", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
