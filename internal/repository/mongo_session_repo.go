package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"classroom/internal/database"
	"classroom/internal/models"
)

type sessionDocument struct {
	TokenHash string    `bson:"token_hash"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoSessionRepository handles MongoDB operations for sessions. The TTL
// index on expires_at purges expired documents in the background.
type MongoSessionRepository struct {
	col *mongo.Collection
}

// NewMongoSessionRepository creates a new MongoDB session repository
func NewMongoSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{col: db.Collection(database.SessionsCollection)}
}

// CreateSession stores a new session
func (r *MongoSessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	doc := sessionDocument{
		TokenHash: session.TokenHash,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mongoError("create session", err)
	}
	return nil
}

// GetSession retrieves a session by token digest. Expiry is left to the caller.
func (r *MongoSessionRepository) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var doc sessionDocument
	if err := r.col.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc); err != nil {
		return nil, mongoError("get session", err)
	}
	return &models.Session{
		TokenHash: doc.TokenHash,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (r *MongoSessionRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"token_hash": tokenHash}); err != nil {
		return mongoError("delete session", err)
	}
	return nil
}

// DeleteUserSessions removes every session of a user
func (r *MongoSessionRepository) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	result, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, mongoError("delete user sessions", err)
	}
	return result.DeletedCount, nil
}

// DeleteExpiredSessions removes all sessions expired at now
func (r *MongoSessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, mongoError("delete expired sessions", err)
	}
	return result.DeletedCount, nil
}

type resetTokenDocument struct {
	TokenHash string    `bson:"token_hash"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
	Used      bool      `bson:"used"`
}

func (d resetTokenDocument) model() *models.PasswordResetToken {
	return &models.PasswordResetToken{
		TokenHash: d.TokenHash,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
		Used:      d.Used,
	}
}

// MongoResetTokenRepository handles MongoDB operations for reset tokens
type MongoResetTokenRepository struct {
	col *mongo.Collection
}

// NewMongoResetTokenRepository creates a new MongoDB reset token repository
func NewMongoResetTokenRepository(db *mongo.Database) *MongoResetTokenRepository {
	return &MongoResetTokenRepository{col: db.Collection(database.ResetTokensCollection)}
}

// CreateResetToken stores a new reset token
func (r *MongoResetTokenRepository) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	doc := resetTokenDocument{
		TokenHash: token.TokenHash,
		UserID:    token.UserID,
		CreatedAt: token.CreatedAt.UTC(),
		ExpiresAt: token.ExpiresAt.UTC(),
		Used:      token.Used,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mongoError("create reset token", err)
	}
	return nil
}

// GetResetToken retrieves a reset token by digest
func (r *MongoResetTokenRepository) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	var doc resetTokenDocument
	if err := r.col.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc); err != nil {
		return nil, mongoError("get reset token", err)
	}
	return doc.model(), nil
}

// ConsumeResetToken marks the token used if it is still unused and unexpired.
// FindOneAndUpdate is atomic on the single document.
func (r *MongoResetTokenRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	filter := bson.M{
		"token_hash": tokenHash,
		"used":       false,
		"expires_at": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{"$set": bson.M{"used": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc resetTokenDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, mongoError("consume reset token", err)
	}
	return doc.model(), nil
}

// DeleteUserResetTokens removes all reset tokens of a user
func (r *MongoResetTokenRepository) DeleteUserResetTokens(ctx context.Context, userID string) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return mongoError("delete user reset tokens", err)
	}
	return nil
}

// DeleteExpiredResetTokens removes all reset tokens expired at now
func (r *MongoResetTokenRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, mongoError("delete expired reset tokens", err)
	}
	return result.DeletedCount, nil
}
