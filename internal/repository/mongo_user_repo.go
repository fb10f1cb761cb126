package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"classroom/internal/database"
	"classroom/internal/models"
)

type userDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Email           string             `bson:"email"`
	PasswordHash    string             `bson:"password_hash,omitempty"`
	Role            string             `bson:"role"`
	OAuthProvider   string             `bson:"oauth_provider,omitempty"`
	OAuthID         string             `bson:"oauth_id,omitempty"`
	ProfilePicture  string             `bson:"profile_picture,omitempty"`
	ClassSubject    string             `bson:"class_subject,omitempty"`
	ProfileComplete bool               `bson:"profile_complete"`
	IsActive        bool               `bson:"is_active"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func newUserDocument(u *models.User) userDocument {
	return userDocument{
		Name:            u.Name,
		Email:           models.NormalizeEmail(u.Email),
		PasswordHash:    u.PasswordHash,
		Role:            string(u.Role),
		OAuthProvider:   u.External.Provider,
		OAuthID:         u.External.Subject,
		ProfilePicture:  u.ProfilePicture,
		ClassSubject:    u.ClassSubject,
		ProfileComplete: u.ProfileComplete,
		IsActive:        u.IsActive,
		CreatedAt:       u.CreatedAt.UTC(),
		UpdatedAt:       u.UpdatedAt.UTC(),
	}
}

func (d userDocument) model() *models.User {
	return &models.User{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Role:            models.Role(d.Role),
		External:        models.ExternalIdentity{Provider: d.OAuthProvider, Subject: d.OAuthID},
		ProfilePicture:  d.ProfilePicture,
		ClassSubject:    d.ClassSubject,
		ProfileComplete: d.ProfileComplete,
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// MongoUserRepository handles MongoDB operations for users
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB user repository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection(database.UsersCollection)}
}

// CreateUser inserts a new user and assigns its ID
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	doc := newUserDocument(user)
	doc.ID = primitive.NewObjectID()
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mongoError("create user", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoError(op, err)
	}
	return doc.model(), nil
}

// GetUserByID retrieves a user by ID, active or not
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, "get user", bson.M{"_id": oid})
}

// GetUserByEmail retrieves the active user with the given normalized email
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "get user by email", bson.M{"email": models.NormalizeEmail(email), "is_active": true})
}

// GetUserByExternalID retrieves the user linked to a provider identity,
// active or not
func (r *MongoUserRepository) GetUserByExternalID(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.findOne(ctx, "get user by external id", bson.M{
		"oauth_provider": provider,
		"oauth_id":       subject,
	})
}

// UpdateUser updates the profile fields of a user
func (r *MongoUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	oid, ok := objectID(user.ID)
	if !ok {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"name":             user.Name,
		"email":            models.NormalizeEmail(user.Email),
		"role":             string(user.Role),
		"profile_picture":  user.ProfilePicture,
		"class_subject":    user.ClassSubject,
		"profile_complete": user.ProfileComplete,
		"updated_at":       user.UpdatedAt.UTC(),
	}}
	return r.updateOne(ctx, "update user", bson.M{"_id": oid}, update)
}

// UpdatePassword replaces the password hash of a user
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": at.UTC()}}
	return r.updateOne(ctx, "update password", bson.M{"_id": oid}, update)
}

// LinkExternalIdentity links a user to a provider identity. It fails with
// ErrConflict when the user is already linked to a different identity.
func (r *MongoUserRepository) LinkExternalIdentity(ctx context.Context, id string, identity models.ExternalIdentity, picture string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrNotFound
	}
	set := bson.M{
		"oauth_provider": identity.Provider,
		"oauth_id":       identity.Subject,
		"updated_at":     at.UTC(),
	}
	if picture != "" {
		set["profile_picture"] = picture
	}
	filter := bson.M{
		"_id": oid,
		"$or": bson.A{
			bson.M{"oauth_id": bson.M{"$exists": false}},
			bson.M{"oauth_provider": identity.Provider, "oauth_id": identity.Subject},
		},
	}

	err := r.updateOne(ctx, "link external identity", filter, bson.M{"$set": set})
	if err == ErrNotFound {
		if _, getErr := r.GetUserByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("user already linked to another identity: %w", ErrConflict)
	}
	return err
}

// DeactivateUser soft-deletes a user
func (r *MongoUserRepository) DeactivateUser(ctx context.Context, id string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": at.UTC()}}
	return r.updateOne(ctx, "deactivate user", bson.M{"_id": oid}, update)
}

func (r *MongoUserRepository) updateOne(ctx context.Context, op string, filter, update bson.M) error {
	result, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongoError(op, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsersByRole retrieves all active users with a role
func (r *MongoUserRepository) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return r.find(ctx, bson.M{"role": string(role), "is_active": true}, opts)
}

// ListUsers retrieves every user, including inactive ones
func (r *MongoUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

// SearchStudentsByEmail retrieves up to limit active students whose email
// contains fragment, ignoring case
func (r *MongoUserRepository) SearchStudentsByEmail(ctx context.Context, fragment string, limit int) ([]models.User, error) {
	filter := bson.M{
		"role":      string(models.RoleStudent),
		"is_active": true,
		"email":     primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"},
	}
	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query users", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode users", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.model())
	}
	return users, nil
}
