package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"classroom/internal/database"
	"classroom/internal/models"
)

type classDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"class_name"`
	TeacherID   string             `bson:"teacher_id"`
	Description string             `bson:"description"`
	Subject     string             `bson:"subject"`
	Students    []string           `bson:"students"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d classDocument) model() models.Class {
	students := d.Students
	if students == nil {
		students = []string{}
	}
	return models.Class{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		TeacherID:   d.TeacherID,
		Description: d.Description,
		Subject:     d.Subject,
		StudentIDs:  students,
		CreatedAt:   d.CreatedAt,
	}
}

type assignmentDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ClassID     string             `bson:"class_id"`
	TeacherID   string             `bson:"teacher_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	DueDate     *time.Time         `bson:"due_date,omitempty"`
	MaxPoints   float64            `bson:"max_points"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type submissionDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AssignmentID string             `bson:"assignment_id"`
	StudentID    string             `bson:"student_id"`
	Content      string             `bson:"content"`
	FileURL      string             `bson:"file_url,omitempty"`
	SubmittedAt  time.Time          `bson:"submitted_at"`
}

type gradeDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	StudentID    string             `bson:"student_id"`
	AssignmentID string             `bson:"assignment_id"`
	Points       float64            `bson:"points"`
	MaxPoints    float64            `bson:"max_points"`
	Feedback     string             `bson:"feedback"`
	GradedBy     string             `bson:"graded_by"`
	GradedAt     time.Time          `bson:"graded_at"`
}

type announcementDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ClassID   string             `bson:"class_id"`
	TeacherID string             `bson:"teacher_id"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

// MongoClassroomRepository handles MongoDB operations for classes and coursework
type MongoClassroomRepository struct {
	classes       *mongo.Collection
	assignments   *mongo.Collection
	submissions   *mongo.Collection
	grades        *mongo.Collection
	announcements *mongo.Collection
}

// NewMongoClassroomRepository creates a new MongoDB classroom repository
func NewMongoClassroomRepository(db *mongo.Database) *MongoClassroomRepository {
	return &MongoClassroomRepository{
		classes:       db.Collection(database.ClassesCollection),
		assignments:   db.Collection(database.AssignmentsCollection),
		submissions:   db.Collection(database.SubmissionsCollection),
		grades:        db.Collection(database.GradesCollection),
		announcements: db.Collection(database.AnnouncementsCollection),
	}
}

// CreateClass inserts a class
func (r *MongoClassroomRepository) CreateClass(ctx context.Context, class *models.Class) error {
	students := class.StudentIDs
	if students == nil {
		students = []string{}
	}
	doc := classDocument{
		ID:          primitive.NewObjectID(),
		Name:        class.Name,
		TeacherID:   class.TeacherID,
		Description: class.Description,
		Subject:     class.Subject,
		Students:    students,
		CreatedAt:   class.CreatedAt.UTC(),
	}
	if _, err := r.classes.InsertOne(ctx, doc); err != nil {
		return mongoError("create class", err)
	}
	class.ID = doc.ID.Hex()
	return nil
}

// GetClass retrieves a class by ID
func (r *MongoClassroomRepository) GetClass(ctx context.Context, id string) (*models.Class, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc classDocument
	if err := r.classes.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoError("get class", err)
	}
	class := doc.model()
	return &class, nil
}

// AddStudentToClass enrolls a student; $addToSet makes it idempotent
func (r *MongoClassroomRepository) AddStudentToClass(ctx context.Context, classID, studentID string, at time.Time) error {
	oid, ok := objectID(classID)
	if !ok {
		return ErrNotFound
	}
	result, err := r.classes.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"students": studentID}})
	if err != nil {
		return mongoError("add student to class", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClassesByTeacher retrieves the classes taught by a teacher
func (r *MongoClassroomRepository) ListClassesByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	return r.findClasses(ctx, bson.M{"teacher_id": teacherID})
}

// ListClassesByStudent retrieves the classes a student is enrolled in
func (r *MongoClassroomRepository) ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	return r.findClasses(ctx, bson.M{"students": studentID})
}

func (r *MongoClassroomRepository) findClasses(ctx context.Context, filter bson.M) ([]models.Class, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.classes.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query classes", err)
	}
	var docs []classDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode classes", err)
	}
	classes := make([]models.Class, 0, len(docs))
	for _, d := range docs {
		classes = append(classes, d.model())
	}
	return classes, nil
}

// CreateAssignment inserts a new assignment
func (r *MongoClassroomRepository) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	doc := assignmentDocument{
		ID:          primitive.NewObjectID(),
		ClassID:     a.ClassID,
		TeacherID:   a.TeacherID,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate,
		MaxPoints:   a.MaxPoints,
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if _, err := r.assignments.InsertOne(ctx, doc); err != nil {
		return mongoError("create assignment", err)
	}
	a.ID = doc.ID.Hex()
	return nil
}

// GetAssignment retrieves an assignment by ID
func (r *MongoClassroomRepository) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc assignmentDocument
	if err := r.assignments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoError("get assignment", err)
	}
	return &models.Assignment{
		ID:          doc.ID.Hex(),
		ClassID:     doc.ClassID,
		TeacherID:   doc.TeacherID,
		Title:       doc.Title,
		Description: doc.Description,
		DueDate:     doc.DueDate,
		MaxPoints:   doc.MaxPoints,
		CreatedAt:   doc.CreatedAt,
	}, nil
}

// CreateSubmission inserts a student's submission
func (r *MongoClassroomRepository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	doc := submissionDocument{
		ID:           primitive.NewObjectID(),
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Content:      s.Content,
		FileURL:      s.FileURL,
		SubmittedAt:  s.SubmittedAt.UTC(),
	}
	if _, err := r.submissions.InsertOne(ctx, doc); err != nil {
		return mongoError("create submission", err)
	}
	s.ID = doc.ID.Hex()
	return nil
}

// ListSubmissions retrieves the submissions of an assignment, newest first
func (r *MongoClassroomRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.submissions.Find(ctx, bson.M{"assignment_id": assignmentID}, opts)
	if err != nil {
		return nil, mongoError("query submissions", err)
	}
	var docs []submissionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode submissions", err)
	}
	submissions := make([]models.Submission, 0, len(docs))
	for _, d := range docs {
		submissions = append(submissions, models.Submission{
			ID:           d.ID.Hex(),
			AssignmentID: d.AssignmentID,
			StudentID:    d.StudentID,
			Content:      d.Content,
			FileURL:      d.FileURL,
			SubmittedAt:  d.SubmittedAt,
		})
	}
	return submissions, nil
}

// UpsertGrade inserts or replaces the grade for the student and assignment
func (r *MongoClassroomRepository) UpsertGrade(ctx context.Context, g *models.Grade) error {
	filter := bson.M{"student_id": g.StudentID, "assignment_id": g.AssignmentID}
	update := bson.M{"$set": bson.M{
		"points":     g.Points,
		"max_points": g.MaxPoints,
		"feedback":   g.Feedback,
		"graded_by":  g.GradedBy,
		"graded_at":  g.GradedAt.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc gradeDocument
	if err := r.grades.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return mongoError("upsert grade", err)
	}
	g.ID = doc.ID.Hex()
	return nil
}

// ListGradesByStudent retrieves all grades of a student
func (r *MongoClassroomRepository) ListGradesByStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	opts := options.Find().SetSort(bson.D{{Key: "graded_at", Value: -1}})
	cursor, err := r.grades.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, mongoError("query grades", err)
	}
	var docs []gradeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode grades", err)
	}
	grades := make([]models.Grade, 0, len(docs))
	for _, d := range docs {
		grades = append(grades, models.Grade{
			ID:           d.ID.Hex(),
			StudentID:    d.StudentID,
			AssignmentID: d.AssignmentID,
			Points:       d.Points,
			MaxPoints:    d.MaxPoints,
			Feedback:     d.Feedback,
			GradedBy:     d.GradedBy,
			GradedAt:     d.GradedAt,
		})
	}
	return grades, nil
}

// CreateAnnouncement inserts a class announcement
func (r *MongoClassroomRepository) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	doc := announcementDocument{
		ID:        primitive.NewObjectID(),
		ClassID:   a.ClassID,
		TeacherID: a.TeacherID,
		Title:     a.Title,
		Content:   a.Content,
		CreatedAt: a.CreatedAt.UTC(),
	}
	if _, err := r.announcements.InsertOne(ctx, doc); err != nil {
		return mongoError("create announcement", err)
	}
	a.ID = doc.ID.Hex()
	return nil
}

// ListAnnouncements retrieves the most recent announcements of a class
func (r *MongoClassroomRepository) ListAnnouncements(ctx context.Context, classID string, limit int) ([]models.Announcement, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.announcements.Find(ctx, bson.M{"class_id": classID}, opts)
	if err != nil {
		return nil, mongoError("query announcements", err)
	}
	var docs []announcementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode announcements", err)
	}
	announcements := make([]models.Announcement, 0, len(docs))
	for _, d := range docs {
		announcements = append(announcements, models.Announcement{
			ID:        d.ID.Hex(),
			ClassID:   d.ClassID,
			TeacherID: d.TeacherID,
			Title:     d.Title,
			Content:   d.Content,
			CreatedAt: d.CreatedAt,
		})
	}
	return announcements, nil
}
