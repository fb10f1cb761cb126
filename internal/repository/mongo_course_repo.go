package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"classroom/internal/database"
	"classroom/internal/models"
)

type courseDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	CreatedBy   string             `bson:"created_by"`
	Name        string             `bson:"name"`
	TeacherName string             `bson:"teacherName"`
	Subject     string             `bson:"subject"`
	Schedule    string             `bson:"schedule"`
	Location    string             `bson:"location"`
	ContactInfo string             `bson:"contactInfo"`
	Fees        string             `bson:"fees"`
	Description string             `bson:"description"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d courseDocument) model() models.Course {
	return models.Course{
		ID:          d.ID.Hex(),
		OwnerID:     d.CreatedBy,
		Name:        d.Name,
		TeacherName: d.TeacherName,
		Subject:     d.Subject,
		Schedule:    d.Schedule,
		Location:    d.Location,
		ContactInfo: d.ContactInfo,
		Fees:        d.Fees,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type enrollmentDocument struct {
	CourseID   string    `bson:"course_id"`
	StudentID  string    `bson:"student_id"`
	TeacherID  string    `bson:"teacher_id"`
	EnrolledAt time.Time `bson:"enrolled_at"`
}

func (d enrollmentDocument) model() models.Enrollment {
	return models.Enrollment(d)
}

type examDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	CourseID        string             `bson:"course_id,omitempty"`
	CreatedBy       string             `bson:"created_by"`
	Title           string             `bson:"title"`
	Description     string             `bson:"description"`
	Subject         string             `bson:"subject"`
	Instructions    string             `bson:"instructions"`
	DurationMinutes int                `bson:"duration"`
	TotalMarks      float64            `bson:"totalMarks"`
	StartDate       *time.Time         `bson:"startDate,omitempty"`
	EndDate         *time.Time         `bson:"endDate,omitempty"`
	Questions       string             `bson:"questions"`
	IsPublic        bool               `bson:"is_public"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func (d examDocument) model() models.Exam {
	return models.Exam{
		ID:              d.ID.Hex(),
		CourseID:        d.CourseID,
		CreatedBy:       d.CreatedBy,
		Title:           d.Title,
		Description:     d.Description,
		Subject:         d.Subject,
		Instructions:    d.Instructions,
		DurationMinutes: d.DurationMinutes,
		TotalMarks:      d.TotalMarks,
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		Questions:       json.RawMessage(jsonText([]byte(d.Questions))),
		IsPublic:        d.IsPublic,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type guestDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

type examResultDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ExamID      string             `bson:"exam_id"`
	CourseID    string             `bson:"course_id,omitempty"`
	StudentID   string             `bson:"student_id,omitempty"`
	Guest       *guestDocument     `bson:"student_info,omitempty"`
	Score       float64            `bson:"score"`
	TotalMarks  float64            `bson:"totalMarks"`
	Answers     string             `bson:"answers"`
	Reviewed    bool               `bson:"reviewed"`
	ReviewedAt  *time.Time         `bson:"reviewed_at,omitempty"`
	SubmittedAt time.Time          `bson:"submitted_at"`
}

func (d examResultDocument) model() models.ExamResult {
	r := models.ExamResult{
		ID:          d.ID.Hex(),
		ExamID:      d.ExamID,
		CourseID:    d.CourseID,
		StudentID:   d.StudentID,
		Score:       d.Score,
		TotalMarks:  d.TotalMarks,
		Answers:     json.RawMessage(jsonText([]byte(d.Answers))),
		Reviewed:    d.Reviewed,
		ReviewedAt:  d.ReviewedAt,
		SubmittedAt: d.SubmittedAt,
	}
	if d.Guest != nil {
		r.Guest = models.GuestInfo(*d.Guest)
	}
	return r
}

// MongoCourseRepository handles MongoDB operations for courses, enrollments,
// exams and exam results
type MongoCourseRepository struct {
	courses     *mongo.Collection
	enrollments *mongo.Collection
	exams       *mongo.Collection
	results     *mongo.Collection
}

// NewMongoCourseRepository creates a new MongoDB course repository
func NewMongoCourseRepository(db *mongo.Database) *MongoCourseRepository {
	return &MongoCourseRepository{
		courses:     db.Collection(database.CoursesCollection),
		enrollments: db.Collection(database.EnrollmentsCollection),
		exams:       db.Collection(database.ExamsCollection),
		results:     db.Collection(database.ExamResultsCollection),
	}
}

// CreateCourse inserts a course
func (r *MongoCourseRepository) CreateCourse(ctx context.Context, c *models.Course) error {
	doc := courseDocument{
		ID:          primitive.NewObjectID(),
		CreatedBy:   c.OwnerID,
		Name:        c.Name,
		TeacherName: c.TeacherName,
		Subject:     c.Subject,
		Schedule:    c.Schedule,
		Location:    c.Location,
		ContactInfo: c.ContactInfo,
		Fees:        c.Fees,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
	if _, err := r.courses.InsertOne(ctx, doc); err != nil {
		return mongoError("create course", err)
	}
	c.ID = doc.ID.Hex()
	return nil
}

// GetCourse retrieves a course by ID
func (r *MongoCourseRepository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc courseDocument
	if err := r.courses.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoError("get course", err)
	}
	course := doc.model()
	return &course, nil
}

// ListCoursesByOwner retrieves the courses of a teacher, newest first
func (r *MongoCourseRepository) ListCoursesByOwner(ctx context.Context, ownerID string) ([]models.Course, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.courses.Find(ctx, bson.M{"created_by": ownerID}, opts)
	if err != nil {
		return nil, mongoError("query courses", err)
	}
	var docs []courseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode courses", err)
	}
	courses := make([]models.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.model())
	}
	return courses, nil
}

// UpdateCourse replaces the descriptive fields of a course
func (r *MongoCourseRepository) UpdateCourse(ctx context.Context, c *models.Course) error {
	oid, ok := objectID(c.ID)
	if !ok {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"name":        c.Name,
		"teacherName": c.TeacherName,
		"subject":     c.Subject,
		"schedule":    c.Schedule,
		"location":    c.Location,
		"contactInfo": c.ContactInfo,
		"fees":        c.Fees,
		"description": c.Description,
		"updated_at":  c.UpdatedAt.UTC(),
	}}
	result, err := r.courses.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return mongoError("update course", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCourse removes a course with its enrollments, exams and results
func (r *MongoCourseRepository) DeleteCourse(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrNotFound
	}
	result, err := r.courses.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mongoError("delete course", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.enrollments.DeleteMany(ctx, bson.M{"course_id": id}); err != nil {
		return mongoError("delete course enrollments", err)
	}
	if _, err := r.results.DeleteMany(ctx, bson.M{"course_id": id}); err != nil {
		return mongoError("delete course results", err)
	}
	if _, err := r.exams.DeleteMany(ctx, bson.M{"course_id": id}); err != nil {
		return mongoError("delete course exams", err)
	}
	return nil
}

// Enroll adds a student to a course; the unique index rejects duplicates
func (r *MongoCourseRepository) Enroll(ctx context.Context, e *models.Enrollment) error {
	doc := enrollmentDocument{
		CourseID:   e.CourseID,
		StudentID:  e.StudentID,
		TeacherID:  e.TeacherID,
		EnrolledAt: e.EnrolledAt.UTC(),
	}
	if _, err := r.enrollments.InsertOne(ctx, doc); err != nil {
		return mongoError("enroll student", err)
	}
	return nil
}

// Unenroll removes a student from a course
func (r *MongoCourseRepository) Unenroll(ctx context.Context, courseID, studentID string) error {
	result, err := r.enrollments.DeleteOne(ctx, bson.M{"course_id": courseID, "student_id": studentID})
	if err != nil {
		return mongoError("unenroll student", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IsEnrolled reports whether a student is enrolled in a course
func (r *MongoCourseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	n, err := r.enrollments.CountDocuments(ctx, bson.M{"course_id": courseID, "student_id": studentID})
	if err != nil {
		return false, mongoError("check enrollment", err)
	}
	return n > 0, nil
}

// ListEnrollments retrieves the enrollments of a course in enrollment order
func (r *MongoCourseRepository) ListEnrollments(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "enrolled_at", Value: 1}})
	return r.findEnrollments(ctx, bson.M{"course_id": courseID}, opts)
}

// ListStudentEnrollments retrieves the enrollments of a student, newest first
func (r *MongoCourseRepository) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "enrolled_at", Value: -1}})
	return r.findEnrollments(ctx, bson.M{"student_id": studentID}, opts)
}

func (r *MongoCourseRepository) findEnrollments(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Enrollment, error) {
	cursor, err := r.enrollments.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query enrollments", err)
	}
	var docs []enrollmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode enrollments", err)
	}
	enrollments := make([]models.Enrollment, 0, len(docs))
	for _, d := range docs {
		enrollments = append(enrollments, d.model())
	}
	return enrollments, nil
}

// CreateExam inserts an exam
func (r *MongoCourseRepository) CreateExam(ctx context.Context, e *models.Exam) error {
	doc := examDocument{
		ID:              primitive.NewObjectID(),
		CourseID:        e.CourseID,
		CreatedBy:       e.CreatedBy,
		Title:           e.Title,
		Description:     e.Description,
		Subject:         e.Subject,
		Instructions:    e.Instructions,
		DurationMinutes: e.DurationMinutes,
		TotalMarks:      e.TotalMarks,
		StartDate:       utcTime(e.StartDate),
		EndDate:         utcTime(e.EndDate),
		Questions:       jsonText(e.Questions),
		IsPublic:        e.IsPublic,
		CreatedAt:       e.CreatedAt.UTC(),
		UpdatedAt:       e.UpdatedAt.UTC(),
	}
	if _, err := r.exams.InsertOne(ctx, doc); err != nil {
		return mongoError("create exam", err)
	}
	e.ID = doc.ID.Hex()
	return nil
}

// GetExam retrieves an exam by ID
func (r *MongoCourseRepository) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc examDocument
	if err := r.exams.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoError("get exam", err)
	}
	exam := doc.model()
	return &exam, nil
}

// ListExamsByCourse retrieves the exams of a course, latest start first
func (r *MongoCourseRepository) ListExamsByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}})
	return r.findExams(ctx, bson.M{"course_id": courseID}, opts)
}

// ListExamsByCreator retrieves every exam a teacher created, newest first
func (r *MongoCourseRepository) ListExamsByCreator(ctx context.Context, creatorID string) ([]models.Exam, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findExams(ctx, bson.M{"created_by": creatorID}, opts)
}

// ListOpenExams retrieves the course exams open at now, soonest ending first
func (r *MongoCourseRepository) ListOpenExams(ctx context.Context, courseIDs []string, now time.Time) ([]models.Exam, error) {
	if len(courseIDs) == 0 {
		return []models.Exam{}, nil
	}
	filter := bson.M{
		"course_id": bson.M{"$in": courseIDs},
		"is_public": false,
		"$and": bson.A{
			bson.M{"$or": bson.A{bson.M{"startDate": nil}, bson.M{"startDate": bson.M{"$lte": now.UTC()}}}},
			bson.M{"$or": bson.A{bson.M{"endDate": nil}, bson.M{"endDate": bson.M{"$gte": now.UTC()}}}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "endDate", Value: 1}})
	return r.findExams(ctx, filter, opts)
}

// DeleteExam removes an exam with its results
func (r *MongoCourseRepository) DeleteExam(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrNotFound
	}
	result, err := r.exams.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mongoError("delete exam", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.results.DeleteMany(ctx, bson.M{"exam_id": id}); err != nil {
		return mongoError("delete exam results", err)
	}
	return nil
}

func (r *MongoCourseRepository) findExams(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Exam, error) {
	cursor, err := r.exams.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query exams", err)
	}
	var docs []examDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode exams", err)
	}
	exams := make([]models.Exam, 0, len(docs))
	for _, d := range docs {
		exams = append(exams, d.model())
	}
	return exams, nil
}

// CreateResult inserts an exam result; the partial unique index rejects a
// second result from the same student
func (r *MongoCourseRepository) CreateResult(ctx context.Context, res *models.ExamResult) error {
	doc := examResultDocument{
		ID:          primitive.NewObjectID(),
		ExamID:      res.ExamID,
		CourseID:    res.CourseID,
		StudentID:   res.StudentID,
		Score:       res.Score,
		TotalMarks:  res.TotalMarks,
		Answers:     jsonText(res.Answers),
		Reviewed:    res.Reviewed,
		ReviewedAt:  utcTime(res.ReviewedAt),
		SubmittedAt: res.SubmittedAt.UTC(),
	}
	if res.StudentID == "" {
		guest := guestDocument(res.Guest)
		doc.Guest = &guest
	}
	if _, err := r.results.InsertOne(ctx, doc); err != nil {
		return mongoError("create exam result", err)
	}
	res.ID = doc.ID.Hex()
	return nil
}

// GetResult retrieves an exam result by ID
func (r *MongoCourseRepository) GetResult(ctx context.Context, id string) (*models.ExamResult, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc examResultDocument
	if err := r.results.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mongoError("get exam result", err)
	}
	res := doc.model()
	return &res, nil
}

// ListResultsByExam retrieves the results of an exam, highest score first
func (r *MongoCourseRepository) ListResultsByExam(ctx context.Context, examID string) ([]models.ExamResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "submitted_at", Value: 1}})
	return r.findResults(ctx, bson.M{"exam_id": examID}, opts)
}

// ListStudentResults retrieves a student's results in a course, newest first
func (r *MongoCourseRepository) ListStudentResults(ctx context.Context, courseID, studentID string) ([]models.ExamResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	return r.findResults(ctx, bson.M{"course_id": courseID, "student_id": studentID}, opts)
}

// ReviewResult replaces the score and answers of a result and records the review
func (r *MongoCourseRepository) ReviewResult(ctx context.Context, res *models.ExamResult) error {
	oid, ok := objectID(res.ID)
	if !ok {
		return ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"score":       res.Score,
		"answers":     jsonText(res.Answers),
		"reviewed":    res.Reviewed,
		"reviewed_at": utcTime(res.ReviewedAt),
	}}
	result, err := r.results.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return mongoError("review exam result", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoCourseRepository) findResults(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.ExamResult, error) {
	cursor, err := r.results.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query exam results", err)
	}
	var docs []examResultDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoError("decode exam results", err)
	}
	results := make([]models.ExamResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, d.model())
	}
	return results, nil
}

// utcTime normalizes an optional time for storage
func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
