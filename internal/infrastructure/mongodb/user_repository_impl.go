package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/oksasatya/lms-backend/internal/domain/entity"
	"github.com/oksasatya/lms-backend/internal/domain/repository"
)

const usersCollection = "users"

type avatarDoc struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
}

type enrollmentDoc struct {
	CourseID string `bson:"courseId"`
}

// userDoc mirrors the stored document; field names follow the users collection.
type userDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Password   string             `bson:"password"`
	Avatar     *avatarDoc         `bson:"avatar,omitempty"`
	Role       string             `bson:"role"`
	IsVerified bool               `bson:"isVerified"`
	Courses    []enrollmentDoc    `bson:"courses"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

type UserRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

func NewUserRepository(client *mongo.Client, database string) *UserRepository {
	return &UserRepository{
		client: client,
		coll:   client.Database(database).Collection(usersCollection),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique email index that backs ErrDuplicateEmail.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	return err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	doc := toDoc(u)
	doc.ID = primitive.NewObjectID()
	now := r.now()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}
	u.ID = doc.ID.Hex()
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return repository.ErrNotFound
	}
	doc := toDoc(u)
	now := r.now()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":       doc.Name,
		"email":      doc.Email,
		"password":   doc.Password,
		"avatar":     doc.Avatar,
		"role":       doc.Role,
		"isVerified": doc.IsVerified,
		"courses":    doc.Courses,
		"updatedAt":  now,
	}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return fromDoc(doc), nil
}

func mapError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateEmail
	}
	return err
}

func toDoc(u *entity.User) userDoc {
	doc := userDoc{
		Name:       u.Name,
		Email:      u.Email,
		Password:   u.Password,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Courses:    make([]enrollmentDoc, 0, len(u.Enrollments)),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if u.Avatar != nil {
		doc.Avatar = &avatarDoc{PublicID: u.Avatar.PublicID, URL: u.Avatar.URL}
	}
	for _, e := range u.Enrollments {
		doc.Courses = append(doc.Courses, enrollmentDoc{CourseID: e.CourseID})
	}
	return doc
}

func fromDoc(doc userDoc) *entity.User {
	u := &entity.User{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		Email:       doc.Email,
		Password:    doc.Password,
		Role:        doc.Role,
		IsVerified:  doc.IsVerified,
		Enrollments: make([]entity.Enrollment, 0, len(doc.Courses)),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Avatar != nil {
		u.Avatar = &entity.Avatar{PublicID: doc.Avatar.PublicID, URL: doc.Avatar.URL}
	}
	for _, c := range doc.Courses {
		u.Enrollments = append(u.Enrollments, entity.Enrollment{CourseID: c.CourseID})
	}
	u.ApplyDefaults()
	u.MarkPersisted()
	return u
}

var _ repository.UserRepository = (*UserRepository)(nil)
