package userstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/normalize"
	"github.com/dalemusser/crmhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when the subject id or email already belongs to another user.
	ErrDuplicate = errors.New("a user with this subject or email already exists")
	// ErrVersionConflict is returned by Save when the document changed since it was read.
	ErrVersionConflict = errors.New("user was modified concurrently")

	errSubjectNeeded = errors.New("subject_id is required")
	errEmailNeeded   = errors.New("email is required")
	errBadGlobalRole = errors.New(`global_role must be "user" or "super_admin"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetBySubject loads a user by external subject id.
func (s *Store) GetBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"subject_id": subjectID})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new, active user after normalizing & validating fields.
// The returned user carries its generated ID and Version 1.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	if u.GlobalRole == "" {
		u.GlobalRole = models.GlobalRoleUser
	}
	if u.Companies == nil {
		u.Companies = []models.Membership{}
	}
	if err := validate(&u); err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.IsActive = true
	u.Version = 1

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, err
	}
	return u, nil
}

// Save replaces the stored document with u if, and only if, the stored
// version still equals u.Version. On success u.Version is incremented.
// Membership invariants are re-checked on every save.
func (s *Store) Save(ctx context.Context, u *models.User) error {
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	if err := validate(u); err != nil {
		return err
	}

	next := *u
	next.Version = u.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": u.ID, "version": u.Version}, next)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	*u = next
	return nil
}

// SetActive flips the soft-delete flag without touching memberships.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSuperAdmins returns every user whose stored global role is super_admin.
func (s *Store) ListSuperAdmins(ctx context.Context) ([]models.User, error) {
	return s.find(ctx, bson.M{"global_role": models.GlobalRoleSuperAdmin}, nil)
}

// ListByCompany returns active users holding an active membership in companyID,
// sorted by display name.
func (s *Store) ListByCompany(ctx context.Context, companyID primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{
		"is_active": true,
		"companies": bson.M{"$elemMatch": bson.M{"company_id": companyID, "is_active": true}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, filter, opts)
}

// SearchFilter narrows the platform user listing.
type SearchFilter struct {
	Query           string // prefix of display name or email
	IncludeInactive bool
	Limit           int64
	Offset          int64
}

// Search lists users for the platform console. Inactive users are excluded
// unless IncludeInactive is set.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]models.User, error) {
	filter := bson.M{}
	if !f.IncludeInactive {
		filter["is_active"] = true
	}
	if q := text.Fold(f.Query); q != "" {
		prefix := "^" + regexp.QuoteMeta(q)
		filter["$or"] = bson.A{
			bson.M{"display_name_ci": bson.M{"$regex": prefix}},
			bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(normalize.Email(f.Query))}},
		}
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(f.Offset)
	return s.find(ctx, filter, opts)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = s.c.Find(ctx, filter, opts)
	} else {
		cur, err = s.c.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validate(u *models.User) error {
	if u.SubjectID == "" {
		return errSubjectNeeded
	}
	if u.Email == "" {
		return errEmailNeeded
	}
	switch u.GlobalRole {
	case models.GlobalRoleUser, models.GlobalRoleSuperAdmin:
	default:
		return errBadGlobalRole
	}
	return CheckMemberships(u.Companies)
}

// CheckMemberships enforces the membership invariants: every role is one of
// the four company roles, joined_at is set, and no company has more than one
// active membership.
func CheckMemberships(ms []models.Membership) error {
	active := make(map[primitive.ObjectID]struct{}, len(ms))
	for i, m := range ms {
		if m.CompanyID.IsZero() {
			return fmt.Errorf("membership %d: company_id is required", i)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("membership %d: unknown role %q", i, string(m.Role))
		}
		if m.JoinedAt.IsZero() {
			return fmt.Errorf("membership %d: joined_at is required", i)
		}
		if !m.IsActive {
			continue
		}
		if _, dup := active[m.CompanyID]; dup {
			return fmt.Errorf("membership %d: second active membership for company %s", i, m.CompanyID.Hex())
		}
		active[m.CompanyID] = struct{}{}
	}
	return nil
}
