// internal/app/store/companies/companystore.go
package companystore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/crmhub/internal/app/system/normalize"
	"github.com/dalemusser/crmhub/internal/app/system/timezones"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound     = errors.New("company not found")
	ErrNameRequired = errors.New("company name is required")
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid company settings")
)

var currencyRE = regexp.MustCompile(`^[A-Z]{3}$`)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("companies")}
}

// Create inserts a company. The caller supplies AdminID; ID and timestamps
// are generated here and the company starts active.
func (s *Store) Create(ctx context.Context, co models.Company) (models.Company, error) {
	co.Name = normalize.Name(htmlsanitize.PlainText(co.Name))
	if co.Name == "" {
		return models.Company{}, ErrNameRequired
	}
	now := time.Now().UTC()
	co.ID = primitive.NewObjectID()
	co.NameCI = text.Fold(co.Name)
	settings, err := CleanSettings(co.Settings)
	if err != nil {
		return models.Company{}, err
	}
	co.Settings = settings
	co.IsActive = true
	co.CreatedAt = now
	co.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, co); err != nil {
		return models.Company{}, err
	}
	return co, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Company, error) {
	var co models.Company
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&co)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Company{}, ErrNotFound
		}
		return models.Company{}, err
	}
	return co, nil
}

// GetByIDs loads multiple companies by their ObjectIDs, sorted by name.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
}

// UpdateSettings replaces the settings sub-document and refreshes UpdatedAt.
func (s *Store) UpdateSettings(ctx context.Context, id primitive.ObjectID, settings models.CompanySettings) (models.Company, error) {
	clean, err := CleanSettings(settings)
	if err != nil {
		return models.Company{}, err
	}
	var co models.Company
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"settings":   clean,
			"updated_at": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&co)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Company{}, ErrNotFound
		}
		return models.Company{}, err
	}
	return co, nil
}

// SetActive toggles whether the company is listed and selectable.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter narrows List.
type ListFilter struct {
	Query           string // case-insensitive name prefix
	IncludeInactive bool
	Limit           int64
	Offset          int64
}

// List returns companies ordered by folded name.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Company, error) {
	filter := bson.M{}
	if !f.IncludeInactive {
		filter["is_active"] = true
	}
	if q := text.Fold(f.Query); q != "" {
		filter["name_ci"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q)}
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(f.Offset))
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Company, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Company
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CleanSettings strips markup from every field and validates the ones with
// a fixed shape. Empty values are allowed and mean "not set".
func CleanSettings(in models.CompanySettings) (models.CompanySettings, error) {
	out := models.CompanySettings{
		TimeZone: htmlsanitize.PlainText(in.TimeZone),
		Currency: strings.ToUpper(htmlsanitize.PlainText(in.Currency)),
		Industry: normalize.Name(htmlsanitize.PlainText(in.Industry)),
		Website:  htmlsanitize.PlainText(in.Website),
	}
	if out.TimeZone != "" && !timezones.Valid(out.TimeZone) {
		return models.CompanySettings{}, fmt.Errorf("%w: unknown time zone %q", ErrInvalidSettings, out.TimeZone)
	}
	if out.Currency != "" && !currencyRE.MatchString(out.Currency) {
		return models.CompanySettings{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidSettings)
	}
	if out.Website != "" {
		u, err := url.Parse(out.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return models.CompanySettings{}, fmt.Errorf("%w: website must be an http(s) URL", ErrInvalidSettings)
		}
	}
	return out, nil
}
