// internal/app/store/joinrequests/joinrequeststore.go
package joinrequeststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/crmhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("join request not found")
	// ErrDuplicate is returned by Create when a pending request already
	// exists for the same (company, user).
	ErrDuplicate = errors.New("a pending join request already exists")
	// ErrNotPending is returned by Transition when the request was already
	// approved or rejected.
	ErrNotPending = errors.New("join request is no longer pending")

	errBadRole   = errors.New("requested role is not a company role")
	errBadTarget = errors.New("transition target must be approved or rejected")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("join_requests")}
}

// Create inserts a new pending request.
func (s *Store) Create(ctx context.Context, userID, companyID primitive.ObjectID, role models.Role) (models.JoinRequest, error) {
	if !role.Valid() {
		return models.JoinRequest{}, errBadRole
	}
	jr := models.JoinRequest{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		CompanyID:     companyID,
		RequestedRole: role,
		Status:        models.JoinPending,
		RequestedAt:   time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, jr); err != nil {
		if wafflemongo.IsDup(err) {
			return models.JoinRequest{}, ErrDuplicate
		}
		return models.JoinRequest{}, err
	}
	return jr, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindPending returns the pending request for (companyID, userID).
func (s *Store) FindPending(ctx context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{
		"company_id": companyID,
		"user_id":    userID,
		"status":     models.JoinPending,
	})
}

// FindLatest returns the most recent request for (companyID, userID) in any status.
func (s *Store) FindLatest(ctx context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error) {
	return s.findOne(ctx,
		bson.M{"company_id": companyID, "user_id": userID},
		options.FindOne().SetSort(bson.D{{Key: "requested_at", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (models.JoinRequest, error) {
	var jr models.JoinRequest
	if err := s.c.FindOne(ctx, filter, opts...).Decode(&jr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.JoinRequest{}, ErrNotFound
		}
		return models.JoinRequest{}, err
	}
	return jr, nil
}

// ListPending returns a company's pending requests, oldest first.
func (s *Store) ListPending(ctx context.Context, companyID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(ctx,
		bson.M{"company_id": companyID, "status": models.JoinPending},
		options.Find().SetSort(bson.D{{Key: "requested_at", Value: 1}, {Key: "_id", Value: 1}}))
}

// ListByUser returns a user's requests across companies, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.JoinRequest, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.JoinRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a pending request to approved or rejected. The update is
// conditional on status still being pending, so of two concurrent handlers
// exactly one succeeds and the other gets ErrNotPending.
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, to models.JoinStatus, handledBy primitive.ObjectID) (models.JoinRequest, error) {
	if to != models.JoinApproved && to != models.JoinRejected {
		return models.JoinRequest{}, errBadTarget
	}
	now := time.Now().UTC()
	var jr models.JoinRequest
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.JoinPending},
		bson.M{"$set": bson.M{
			"status":     to,
			"handled_at": now,
			"handled_by": handledBy,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&jr)
	if err == nil {
		return jr, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.JoinRequest{}, err
	}
	if _, getErr := s.GetByID(ctx, id); getErr != nil {
		return models.JoinRequest{}, getErr
	}
	return models.JoinRequest{}, ErrNotPending
}

// Reopen undoes a Transition made by handledBy. It is used to compensate when
// the membership write that should accompany an approval fails and no
// transaction is available.
func (s *Store) Reopen(ctx context.Context, id, handledBy primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "handled_by": handledBy, "status": bson.M{"$ne": models.JoinPending}},
		bson.M{
			"$set":   bson.M{"status": models.JoinPending},
			"$unset": bson.M{"handled_at": "", "handled_by": ""},
		})
	return err
}
