// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// collection pairs a collection name with its JSON-Schema validator.
// A nil schema means the collection is only created.
type collection struct {
	name   string
	schema func() bson.M
}

var collections = []collection{
	{"users", usersSchema},
	{"companies", companiesSchema},
	{"join_requests", joinRequestsSchema},
	{"audit_events", nil}, // append-only log
}

// EnsureAll creates each collection with its validator, or attaches the
// validator with collMod when the collection already exists. Servers that
// reject validators (some DocumentDB versions) are logged and skipped.
//
// The schemas back up the Go-side checks: the membership role enum and the
// join-request status enum are enforced by the database as well.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		// Fall back to create-and-handle-exists for every collection.
		zap.L().Warn("listing collections failed", zap.Error(err))
	}
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[n] = true
	}

	var problems []string
	for _, c := range collections {
		if err := ensure(ctx, db, c, have[c.name]); err != nil {
			problems = append(problems, c.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensure(ctx context.Context, db *mongo.Database, c collection, exists bool) error {
	log := zap.L().With(zap.String("collection", c.name))

	var schema bson.M
	if c.schema != nil {
		schema = c.schema()
	}

	if !exists {
		opts := options.CreateCollection()
		if schema != nil {
			opts.SetValidator(schema).SetValidationLevel("moderate").SetValidationAction("error")
		}
		err := db.CreateCollection(ctx, c.name, opts)
		switch {
		case err == nil:
			log.Info("created collection", zap.Bool("validated", schema != nil))
			return nil
		case hasCode(err, codeNamespaceExists):
			// Lost a race with another instance; fall through to collMod.
		case schema != nil && unsupported(err):
			log.Info("validator skipped (unsupported)")
			return db.CreateCollection(ctx, c.name)
		default:
			log.Warn("createCollection failed", zap.Error(err))
			return err
		}
	}

	if schema == nil {
		return nil
	}
	cmd := bson.D{
		{Key: "collMod", Value: c.name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		if unsupported(err) {
			log.Info("validator skipped (unsupported)")
			return nil
		}
		return err
	}
	log.Info("validator ensured")
	return nil
}

/* ------------------------- server error codes ------------------------- */

const (
	codeNamespaceExists     = 48
	codeCommandNotFound     = 59
	codeCommandNotSupported = 115
)

func hasCode(err error, code int32) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == code
}

// unsupported reports whether the server refused validators outright.
func unsupported(err error) bool {
	if hasCode(err, codeCommandNotFound) || hasCode(err, codeCommandNotSupported) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") ||
		strings.Contains(s, "not implemented") ||
		strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func roleEnum() bson.A {
	out := bson.A{}
	for _, r := range models.AllRoles {
		out = append(out, string(r))
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"subject_id", "email", "global_role", "companies", "is_active", "version"},
			"properties": bson.M{
				"subject_id":   bson.M{"bsonType": "string", "minLength": 1},
				"email":        bson.M{"bsonType": "string", "minLength": 3, "pattern": "^[^A-Z\\s]+$"},
				"display_name": bson.M{"bsonType": "string"},
				"global_role":  bson.M{"enum": bson.A{string(models.GlobalRoleUser), string(models.GlobalRoleSuperAdmin)}},
				"is_active":    bson.M{"bsonType": "bool"},
				"version":      bson.M{"bsonType": bson.A{"long", "int"}},
				"companies": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"company_id", "role", "is_active", "joined_at"},
						"properties": bson.M{
							"company_id": bson.M{"bsonType": "objectId"},
							"role":       bson.M{"enum": roleEnum()},
							"is_active":  bson.M{"bsonType": "bool"},
							"joined_at":  bson.M{"bsonType": "date"},
						},
					},
				},
			},
		},
	}
}

func companiesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "is_active"},
			"properties": bson.M{
				"name":      bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":   bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"admin_id":  bson.M{"bsonType": "objectId"},
				"is_active": bson.M{"bsonType": "bool"},
				"settings": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"time_zone": bson.M{"bsonType": "string"},
						"currency":  bson.M{"bsonType": "string", "pattern": "^([A-Z]{3})?$"},
						"industry":  bson.M{"bsonType": "string"},
						"website":   bson.M{"bsonType": "string"},
					},
				},
			},
		},
	}
}

func joinRequestsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "company_id", "requested_role", "status", "requested_at"},
			"properties": bson.M{
				"user_id":        bson.M{"bsonType": "objectId"},
				"company_id":     bson.M{"bsonType": "objectId"},
				"requested_role": bson.M{"enum": roleEnum()},
				"status": bson.M{"enum": bson.A{
					string(models.JoinPending), string(models.JoinApproved), string(models.JoinRejected),
				}},
				"requested_at": bson.M{"bsonType": "date"},
				"handled_at":   bson.M{"bsonType": "date"},
				"handled_by":   bson.M{"bsonType": "objectId"},
			},
		},
	}
}
