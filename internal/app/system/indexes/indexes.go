// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/crmhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureCompanies(ctx, db); err != nil {
		problems = append(problems, "companies: "+err.Error())
	}
	// the partial unique index here is what makes "one pending request per
	// (company, user)" hold under concurrent submits
	if err := ensureJoinRequests(ctx, db); err != nil {
		problems = append(problems, "join_requests: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- reconcile one collection ------------------------- */

// existingIndex is the subset of listIndexes output we compare on.
type existingIndex struct {
	Name    string   `bson:"name"`
	Key     bson.D   `bson:"key"`
	Unique  *bool    `bson:"unique,omitempty"`
	Partial bson.Raw `bson:"partialFilterExpression,omitempty"`
}

// indexSpec is a desired index flattened for comparison. sig is the key
// pattern rendered as "field:dir, ..." and identifies the index.
type indexSpec struct {
	name    string
	sig     string
	unique  bool
	partial bool
	model   mongo.IndexModel
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func specOf(m mongo.IndexModel) indexSpec {
	s := indexSpec{sig: keySig(m.Keys.(bson.D)), model: m}
	if o := m.Options; o != nil {
		if o.Name != nil {
			s.name = *o.Name
		}
		s.unique = o.Unique != nil && *o.Unique
		s.partial = o.PartialFilterExpression != nil
	}
	return s
}

// satisfies reports whether ex can stand in for s as-is. An unnamed spec
// accepts any name.
func (ex existingIndex) satisfies(s indexSpec) bool {
	unique := ex.Unique != nil && *ex.Unique
	if unique != s.unique || (len(ex.Partial) > 0) != s.partial {
		return false
	}
	return s.name == "" || ex.Name == s.name
}

// listBySig returns the collection's indexes keyed by key pattern.
func listBySig(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// IndexOptionsConflict comes back when the same keys exist under another
// name or with other options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

// ensureIndexSet makes coll carry every index in want. Matching indexes are
// reused; a same-keys index with the wrong name or options is dropped and
// rebuilt. Failures are collected so one bad index does not hide the rest.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, want []mongo.IndexModel) error {
	log := zap.L().With(zap.String("collection", coll.Name()))

	existing, err := listBySig(ctx, coll)
	if err != nil {
		// A missing collection lists as empty on most servers; anything else
		// falls through to plain creates.
		log.Warn("listing indexes failed", zap.Error(err))
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range want {
		s := specOf(m)
		ex, found := existing[s.sig]
		if err := reconcile(ctx, coll, s, ex, found, log); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func reconcile(ctx context.Context, coll *mongo.Collection, s indexSpec, ex existingIndex, found bool, log *zap.Logger) error {
	start := time.Now()
	fields := []zap.Field{zap.String("name", s.name), zap.String("keys", s.sig), zap.Bool("unique", s.unique)}

	action := "index created"
	if found {
		if ex.satisfies(s) {
			log.Info("reusing existing index", append(fields, zap.String("existing", ex.Name))...)
			return nil
		}
		if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
			log.Warn("drop of mismatched index failed", append(fields, zap.String("existing", ex.Name), zap.Error(err))...)
			return fmt.Errorf("%s(%s): drop %s failed: %w", coll.Name(), s.name, ex.Name, err)
		}
		action = "index rebuilt"
	}

	_, err := coll.Indexes().CreateOne(ctx, s.model)
	if err != nil && !found && isOptionsConflictErr(err) {
		// Another definition with these keys appeared after we listed.
		if fresh, lerr := listBySig(ctx, coll); lerr == nil {
			if ex2, ok := fresh[s.sig]; ok {
				return reconcile(ctx, coll, s, ex2, true, log)
			}
		}
	}
	if err != nil {
		log.Warn("index ensure failed", append(fields, zap.Duration("took", time.Since(start)), zap.Error(err))...)
		return errors.New(createFailure(coll.Name(), s, err))
	}

	log.Info(action, append(fields, zap.Duration("took", time.Since(start)))...)
	return nil
}

// createFailure formats a CreateOne error, adding a finder query when a unique
// index could not be built because duplicates already exist.
func createFailure(coll string, s indexSpec, err error) string {
	if !s.unique || !wafflemongo.IsDup(err) {
		return fmt.Sprintf("%s(%s): %v", coll, s.name, err)
	}
	finder := ""
	switch {
	case coll == "users" && strings.Contains(s.sig, "subject_id:1"):
		finder = `db.users.aggregate([{ $group: { _id: "$subject_id", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	case coll == "users" && strings.Contains(s.sig, "email:1"):
		finder = `db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	case coll == "join_requests":
		finder = `db.join_requests.aggregate([{ $match: { status: "pending" } }, { $group: { _id: { c: "$company_id", u: "$user_id" }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	}
	if finder == "" {
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll, s.name)
	}
	return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present). Example finder:\n%s", coll, s.name, finder)
}

/* ----------------------- collection index sets --------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) One user per external identity.
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_subject"),
		},

		// 2) Email is unique too; first login refuses to create a second
		//    account under an address that already exists.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},

		// 3) Member lists: multikey over the embedded memberships, sorted by name.
		{
			Keys: bson.D{
				{Key: "companies.company_id", Value: 1},
				{Key: "companies.is_active", Value: 1},
				{Key: "display_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_company_active_name_id"),
		},

		// 4) Platform console listing and the super-admin sweep.
		{
			Keys: bson.D{
				{Key: "global_role", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "display_name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_users_globalrole_active_name"),
		},
	})
}

func ensureCompanies(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("companies")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Listing by folded name; names are not unique across tenants.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_companies_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "admin_id", Value: 1}},
			Options: options.Index().SetName("idx_companies_admin"),
		},
	})
}

func ensureJoinRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("join_requests")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one pending request per (company, user).
		{
			Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_joinreq_company_user_pending").
				SetPartialFilterExpression(bson.M{"status": string(models.JoinPending)}),
		},
		// Admin queue: pending for a company, oldest first.
		{
			Keys: bson.D{
				{Key: "company_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "requested_at", Value: 1},
			},
			Options: options.Index().SetName("idx_joinreq_company_status_requested"),
		},
		// A user's own history.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "requested_at", Value: -1}},
			Options: options.Index().SetName("idx_joinreq_user_requested"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "company_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_company_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_created"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_created"),
		},
		{
			Keys:    bson.D{{Key: "correlation_id", Value: 1}},
			Options: options.Index().SetName("idx_audit_correlation"),
		},
	})
}
