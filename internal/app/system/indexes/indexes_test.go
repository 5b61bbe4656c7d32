package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/crmhub/internal/app/system/indexes"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// SetupTestDB already ran it once
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	want := map[string][]string{
		"users": {
			"uniq_users_subject",
			"uniq_users_email",
			"idx_users_company_active_name_id",
			"idx_users_globalrole_active_name",
		},
		"companies":     {"idx_companies_nameci_id", "idx_companies_admin"},
		"join_requests": {"uniq_joinreq_company_user_pending", "idx_joinreq_company_status_requested", "idx_joinreq_user_requested"},
		"audit_events":  {"idx_audit_company_created", "idx_audit_category_created", "idx_audit_actor_created", "idx_audit_correlation"},
	}

	for coll, names := range want {
		got := indexNames(t, ctx, db, coll)
		for _, name := range names {
			if !got[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("companies")
	if _, err := coll.Indexes().DropOne(ctx, "idx_companies_admin"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "admin_id", Value: 1}}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, ctx, db, "companies")
	if !got["idx_companies_admin"] {
		t.Error("expected index to be renamed to idx_companies_admin")
	}
	if got["admin_id_1"] {
		t.Error("expected default-named index to be dropped")
	}
}

func TestEnsureAll_PendingJoinRequestUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("join_requests")
	companyID, userID := primitive.NewObjectID(), primitive.NewObjectID()

	if _, err := coll.InsertOne(ctx, bson.M{"company_id": companyID, "user_id": userID, "status": "pending"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"company_id": companyID, "user_id": userID, "status": "pending"}); err == nil {
		t.Error("expected duplicate key error for a second pending request")
	}

	// terminal requests are outside the partial filter
	for i := 0; i < 2; i++ {
		if _, err := coll.InsertOne(ctx, bson.M{"company_id": companyID, "user_id": userID, "status": "rejected"}); err != nil {
			t.Fatalf("rejected insert %d failed: %v", i, err)
		}
	}
}

func TestEnsureAll_UserSubjectUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("users")
	if _, err := coll.InsertOne(ctx, bson.M{"subject_id": "sub-1", "email": "a@example.com"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := coll.InsertOne(ctx, bson.M{"subject_id": "sub-1", "email": "b@example.com"}); err == nil {
		t.Error("expected duplicate key error on users.subject_id")
	}
}
