package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/validators"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool)
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"users", "companies", "join_requests", "audit_events"} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func validUser() bson.M {
	return bson.M{
		"_id":          primitive.NewObjectID(),
		"subject_id":   "sub-1",
		"email":        "ana@example.com",
		"display_name": "Ana",
		"global_role":  "user",
		"is_active":    true,
		"version":      int64(1),
		"companies": bson.A{
			bson.M{
				"company_id": primitive.NewObjectID(),
				"role":       "manager",
				"is_active":  true,
				"joined_at":  time.Now(),
			},
		},
	}
}

func TestUsersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("users")

	if _, err := coll.InsertOne(ctx, validUser()); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}

	badRole := validUser()
	badRole["companies"] = bson.A{bson.M{
		"company_id": primitive.NewObjectID(),
		"role":       "owner",
		"is_active":  true,
		"joined_at":  time.Now(),
	}}
	if _, err := coll.InsertOne(ctx, badRole); err == nil {
		t.Error("expected membership with unknown role to be rejected")
	}

	badGlobal := validUser()
	badGlobal["global_role"] = "root"
	if _, err := coll.InsertOne(ctx, badGlobal); err == nil {
		t.Error("expected unknown global role to be rejected")
	}

	upper := validUser()
	upper["email"] = "Ana@Example.com"
	if _, err := coll.InsertOne(ctx, upper); err == nil {
		t.Error("expected non-normalized email to be rejected")
	}

	missing := validUser()
	delete(missing, "subject_id")
	if _, err := coll.InsertOne(ctx, missing); err == nil {
		t.Error("expected user without subject_id to be rejected")
	}
}

func TestCompaniesValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("companies")

	ok := bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      "Acme",
		"name_ci":   "acme",
		"is_active": true,
		"settings":  bson.M{"time_zone": "UTC", "currency": "USD", "industry": "", "website": ""},
	}
	if _, err := coll.InsertOne(ctx, ok); err != nil {
		t.Errorf("valid company rejected: %v", err)
	}

	blank := bson.M{"_id": primitive.NewObjectID(), "name": "   ", "name_ci": "   ", "is_active": true}
	if _, err := coll.InsertOne(ctx, blank); err == nil {
		t.Error("expected whitespace-only name to be rejected")
	}

	badCurrency := bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      "Globex",
		"name_ci":   "globex",
		"is_active": true,
		"settings":  bson.M{"currency": "dollars"},
	}
	if _, err := coll.InsertOne(ctx, badCurrency); err == nil {
		t.Error("expected invalid currency to be rejected")
	}
}

func TestJoinRequestsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("join_requests")

	doc := func(role, status string) bson.M {
		return bson.M{
			"_id":            primitive.NewObjectID(),
			"user_id":        primitive.NewObjectID(),
			"company_id":     primitive.NewObjectID(),
			"requested_role": role,
			"status":         status,
			"requested_at":   time.Now(),
		}
	}

	if _, err := coll.InsertOne(ctx, doc("employee", "pending")); err != nil {
		t.Errorf("valid join request rejected: %v", err)
	}
	if _, err := coll.InsertOne(ctx, doc("employee", "cancelled")); err == nil {
		t.Error("expected unknown status to be rejected")
	}
	if _, err := coll.InsertOne(ctx, doc("super_admin", "pending")); err == nil {
		t.Error("expected non-company role to be rejected")
	}
}
