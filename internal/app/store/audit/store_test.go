package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/crmhub/internal/app/store/audit"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
	if e.CorrelationID == "" {
		t.Error("expected CorrelationID to be generated")
	}
}

func TestStore_Log_KeepsCorrelationID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const corr = "req-123"
	for _, et := range []string{audit.EventJoinApproved, audit.EventMemberRoleChanged} {
		if err := store.Log(ctx, audit.Event{Category: audit.CategoryAdmin, EventType: et, CorrelationID: corr, Success: true}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{CorrelationID: corr})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 correlated events, got %d", len(events))
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	companyA, companyB := primitive.NewObjectID(), primitive.NewObjectID()
	old := time.Now().Add(-48 * time.Hour).UTC()

	events := []audit.Event{
		{CompanyID: &companyA, Category: audit.CategoryAdmin, EventType: audit.EventMemberRemoved, Success: true},
		{CompanyID: &companyA, Category: audit.CategorySecurity, EventType: audit.EventAccessDenied},
		{CompanyID: &companyA, Category: audit.CategoryAdmin, EventType: audit.EventMemberRoleChanged, Timestamp: old, Success: true},
		{CompanyID: &companyB, Category: audit.CategoryAdmin, EventType: audit.EventMemberRemoved, Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	got, err := store.Query(ctx, audit.QueryFilter{CompanyID: &companyA})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("company A: expected 3 events, got %d", len(got))
	}
	if len(got) == 3 && got[2].EventType != audit.EventMemberRoleChanged {
		t.Errorf("expected oldest event last, got %q", got[2].EventType)
	}

	got, err = store.Query(ctx, audit.QueryFilter{CompanyID: &companyA, Category: audit.CategoryAdmin})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("admin events for A: expected 2, got %d", len(got))
	}

	since := time.Now().Add(-time.Hour)
	got, err = store.Query(ctx, audit.QueryFilter{CompanyID: &companyA, StartTime: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("recent events for A: expected 2, got %d", len(got))
	}

	got, err = store.Query(ctx, audit.QueryFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("paged query: expected 1 event, got %d", len(got))
	}
}
