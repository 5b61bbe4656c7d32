package members_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/features/members"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type errBody struct {
	Error struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

func setup(t *testing.T) (*testutil.AccessEnv, http.Handler, models.Company) {
	t.Helper()
	env := testutil.NewAccessEnv()
	h := members.NewHandler(env.Service, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	routes := env.CompanyScoped(members.Routes(h, env.Middleware()))
	return env, routes, env.Company(t, "Acme")
}

func call(routes http.Handler, r *http.Request, email string, co primitive.ObjectID) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, testutil.InCompany(testutil.Bearer(r, email), co))
	return rec
}

func TestList_GatedByRole(t *testing.T) {
	env, routes, acme := setup(t)
	env.User(t, "boss@example.com", testutil.Active(acme.ID, models.RoleCompanyAdmin))
	env.User(t, "emp@example.com", testutil.Active(acme.ID, models.RoleEmployee))
	env.User(t, "cli@example.com", testutil.Active(acme.ID, models.RoleClient))
	env.User(t, "out@example.com")

	rec := call(routes, httptest.NewRequest("GET", "/", nil), "emp@example.com", acme.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("employee: got %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Members []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"members"`
	}
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Members) != 3 {
		t.Errorf("members: got %d, want 3", len(body.Members))
	}

	if rec := call(routes, httptest.NewRequest("GET", "/", nil), "cli@example.com", acme.ID); rec.Code != http.StatusForbidden {
		t.Errorf("client: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = call(routes, httptest.NewRequest("GET", "/", nil), "out@example.com", acme.ID)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	var eb errBody
	testutil.DecodeJSON(t, rec, &eb)
	if eb.Error.Kind != "not_a_member" {
		t.Errorf("outsider kind: got %q, want not_a_member", eb.Error.Kind)
	}
}

func TestList_NoCompanyNamed(t *testing.T) {
	env, routes, acme := setup(t)
	other := env.Company(t, "Other")
	env.User(t, "ana@example.com",
		testutil.Active(acme.ID, models.RoleEmployee),
		testutil.Active(other.ID, models.RoleEmployee))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, testutil.Bearer(httptest.NewRequest("GET", "/", nil), "ana@example.com"))
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestUpdateRole(t *testing.T) {
	env, routes, acme := setup(t)
	env.User(t, "boss@example.com", testutil.Active(acme.ID, models.RoleCompanyAdmin))
	emp := env.User(t, "emp@example.com", testutil.Active(acme.ID, models.RoleEmployee))

	req := testutil.NewJSONRequest(t, "PUT", "/"+emp.ID.Hex()+"/role", map[string]string{"role": "manager"})
	rec := call(routes, req, "boss@example.com", acme.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	fresh := env.Reload(t, emp.ID)
	if got := fresh.Companies[fresh.ActiveMembership(acme.ID)].Role; got != models.RoleManager {
		t.Errorf("role: got %q, want manager", got)
	}
}

func TestUpdateRole_Denials(t *testing.T) {
	env, routes, acme := setup(t)
	boss := env.User(t, "boss@example.com", testutil.Active(acme.ID, models.RoleCompanyAdmin))
	mgr := env.User(t, "mgr@example.com", testutil.Active(acme.ID, models.RoleManager))
	emp := env.User(t, "emp@example.com", testutil.Active(acme.ID, models.RoleEmployee))

	tests := []struct {
		name     string
		actor    string
		target   primitive.ObjectID
		role     string
		wantCode int
		wantKind string
	}{
		{"admin on self", "boss@example.com", boss.ID, "employee", http.StatusForbidden, "self_modification_denied"},
		{"manager on self", "mgr@example.com", mgr.ID, "company_admin", http.StatusForbidden, "self_modification_denied"},
		{"manager on other", "mgr@example.com", emp.ID, "manager", http.StatusForbidden, "forbidden"},
		{"unknown role", "boss@example.com", emp.ID, "owner", http.StatusBadRequest, "invalid_input"},
		{"non-member target", "boss@example.com", primitive.NewObjectID(), "client", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, "PUT", "/"+tt.target.Hex()+"/role", map[string]string{"role": tt.role})
			rec := call(routes, req, tt.actor, acme.ID)
			if rec.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var eb errBody
			testutil.DecodeJSON(t, rec, &eb)
			if eb.Error.Kind != tt.wantKind {
				t.Errorf("kind: got %q, want %q", eb.Error.Kind, tt.wantKind)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	env, routes, acme := setup(t)
	boss := env.User(t, "boss@example.com", testutil.Active(acme.ID, models.RoleCompanyAdmin))
	emp := env.User(t, "emp@example.com", testutil.Active(acme.ID, models.RoleEmployee))

	rec := call(routes, httptest.NewRequest("DELETE", "/"+emp.ID.Hex(), nil), "boss@example.com", acme.ID)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	fresh := env.Reload(t, emp.ID)
	if fresh.ActiveMembership(acme.ID) >= 0 {
		t.Error("membership still active")
	}
	if len(fresh.Companies) != 1 {
		t.Errorf("membership history: got %d entries, want 1", len(fresh.Companies))
	}

	rec = call(routes, httptest.NewRequest("DELETE", "/"+boss.ID.Hex(), nil), "boss@example.com", acme.ID)
	var eb errBody
	testutil.DecodeJSON(t, rec, &eb)
	if rec.Code != http.StatusForbidden || eb.Error.Kind != "self_removal_denied" {
		t.Errorf("self removal: got %d %q", rec.Code, eb.Error.Kind)
	}

	// The removed employee loses access on the very next request.
	rec = call(routes, httptest.NewRequest("GET", "/", nil), "emp@example.com", acme.ID)
	if rec.Code != http.StatusForbidden {
		t.Errorf("removed member: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}
