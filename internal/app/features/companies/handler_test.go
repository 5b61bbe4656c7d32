package companies_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/crmhub/internal/app/features/companies"
	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*testutil.AccessEnv, http.Handler) {
	t.Helper()
	env := testutil.NewAccessEnv()
	h := companies.NewHandler(env.Service, nil, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return env, companies.Routes(h, env.Middleware())
}

func TestCreate_MakesCallerAdmin(t *testing.T) {
	env, routes := setup(t)
	u := env.User(t, "ana@example.com")

	rec := httptest.NewRecorder()
	req := testutil.NewJSONRequest(t, "POST", "/", map[string]any{
		"name":     "  Acme   Corp ",
		"settings": map[string]string{"currency": "usd", "time_zone": "UTC"},
	})
	routes.ServeHTTP(rec, testutil.Bearer(req, "ana@example.com"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var co models.Company
	testutil.DecodeJSON(t, rec, &co)
	if co.Name != "Acme Corp" {
		t.Errorf("name: got %q, want %q", co.Name, "Acme Corp")
	}
	if co.Settings.Currency != "USD" {
		t.Errorf("currency: got %q, want USD", co.Settings.Currency)
	}
	if co.AdminID != u.ID {
		t.Errorf("admin_id: got %v, want %v", co.AdminID, u.ID)
	}

	fresh := env.Reload(t, u.ID)
	i := fresh.ActiveMembership(co.ID)
	if i < 0 {
		t.Fatal("creator has no membership in the new company")
	}
	if fresh.Companies[i].Role != models.RoleCompanyAdmin {
		t.Errorf("role: got %q, want company_admin", fresh.Companies[i].Role)
	}
}

func TestCreate_Invalid(t *testing.T) {
	env, routes := setup(t)
	env.User(t, "ana@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank name", map[string]any{"name": "   "}},
		{"bad currency", map[string]any{"name": "Acme", "settings": map[string]string{"currency": "dollars"}}},
		{"bad time zone", map[string]any{"name": "Acme", "settings": map[string]string{"time_zone": "Mars/Olympus"}}},
		{"unknown field", map[string]any{"name": "Acme", "owner": "me"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := testutil.NewJSONRequest(t, "POST", "/", tt.body)
			routes.ServeHTTP(rec, testutil.Bearer(req, "ana@example.com"))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
}

func TestList(t *testing.T) {
	env, routes := setup(t)
	acme := env.Company(t, "Acme")
	globex := env.Company(t, "Globex")
	removed := testutil.Active(globex.ID, models.RoleEmployee)
	removed.IsActive = false
	env.User(t, "ana@example.com", removed, testutil.Active(acme.ID, models.RoleClient))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, testutil.Bearer(httptest.NewRequest("GET", "/", nil), "ana@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Companies []struct {
			Name     string `json:"name"`
			IsActive bool   `json:"is_active"`
		} `json:"companies"`
		DefaultCompanyID string `json:"default_company_id"`
	}
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Companies) != 2 {
		t.Fatalf("companies: got %d, want 2", len(body.Companies))
	}
	if body.DefaultCompanyID != acme.ID.Hex() {
		t.Errorf("default: got %q, want the active membership %q", body.DefaultCompanyID, acme.ID.Hex())
	}
}

func TestRequiresAuthentication(t *testing.T) {
	_, routes := setup(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
