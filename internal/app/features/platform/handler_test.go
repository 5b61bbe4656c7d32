package platform_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/features/platform"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*testutil.AccessEnv, http.Handler, *models.User) {
	t.Helper()
	env := testutil.NewAccessEnv()
	h := platform.NewHandler(env.Service, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	root := env.SuperAdmin(t, "root@example.com")
	return env, platform.Routes(h, env.Middleware()), root
}

func call(routes http.Handler, method, target, email string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, testutil.Bearer(httptest.NewRequest(method, target, nil), email))
	return rec
}

type usersBody struct {
	Users []struct {
		Email string `json:"email"`
	} `json:"users"`
	Range struct {
		Start     int  `json:"start"`
		End       int  `json:"end"`
		HasNext   bool `json:"has_next"`
		NextStart int  `json:"next_start"`
	} `json:"range"`
}

func TestServeUsers_Paged(t *testing.T) {
	env, routes, _ := setup(t)
	for i := 0; i < 4; i++ {
		env.User(t, fmt.Sprintf("user%d@example.com", i))
	}

	rec := call(routes, "GET", "/users?limit=2", "root@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var body usersBody
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Users) != 2 || !body.Range.HasNext || body.Range.NextStart != 3 {
		t.Errorf("first page: got %d users, range %+v", len(body.Users), body.Range)
	}

	rec = call(routes, "GET", "/users?start=5&limit=2", "root@example.com")
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Users) != 1 || body.Range.HasNext {
		t.Errorf("last page: got %d users, range %+v", len(body.Users), body.Range)
	}
}

func TestServeUsers_Search(t *testing.T) {
	env, routes, _ := setup(t)
	env.User(t, "ana@example.com")
	env.User(t, "bob@example.com")

	rec := call(routes, "GET", "/users?q=ana", "root@example.com")
	var body usersBody
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Users) != 1 || body.Users[0].Email != "ana@example.com" {
		t.Errorf("search: got %+v", body.Users)
	}
}

func TestDeactivateReactivate(t *testing.T) {
	env, routes, _ := setup(t)
	ana := env.User(t, "ana@example.com")

	if rec := call(routes, "POST", "/users/"+ana.ID.Hex()+"/deactivate", "root@example.com"); rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: got %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Reload(t, ana.ID).IsActive {
		t.Fatal("user still active")
	}

	var body usersBody
	testutil.DecodeJSON(t, call(routes, "GET", "/users?q=ana", "root@example.com"), &body)
	if len(body.Users) != 0 {
		t.Errorf("inactive user listed without ?inactive=true")
	}
	testutil.DecodeJSON(t, call(routes, "GET", "/users?q=ana&inactive=true", "root@example.com"), &body)
	if len(body.Users) != 1 {
		t.Errorf("inactive user missing with ?inactive=true")
	}

	if rec := call(routes, "POST", "/users/"+ana.ID.Hex()+"/reactivate", "root@example.com"); rec.Code != http.StatusNoContent {
		t.Fatalf("reactivate: got %d", rec.Code)
	}
	if !env.Reload(t, ana.ID).IsActive {
		t.Error("user not reactivated")
	}
}

func TestDeactivate_Self(t *testing.T) {
	env, routes, root := setup(t)

	rec := call(routes, "POST", "/users/"+root.ID.Hex()+"/deactivate", "root@example.com")
	if rec.Code != http.StatusForbidden {
		t.Errorf("self deactivate: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !env.Reload(t, root.ID).IsActive {
		t.Error("super admin deactivated themself")
	}
}

func TestServeCompanies(t *testing.T) {
	env, routes, _ := setup(t)
	acme := env.Company(t, "Acme")
	env.Company(t, "Globex")

	if rec := call(routes, "POST", "/companies/"+acme.ID.Hex()+"/deactivate", "root@example.com"); rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate company: got %d", rec.Code)
	}

	var body struct {
		Companies []struct {
			Name string `json:"name"`
		} `json:"companies"`
	}
	testutil.DecodeJSON(t, call(routes, "GET", "/companies", "root@example.com"), &body)
	if len(body.Companies) != 1 || body.Companies[0].Name != "Globex" {
		t.Errorf("active companies: got %+v", body.Companies)
	}
	testutil.DecodeJSON(t, call(routes, "GET", "/companies?inactive=true", "root@example.com"), &body)
	if len(body.Companies) != 2 {
		t.Errorf("all companies: got %d, want 2", len(body.Companies))
	}
}

func TestRequiresSuperAdmin(t *testing.T) {
	env, routes, _ := setup(t)
	acme := env.Company(t, "Acme")
	env.User(t, "boss@example.com", testutil.Active(acme.ID, models.RoleCompanyAdmin))

	for _, target := range []string{"/users", "/companies"} {
		if rec := call(routes, "GET", target, "boss@example.com"); rec.Code != http.StatusForbidden {
			t.Errorf("GET %s as company admin: got %d, want %d", target, rec.Code, http.StatusForbidden)
		}
	}
	if rec := call(routes, "GET", "/users", "nobody@example.com"); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown token: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
