package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithUser injects an authenticated user, bypassing the bearer middleware.
func WithUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), u))
}

// WithCaller injects a resolved caller for u in companyID. It fails the test
// if u has no access to companyID.
func WithCaller(t *testing.T, r *http.Request, u *models.User, companyID primitive.ObjectID) *http.Request {
	t.Helper()
	cc, err := access.SelectCompany(u, companyID)
	if err != nil {
		t.Fatalf("SelectCompany: %v", err)
	}
	return r.WithContext(auth.WithCaller(r.Context(), cc))
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func NewJSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// DecodeJSON decodes the recorder body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// TokenResolver resolves fixed bearer tokens to users held in a MemUsers.
type TokenResolver struct {
	Users  *MemUsers
	Tokens map[string]primitive.ObjectID
}

// NewTokenResolver returns an empty resolver over users.
func NewTokenResolver(users *MemUsers) *TokenResolver {
	return &TokenResolver{Users: users, Tokens: map[string]primitive.ObjectID{}}
}

// Resolve implements access.IdentityResolver.
func (tr *TokenResolver) Resolve(ctx context.Context, raw string) (*models.User, error) {
	id, ok := tr.Tokens[raw]
	if !ok {
		return nil, apperr.New(apperr.Unauthenticated)
	}
	return tr.Users.GetByID(ctx, id)
}
