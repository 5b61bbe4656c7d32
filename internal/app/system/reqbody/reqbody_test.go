package reqbody_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type payload struct {
	Name string `json:"name"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr bool
	}{
		{"valid", `{"name":"Acme"}`, 0, false},
		{"empty", ``, 0, true},
		{"garbage", `{"name":`, 0, true},
		{"unknown field", `{"name":"Acme","admin":true}`, 0, true},
		{"two objects", `{"name":"a"}{"name":"b"}`, 0, true},
		{"too large", `{"name":"` + strings.Repeat("x", 100) + `"}`, 32, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var p payload
			err := reqbody.Decode(httptest.NewRecorder(), r, &p, tt.limit)
			if tt.wantErr {
				if !apperr.IsKind(err, apperr.InvalidInput) {
					t.Fatalf("expected InvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if p.Name != "Acme" {
				t.Errorf("name: got %q, want Acme", p.Name)
			}
		})
	}
}

func TestObjectIDParam(t *testing.T) {
	id := primitive.NewObjectID()
	r := testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "userID", id.Hex())
	got, err := reqbody.ObjectIDParam(r, "userID")
	if err != nil || got != id {
		t.Fatalf("ObjectIDParam = %v, %v; want %v", got, err, id)
	}

	bad := testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "userID", "nope")
	if _, err := reqbody.ObjectIDParam(bad, "userID"); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}
