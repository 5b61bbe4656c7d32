package indexes

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestSpecOf(t *testing.T) {
	s := specOf(mongo.IndexModel{
		Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq").
			SetPartialFilterExpression(bson.M{"status": "pending"}),
	})
	if s.sig != "company_id:1, user_id:1" {
		t.Errorf("sig: got %q", s.sig)
	}
	if s.name != "uniq" || !s.unique || !s.partial {
		t.Errorf("spec: got %+v", s)
	}

	bare := specOf(mongo.IndexModel{Keys: bson.D{{Key: "a", Value: -1}}})
	if bare.name != "" || bare.unique || bare.partial || bare.sig != "a:-1" {
		t.Errorf("bare spec: got %+v", bare)
	}
}

func TestExistingIndex_Satisfies(t *testing.T) {
	yes := true
	partial, _ := bson.Marshal(bson.M{"status": "pending"})
	want := indexSpec{name: "uniq", unique: true, partial: true}

	tests := []struct {
		name string
		ex   existingIndex
		ok   bool
	}{
		{"exact", existingIndex{Name: "uniq", Unique: &yes, Partial: partial}, true},
		{"wrong name", existingIndex{Name: "company_id_1_user_id_1", Unique: &yes, Partial: partial}, false},
		{"not unique", existingIndex{Name: "uniq", Partial: partial}, false},
		{"not partial", existingIndex{Name: "uniq", Unique: &yes}, false},
	}
	for _, tt := range tests {
		if got := tt.ex.satisfies(want); got != tt.ok {
			t.Errorf("%s: satisfies = %v, want %v", tt.name, got, tt.ok)
		}
	}

	if !(existingIndex{Name: "anything"}).satisfies(indexSpec{}) {
		t.Error("an unnamed spec should accept any name")
	}
}
