package timezones

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestCatalog_Loads(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	zones, err := All()
	if err != nil || len(zones) == 0 {
		t.Fatalf("All: %d zones, err %v", len(zones), err)
	}
}

// Settings store whatever ID the catalog accepts, so every entry must be a
// real IANA zone with a label.
func TestCatalog_EntriesAreRealZones(t *testing.T) {
	zones, err := All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	seen := map[string]bool{}
	for _, z := range zones {
		if z.Label == "" {
			t.Errorf("%q has no label", z.ID)
		}
		if seen[z.ID] {
			t.Errorf("%q listed twice", z.ID)
		}
		seen[z.ID] = true
		if _, err := time.LoadLocation(z.ID); err != nil {
			t.Errorf("%q is not a loadable zone: %v", z.ID, err)
		}
	}
}

func TestValidAndLabel(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"America/New_York", true},
		{"UTC", true},
		{"Europe/London", true},
		{"america/new_york", false},
		{"Invalid/Timezone", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Valid(tt.id); got != tt.valid {
				t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.valid)
			}
			label := Label(tt.id)
			if tt.valid && (label == "" || label == tt.id) {
				t.Errorf("Label(%q) = %q, want a friendly label", tt.id, label)
			}
			if !tt.valid && label != tt.id {
				t.Errorf("Label(%q) = %q, want the id echoed back", tt.id, label)
			}
		})
	}
}

func TestGroups_Sorted(t *testing.T) {
	groups, err := Groups()
	if err != nil || len(groups) == 0 {
		t.Fatalf("Groups: %d groups, err %v", len(groups), err)
	}

	total := 0
	for i, g := range groups {
		if g.Region == "" || len(g.Zones) == 0 {
			t.Errorf("group %d: region %q with %d zones", i, g.Region, len(g.Zones))
		}
		if i > 0 && g.Region < groups[i-1].Region {
			t.Errorf("regions out of order: %q after %q", g.Region, groups[i-1].Region)
		}
		for j := 1; j < len(g.Zones); j++ {
			if g.Zones[j].Label < g.Zones[j-1].Label {
				t.Errorf("%s: %q after %q", g.Region, g.Zones[j].Label, g.Zones[j-1].Label)
			}
		}
		total += len(g.Zones)
	}

	zones, _ := All()
	if total != len(zones) {
		t.Errorf("groups hold %d zones, catalog has %d", total, len(zones))
	}
}
