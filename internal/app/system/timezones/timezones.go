// Package timezones serves the curated list of time zones a company may pick
// for its settings.
package timezones

import (
	"cmp"
	"embed"
	"encoding/json"
	"slices"
	"sync"
)

//go:embed timezonedata/timezones.json
var FS embed.FS

// Zone is one selectable IANA zone.
type Zone struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Region string `json:"region,omitempty"`
}

// ZoneGroup is the zones of one region, sorted by label.
type ZoneGroup struct {
	Region string `json:"region"`
	Zones  []Zone `json:"zones"`
}

type catalog struct {
	zones  []Zone
	byID   map[string]Zone
	groups []ZoneGroup
}

// loadCatalog parses the embedded list once; the result is read-only.
var loadCatalog = sync.OnceValues(func() (*catalog, error) {
	data, err := FS.ReadFile("timezonedata/timezones.json")
	if err != nil {
		return nil, err
	}
	var list []Zone
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	c := &catalog{zones: list, byID: make(map[string]Zone, len(list))}
	byRegion := map[string][]Zone{}
	for _, z := range list {
		c.byID[z.ID] = z
		region := cmp.Or(z.Region, "Other")
		byRegion[region] = append(byRegion[region], z)
	}
	for region, zs := range byRegion {
		slices.SortStableFunc(zs, func(a, b Zone) int { return cmp.Compare(a.Label, b.Label) })
		c.groups = append(c.groups, ZoneGroup{Region: region, Zones: zs})
	}
	slices.SortFunc(c.groups, func(a, b ZoneGroup) int { return cmp.Compare(a.Region, b.Region) })
	return c, nil
})

// Load is called from startup so a broken embed fails fast instead of
// rejecting every company settings update.
func Load() error {
	_, err := loadCatalog()
	return err
}

// All returns the curated list of zones in file order.
func All() ([]Zone, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return c.zones, nil
}

// Label returns the human-friendly label for an ID, or the ID itself if not found.
func Label(id string) string {
	c, err := loadCatalog()
	if err != nil {
		return id
	}
	if z, ok := c.byID[id]; ok && z.Label != "" {
		return z.Label
	}
	return id
}

// Valid reports whether the given ID exists in the curated list.
func Valid(id string) bool {
	c, err := loadCatalog()
	if err != nil {
		return false
	}
	_, ok := c.byID[id]
	return ok
}

// Groups returns the curated zones grouped by region, regions sorted by name.
func Groups() ([]ZoneGroup, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return c.groups, nil
}
