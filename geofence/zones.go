// Package geofence indexes named operational zones so ingestion can tag each
// ping with the zones it claims to be inside. The tags are diagnostic: they
// flow into the audit trail and the response, never into the fraud score.
package geofence

import (
	"fmt"

	"github.com/dhconnelly/rtreego"

	"ping-integrity-service/config"
)

// Zone is a named rectangular region in lat/lng space.
type Zone struct {
	Name   string  `json:"name"`
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`

	rect rtreego.Rect
}

// Bounds satisfies rtreego.Spatial.
func (z *Zone) Bounds() rtreego.Rect {
	return z.rect
}

func (z *Zone) contains(lat, lng float64) bool {
	return lat >= z.MinLat && lat <= z.MaxLat && lng >= z.MinLng && lng <= z.MaxLng
}

// Index is an R-tree over the configured zones. It is built once at startup
// and read-only afterwards, so lookups need no locking.
type Index struct {
	tree  *rtreego.Rtree
	zones []*Zone
}

// NewIndex builds a zone index from configuration.
func NewIndex(cfgs []config.ZoneConfig) (*Index, error) {
	idx := &Index{tree: rtreego.NewTree(2, 25, 50)}

	for _, c := range cfgs {
		if c.MaxLat <= c.MinLat || c.MaxLng <= c.MinLng {
			return nil, fmt.Errorf("zone %q has an empty extent", c.Name)
		}
		rect, err := rtreego.NewRect(
			rtreego.Point{c.MinLat, c.MinLng},
			[]float64{c.MaxLat - c.MinLat, c.MaxLng - c.MinLng},
		)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", c.Name, err)
		}
		zone := &Zone{
			Name:   c.Name,
			MinLat: c.MinLat,
			MinLng: c.MinLng,
			MaxLat: c.MaxLat,
			MaxLng: c.MaxLng,
			rect:   rect,
		}
		idx.tree.Insert(zone)
		idx.zones = append(idx.zones, zone)
	}

	return idx, nil
}

// Containing returns the names of every zone containing the point.
func (idx *Index) Containing(lat, lng float64) []string {
	point := rtreego.Point{lat, lng}
	rect := point.ToRect(1e-9)

	names := []string{}
	for _, spatial := range idx.tree.SearchIntersect(rect) {
		zone := spatial.(*Zone)
		if zone.contains(lat, lng) {
			names = append(names, zone.Name)
		}
	}
	return names
}

// Zones returns every configured zone.
func (idx *Index) Zones() []*Zone {
	return idx.zones
}
