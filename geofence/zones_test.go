package geofence

import (
	"reflect"
	"testing"

	"ping-integrity-service/config"
)

func testZones() []config.ZoneConfig {
	return []config.ZoneConfig{
		{Name: "mumbai-central", MinLat: 18.95, MinLng: 72.80, MaxLat: 19.10, MaxLng: 72.90},
		{Name: "navi-mumbai", MinLat: 19.00, MinLng: 72.95, MaxLat: 19.15, MaxLng: 73.10},
		{Name: "greater-mumbai", MinLat: 18.90, MinLng: 72.75, MaxLat: 19.30, MaxLng: 73.20},
	}
}

func TestContaining(t *testing.T) {
	idx, err := NewIndex(testZones())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	tests := []struct {
		name     string
		lat, lng float64
		want     []string
	}{
		{"inside central and greater", 19.0760, 72.8777, []string{"mumbai-central", "greater-mumbai"}},
		{"inside navi and greater", 19.05, 73.00, []string{"navi-mumbai", "greater-mumbai"}},
		{"outside everything", 28.7041, 77.1025, []string{}},
		{"corner of central", 18.95, 72.80, []string{"mumbai-central", "greater-mumbai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Containing(tt.lat, tt.lng)
			if !sameNames(got, tt.want) {
				t.Errorf("Containing(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestNewIndexRejectsEmptyExtent(t *testing.T) {
	_, err := NewIndex([]config.ZoneConfig{
		{Name: "degenerate", MinLat: 19, MinLng: 72, MaxLat: 19, MaxLng: 73},
	})
	if err == nil {
		t.Error("NewIndex accepted a zone with zero latitude extent")
	}
}

func TestZonesReturnsAllConfigured(t *testing.T) {
	idx, err := NewIndex(testZones())
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	names := []string{}
	for _, z := range idx.Zones() {
		names = append(names, z.Name)
	}
	want := []string{"mumbai-central", "navi-mumbai", "greater-mumbai"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Zones() names = %v, want %v", names, want)
	}
}

// sameNames compares ignoring order; the R-tree does not guarantee one.
func sameNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	set := map[string]bool{}
	for _, n := range got {
		set[n] = true
	}
	for _, n := range want {
		if !set[n] {
			return false
		}
	}
	return true
}
