// Package fixtures loads the inventory used when no inventory service is
// reachable, e.g. in memory mode or local development.
package fixtures

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/money"
)

//go:embed inventory.json
var defaultInventory string

type item struct {
	Kind           string       `json:"kind"`
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Bookable       bool         `json:"bookable"`
	Archived       bool         `json:"archived"`
	PerDay         *money.Money `json:"per_day"`
	PerGuest       *money.Money `json:"per_guest"`
	SlotsPerWindow int          `json:"slots_per_window"`
}

// Default returns the embedded sample inventory.
func Default() ([]inventory.Snapshot, error) {
	return Decode(strings.NewReader(defaultInventory))
}

// LoadFile reads fixtures from path, or the embedded set when path is empty.
func LoadFile(path string) ([]inventory.Snapshot, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) ([]inventory.Snapshot, error) {
	var items []item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("fixtures: decode inventory: %w", err)
	}
	out := make([]inventory.Snapshot, 0, len(items))
	seen := make(map[inventory.ItemRef]bool, len(items))
	for i, it := range items {
		snap, err := it.snapshot()
		if err != nil {
			return nil, fmt.Errorf("fixtures: item %d (%s): %w", i, it.ID, err)
		}
		if seen[snap.Ref] {
			return nil, fmt.Errorf("fixtures: duplicate item %s", snap.Ref)
		}
		seen[snap.Ref] = true
		out = append(out, snap)
	}
	return out, nil
}

func (it item) snapshot() (inventory.Snapshot, error) {
	kind, err := inventory.ParseKind(it.Kind)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	snap := inventory.Snapshot{
		Ref:      inventory.ItemRef{Kind: kind, ID: inventory.ItemID(strings.TrimSpace(it.ID))},
		Name:     it.Name,
		Bookable: it.Bookable,
		Archived: it.Archived,
	}
	switch {
	case kind == inventory.KindVehicle && it.PerDay != nil:
		snap.Pricing = inventory.VehiclePricing{PerDay: *it.PerDay}
	case kind == inventory.KindTourPackage && it.PerGuest != nil:
		snap.Pricing = inventory.TourPricing{PerGuest: *it.PerGuest, SlotsPerWindow: it.SlotsPerWindow}
	}
	if err := snap.Validate(); err != nil {
		return inventory.Snapshot{}, err
	}
	return snap, nil
}
