package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/money"
)

// InventoryReader reads item snapshots owned by the inventory service.
type InventoryReader struct {
	col *mongo.Collection
}

func NewInventoryReader(db *mongo.Database) *InventoryReader {
	return &InventoryReader{col: db.Collection("inventory_items")}
}

type itemDocument struct {
	ID             string       `bson:"_id"`
	Kind           string       `bson:"kind"`
	ItemID         string       `bson:"item_id"`
	Name           string       `bson:"name"`
	Bookable       bool         `bson:"bookable"`
	Archived       bool         `bson:"archived"`
	PerDay         *money.Money `bson:"per_day,omitempty"`
	PerGuest       *money.Money `bson:"per_guest,omitempty"`
	SlotsPerWindow int          `bson:"slots_per_window,omitempty"`
}

func (r *InventoryReader) Snapshot(ctx context.Context, ref inventory.ItemRef) (inventory.Snapshot, error) {
	var doc itemDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": ref.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return inventory.Snapshot{}, inventory.ErrItemNotFound
		}
		return inventory.Snapshot{}, translate(err)
	}
	return doc.toSnapshot()
}

// Put upserts a snapshot. Only fixture seeding writes inventory.
func (r *InventoryReader) Put(ctx context.Context, item inventory.Snapshot) error {
	if err := item.Validate(); err != nil {
		return err
	}
	doc := itemDocument{
		ID:       item.Ref.String(),
		Kind:     string(item.Ref.Kind),
		ItemID:   string(item.Ref.ID),
		Name:     item.Name,
		Bookable: item.Bookable,
		Archived: item.Archived,
	}
	switch p := item.Pricing.(type) {
	case inventory.VehiclePricing:
		doc.PerDay = &p.PerDay
	case inventory.TourPricing:
		doc.PerGuest = &p.PerGuest
		doc.SlotsPerWindow = p.SlotsPerWindow
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

func (d itemDocument) toSnapshot() (inventory.Snapshot, error) {
	snap := inventory.Snapshot{
		Ref:      inventory.ItemRef{Kind: inventory.Kind(d.Kind), ID: inventory.ItemID(d.ItemID)},
		Name:     d.Name,
		Bookable: d.Bookable,
		Archived: d.Archived,
	}
	switch snap.Ref.Kind {
	case inventory.KindVehicle:
		if d.PerDay == nil {
			return inventory.Snapshot{}, fmt.Errorf("mongo: item %s: %w", d.ID, inventory.ErrPricingMissing)
		}
		snap.Pricing = inventory.VehiclePricing{PerDay: *d.PerDay}
	case inventory.KindTourPackage:
		if d.PerGuest == nil {
			return inventory.Snapshot{}, fmt.Errorf("mongo: item %s: %w", d.ID, inventory.ErrPricingMissing)
		}
		snap.Pricing = inventory.TourPricing{PerGuest: *d.PerGuest, SlotsPerWindow: d.SlotsPerWindow}
	default:
		return inventory.Snapshot{}, fmt.Errorf("mongo: item %s: %w", d.ID, inventory.ErrUnknownKind)
	}
	return snap, nil
}

var _ inventory.Reader = (*InventoryReader)(nil)
