package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tripdesk/internal/domain/availability"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
)

// SlotLedger keeps one counter document per tour departure window.
type SlotLedger struct {
	col *mongo.Collection
}

func NewSlotLedger(db *mongo.Database) *SlotLedger {
	return &SlotLedger{col: db.Collection("tour_slots")}
}

type slotDocument struct {
	ID        string `bson:"_id"`
	Item      string `bson:"item"`
	Window    string `bson:"window"`
	Remaining int    `bson:"remaining"`
	Capacity  int    `bson:"capacity"`
}

// Take decrements the counter only while it is positive; the filter and the
// $inc apply as one document update. An unseen window is created on first
// take with capacity-1 remaining.
func (l *SlotLedger) Take(ctx context.Context, key availability.SlotKey, capacity int) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := l.decrement(ctx, key)
		if err != nil || ok {
			return ok, err
		}
		n, err := l.col.CountDocuments(ctx, bson.M{"_id": key.String()})
		if err != nil {
			return false, translate(err)
		}
		if n > 0 {
			return false, nil
		}
		if capacity <= 0 {
			return false, nil
		}
		_, err = l.col.InsertOne(ctx, slotDocument{
			ID:        key.String(),
			Item:      string(key.Item),
			Window:    key.Window,
			Remaining: capacity - 1,
			Capacity:  capacity,
		})
		if err == nil {
			return true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, translate(err)
		}
		// A write error aborts a running transaction, so only a session-less
		// caller can go on to decrement the winner's counter.
		if mongo.SessionFromContext(ctx) != nil {
			return false, errors.Join(ErrWriteConflict, err)
		}
	}
	return false, nil
}

func (l *SlotLedger) decrement(ctx context.Context, key availability.SlotKey) (bool, error) {
	res, err := l.col.UpdateOne(ctx,
		bson.M{"_id": key.String(), "remaining": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"remaining": -1}},
	)
	if err != nil {
		return false, translate(err)
	}
	return res.ModifiedCount == 1, nil
}

// Give returns one slot, never past capacity.
func (l *SlotLedger) Give(ctx context.Context, key availability.SlotKey) error {
	_, err := l.col.UpdateOne(ctx,
		bson.M{"_id": key.String(), "$expr": bson.M{"$lt": bson.A{"$remaining", "$capacity"}}},
		bson.M{"$inc": bson.M{"remaining": 1}},
	)
	return translate(err)
}

// CalendarRepository stores vehicle holds with an optimistic version.
type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection("vehicle_calendars")}
}

type calendarDocument struct {
	ID      string         `bson:"_id"`
	Holds   []holdDocument `bson:"holds"`
	Version int64          `bson:"version"`
}

type holdDocument struct {
	Start     int64  `bson:"start"`
	End       int64  `bson:"end"`
	Reference string `bson:"reference"`
	CreatedAt int64  `bson:"created_at"`
}

func (r *CalendarRepository) Calendar(ctx context.Context, item inventory.ItemID) (*availability.Calendar, error) {
	var doc calendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(item)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return availability.NewCalendar(item), nil
		}
		return nil, translate(err)
	}
	cal := &availability.Calendar{Item: item, Version: doc.Version}
	for _, h := range doc.Holds {
		cal.Holds = append(cal.Holds, availability.Hold{
			Range:     daterange.DateRange{Start: timestampToTime(h.Start), End: timestampToTime(h.End)},
			Reference: h.Reference,
			CreatedAt: timestampToTime(h.CreatedAt),
		})
	}
	return cal, nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *availability.Calendar) error {
	holds := make([]holdDocument, 0, len(cal.Holds))
	for _, h := range cal.Holds {
		holds = append(holds, holdDocument{
			Start:     timeToTimestamp(h.Range.Start),
			End:       timeToTimestamp(h.Range.End),
			Reference: h.Reference,
			CreatedAt: timeToTimestamp(h.CreatedAt),
		})
	}
	next := cal.Version + 1
	if cal.Version == 0 {
		_, err := r.col.InsertOne(ctx, calendarDocument{ID: string(cal.Item), Holds: holds, Version: next})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return availability.ErrStaleCalendar
			}
			return translate(err)
		}
		cal.Version = next
		return nil
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(cal.Item), "version": cal.Version},
		bson.M{"$set": bson.M{"holds": holds, "version": next}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return availability.ErrStaleCalendar
	}
	cal.Version = next
	return nil
}

var (
	_ availability.SlotLedger         = (*SlotLedger)(nil)
	_ availability.CalendarRepository = (*CalendarRepository)(nil)
)
