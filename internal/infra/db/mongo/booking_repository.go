package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/daterange"
	"tripdesk/internal/domain/shared/money"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection("bookings")}
}

// EnsureIndexes creates the unique reference index that backs global
// reference uniqueness.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_reference")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByReference(ctx context.Context, ref domainbooking.Reference) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"reference": string(ref)})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "uniq_reference") {
				return domainbooking.ErrDuplicateReference
			}
			return domainbooking.ErrConcurrentUpdate
		}
		return translate(err)
	}
	b.Version = doc.Version
	return nil
}

// Update writes b if nobody changed it since it was read.
func (r *BookingRepository) Update(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, bson.M{"$set": doc})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return translate(err)
		}
		if n == 0 {
			return domainbooking.ErrBookingNotFound
		}
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) List(ctx context.Context, filter domainbooking.Filter) ([]*domainbooking.Booking, error) {
	query := bson.M{}
	if !filter.IncludeArchived {
		query["archived"] = false
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Kind != "" {
		query["item.kind"] = string(filter.Kind)
	}
	if filter.LinkedAccount != "" {
		query["linked_account"] = filter.LinkedAccount
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type bookingDocument struct {
	ID            string          `bson:"_id"`
	Reference     string          `bson:"reference"`
	Item          itemRefDocument `bson:"item"`
	Guest         contactDocument `bson:"guest"`
	LinkedAccount string          `bson:"linked_account,omitempty"`
	Range         rangeDocument   `bson:"range"`
	Guests        int             `bson:"guests"`
	Total         money.Money     `bson:"total"`
	PaymentMethod string          `bson:"payment_method,omitempty"`
	Status        string          `bson:"status"`
	AdminNotes    string          `bson:"admin_notes,omitempty"`
	ProcessedBy   string          `bson:"processed_by,omitempty"`
	ProcessedAt   int64           `bson:"processed_at,omitempty"`
	TermsAgreed   bool            `bson:"terms_agreed"`
	Archived      bool            `bson:"archived"`
	ArchivedAt    int64           `bson:"archived_at,omitempty"`
	Audit         []auditDocument `bson:"audit"`
	CreatedAt     int64           `bson:"created_at"`
	UpdatedAt     int64           `bson:"updated_at"`
	Version       int64           `bson:"version"`
}

type itemRefDocument struct {
	Kind string `bson:"kind"`
	ID   string `bson:"id"`
}

type contactDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end,omitempty"`
}

type auditDocument struct {
	Actor  string `bson:"actor"`
	Action string `bson:"action"`
	Note   string `bson:"note,omitempty"`
	At     int64  `bson:"at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	audit := b.Audit()
	entries := make([]auditDocument, 0, len(audit))
	for _, e := range audit {
		entries = append(entries, auditDocument{Actor: string(e.Actor), Action: e.Action, Note: e.Note, At: timeToTimestamp(e.At)})
	}
	return bookingDocument{
		ID:            string(b.ID),
		Reference:     string(b.Reference),
		Item:          itemRefDocument{Kind: string(b.Item.Kind), ID: string(b.Item.ID)},
		Guest:         contactDocument{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		LinkedAccount: b.LinkedAccount,
		Range:         rangeDocument{Start: timeToTimestamp(b.Range.Start), End: timeToTimestamp(b.Range.End)},
		Guests:        b.Guests,
		Total:         b.Total,
		PaymentMethod: b.PaymentMethod,
		Status:        string(b.Status),
		AdminNotes:    b.AdminNotes,
		ProcessedBy:   string(b.ProcessedBy),
		ProcessedAt:   timeToTimestamp(b.ProcessedAt),
		TermsAgreed:   b.TermsAgreed,
		Archived:      b.Archived,
		ArchivedAt:    timeToTimestamp(b.ArchivedAt),
		Audit:         entries,
		CreatedAt:     timeToTimestamp(b.CreatedAt),
		UpdatedAt:     timeToTimestamp(b.UpdatedAt),
		Version:       b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	audit := make([]domainbooking.AuditEntry, 0, len(d.Audit))
	for _, e := range d.Audit {
		audit = append(audit, domainbooking.AuditEntry{Actor: domainbooking.Actor(e.Actor), Action: e.Action, Note: e.Note, At: timestampToTime(e.At)})
	}
	return domainbooking.Restore(domainbooking.Booking{
		ID:            domainbooking.ID(d.ID),
		Reference:     domainbooking.Reference(d.Reference),
		Item:          inventory.ItemRef{Kind: inventory.Kind(d.Item.Kind), ID: inventory.ItemID(d.Item.ID)},
		Guest:         domainbooking.Contact{Name: d.Guest.Name, Email: d.Guest.Email, Phone: d.Guest.Phone},
		LinkedAccount: d.LinkedAccount,
		Range:         daterange.DateRange{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		Guests:        d.Guests,
		Total:         d.Total,
		PaymentMethod: d.PaymentMethod,
		Status:        domainbooking.Status(d.Status),
		AdminNotes:    d.AdminNotes,
		ProcessedBy:   domainbooking.Actor(d.ProcessedBy),
		ProcessedAt:   timestampToTime(d.ProcessedAt),
		TermsAgreed:   d.TermsAgreed,
		Archived:      d.Archived,
		ArchivedAt:    timestampToTime(d.ArchivedAt),
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}, audit)
}

// Zero times are stored as 0 so optional fields round-trip as zero.
func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
