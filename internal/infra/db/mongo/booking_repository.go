package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
)

const (
	bookingsCollection = "agg_booking"
	carLocksCollection = "car_locks"
	transactionRefIdx  = "uniq_transaction_ref"
)

// BookingRepository persists bookings with optimistic versioning. Inserts
// serialize per car through a lock document so the overlap check and the
// insert commit atomically.
type BookingRepository struct {
	col   *mongo.Collection
	locks *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection), locks: db.Collection(carLocksCollection)}
}

// EnsureIndexes creates the unique transaction reference index and the
// lookup indexes used by the sweeps and listings.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "transaction_ref", Value: 1}},
			Options: options.Index().
				SetName(transactionRefIdx).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"transaction_ref": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "car_id", Value: 1}, {Key: "range.start", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "range.end", Value: 1}}},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByTransactionRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	if ref == "" {
		return nil, domainbooking.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"transaction_ref": ref})
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if b.Version == 0 {
		return r.insert(ctx, b)
	}
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, bson.M{"$set": doc})
	if err != nil {
		return mapTransient(err)
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) insert(ctx context.Context, b *domainbooking.Booking) error {
	if b.Reserves() {
		// Concurrent inserts for the same car write the same lock document,
		// so all but one transaction hit a write conflict.
		_, err := r.locks.UpdateOne(ctx,
			bson.M{"_id": string(b.CarID)},
			bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC()}},
			options.Update().SetUpsert(true))
		if err != nil {
			return mapTransient(err)
		}
		overlapping, err := r.col.CountDocuments(ctx, overlapFilter(b.CarID, b.Range), options.Count().SetLimit(1))
		if err != nil {
			return mapTransient(err)
		}
		if overlapping > 0 {
			return domainbooking.ErrOverlap
		}
	}
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), transactionRefIdx) {
				return domainbooking.ErrDuplicateTransaction
			}
			return domainbooking.ErrConcurrentUpdate
		}
		return mapTransient(err)
	}
	b.Version = 1
	return nil
}

func overlapFilter(carID domaincars.CarID, rng daterange.DateRange) bson.M {
	return bson.M{
		"car_id":      string(carID),
		"deleted":     false,
		"status":      bson.M{"$ne": string(domainbooking.StatusCancelled)},
		"range.start": bson.M{"$lt": rng.End.UnixMilli()},
		"range.end":   bson.M{"$gt": rng.Start.UnixMilli()},
	}
}

func (r *BookingRepository) ListByCar(ctx context.Context, carID domaincars.CarID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"car_id": string(carID)})
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	if userID == "" {
		return []*domainbooking.Booking{}, nil
	}
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *BookingRepository) ListDueForCompletion(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{
		"status":    string(domainbooking.StatusScheduled),
		"deleted":   false,
		"range.end": bson.M{"$lte": now.UnixMilli()},
	})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.start", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainbooking.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID             string         `bson:"_id"`
	CarID          string         `bson:"car_id"`
	UserID         string         `bson:"user_id,omitempty"`
	Renter         renterDocument `bson:"renter"`
	Range          rangeDocument  `bson:"range"`
	Total          moneyDocument  `bson:"total"`
	Penalty        moneyDocument  `bson:"penalty"`
	TransactionRef string         `bson:"transaction_ref,omitempty"`
	PaymentStatus  string         `bson:"payment_status,omitempty"`
	Status         string         `bson:"status"`
	Deleted        bool           `bson:"deleted"`
	CreatedAt      int64          `bson:"created_at"`
	UpdatedAt      int64          `bson:"updated_at"`
	Version        int64          `bson:"version"`
}

type renterDocument struct {
	Name    string `bson:"name"`
	Surname string `bson:"surname,omitempty"`
	Email   string `bson:"email"`
	Phone   string `bson:"phone"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:     string(b.ID),
		CarID:  string(b.CarID),
		UserID: b.UserID,
		Renter: renterDocument{
			Name:    b.Renter.Name,
			Surname: b.Renter.Surname,
			Email:   b.Renter.Email,
			Phone:   b.Renter.Phone,
		},
		Range:          rangeDocument{Start: b.Range.Start.UnixMilli(), End: b.Range.End.UnixMilli()},
		Total:          toMoneyDocument(b.Total),
		Penalty:        toMoneyDocument(b.Penalty),
		TransactionRef: b.TransactionRef,
		PaymentStatus:  b.PaymentStatus,
		Status:         string(b.Status),
		Deleted:        b.Deleted,
		CreatedAt:      b.CreatedAt.UnixMilli(),
		UpdatedAt:      b.UpdatedAt.UnixMilli(),
		Version:        b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:     domainbooking.BookingID(d.ID),
		CarID:  domaincars.CarID(d.CarID),
		UserID: d.UserID,
		Renter: domainbooking.RenterSnapshot{
			Name:    d.Renter.Name,
			Surname: d.Renter.Surname,
			Email:   d.Renter.Email,
			Phone:   d.Renter.Phone,
		},
		Range:          daterange.DateRange{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		Total:          d.Total.toMoney(),
		Penalty:        d.Penalty.toMoney(),
		TransactionRef: d.TransactionRef,
		PaymentStatus:  d.PaymentStatus,
		Status:         domainbooking.Status(d.Status),
		Deleted:        d.Deleted,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
		Version:        d.Version,
	}
}

func toMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (m moneyDocument) toMoney() money.Money {
	return money.Money{Amount: m.Amount, Currency: m.Currency}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
