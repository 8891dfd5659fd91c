package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincars "rentacar/internal/domain/cars"
)

type CarRepository struct {
	col *mongo.Collection
}

func NewCarRepository(db *mongo.Database) *CarRepository {
	return &CarRepository{col: db.Collection("cars")}
}

func (r *CarRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "active", Value: 1}, {Key: "deactivated_at", Value: 1}},
	})
	return err
}

func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	var doc carDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincars.ErrNotFound
		}
		return nil, err
	}
	return doc.toCar(), nil
}

func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	if err := car.Validate(); err != nil {
		return err
	}
	doc := newCarDocument(car)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CarRepository) ListActive(ctx context.Context) ([]*domaincars.Car, error) {
	cur, err := r.col.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domaincars.Car, 0)
	for cur.Next(ctx) {
		var doc carDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toCar())
	}
	return out, cur.Err()
}

func (r *CarRepository) PurgeDeactivatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{
		"active":         false,
		"deactivated_at": bson.M{"$lte": cutoff.UnixMilli()},
	})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

type carDocument struct {
	ID            string        `bson:"_id"`
	Name          string        `bson:"name"`
	DailyPrice    moneyDocument `bson:"daily_price"`
	Active        bool          `bson:"active"`
	DeactivatedAt *int64        `bson:"deactivated_at,omitempty"`
}

func newCarDocument(car *domaincars.Car) carDocument {
	doc := carDocument{
		ID:         string(car.ID),
		Name:       car.Name,
		DailyPrice: toMoneyDocument(car.DailyPrice),
		Active:     car.Active,
	}
	if car.DeactivatedAt != nil {
		ms := car.DeactivatedAt.UnixMilli()
		doc.DeactivatedAt = &ms
	}
	return doc
}

func (d carDocument) toCar() *domaincars.Car {
	car := &domaincars.Car{
		ID:         domaincars.CarID(d.ID),
		Name:       d.Name,
		DailyPrice: d.DailyPrice.toMoney(),
		Active:     d.Active,
	}
	if d.DeactivatedAt != nil {
		t := timestampToTime(*d.DeactivatedAt)
		car.DeactivatedAt = &t
	}
	return car
}

var _ domaincars.Repository = (*CarRepository)(nil)
