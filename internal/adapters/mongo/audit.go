package mongo

import (
	"context"
	"time"

	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID          string    `bson:"_id"`
	Action      string    `bson:"action"`
	AggregateID string    `bson:"aggregate_id"`
	Email       string    `bson:"email"`
	HotelID     int64     `bson:"hotel_id,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
	Data        bson.M    `bson:"data"`
}

// EnsureIndexes creates the lookup indexes used by History.
func (a *AuditLogger) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "aggregate_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "hotel_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

// LogEvent stores evt once; redelivered events keep their first copy.
func (a *AuditLogger) LogEvent(ctx context.Context, evt domain.BookingEvent) error {
	log := AuditLog{
		ID:          evt.ID.String(),
		Action:      evt.Type,
		AggregateID: evt.AggregateID(),
		Email:       evt.Email,
		HotelID:     evt.HotelID,
		Timestamp:   evt.OccurredAt,
		Data: bson.M{
			"unit_id":    evt.UnitID,
			"guest":      evt.Guest,
			"status":     string(evt.Status),
			"payment":    string(evt.Payment),
			"total":      evt.Total,
			"start_date": evt.StartDate,
		},
	}
	_, err := a.coll.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

// History returns the audit trail of one reservation, oldest first.
func (a *AuditLogger) History(ctx context.Context, k domain.Kind, reservationID int64) ([]AuditLog, error) {
	aggregate := domain.BookingEvent{Kind: k, ReservationID: reservationID}.AggregateID()
	cur, err := a.coll.Find(ctx, bson.M{"aggregate_id": aggregate},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []AuditLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
