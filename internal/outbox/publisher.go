package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/hotel-booking/internal/adapters/crdb"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

// Store is the slice of the ledger the relay needs.
type Store interface {
	ClaimOutbox(ctx context.Context, limit int, fn func(tx pgx.Tx, records []crdb.OutboxRecord) error) error
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error
	MarkAttemptFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store     Store
	sink      Sink
	logger    observability.Logger
	interval  time.Duration
	batchSize int
}

func NewPublisher(store Store, sink Sink, logger observability.Logger) *Publisher {
	return &Publisher{
		store:     store,
		sink:      sink,
		logger:    logger,
		interval:  5 * time.Second,
		batchSize: 50,
	}
}

func (p *Publisher) WithInterval(d time.Duration) *Publisher {
	p.interval = d
	return p
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Flush(ctx); err != nil {
				p.logger.Error("outbox flush failed: ", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many records went out.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	published := 0
	err := p.store.ClaimOutbox(ctx, p.batchSize, func(tx pgx.Tx, records []crdb.OutboxRecord) error {
		published = 0
		if len(records) == 0 {
			observability.OutboxLag.Set(0)
			return nil
		}
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())

		for _, rec := range records {
			msg := amqp.Publishing{
				MessageId:    rec.DedupeKey,
				ContentType:  "application/json",
				Type:         rec.EventType,
				Timestamp:    rec.CreatedAt,
				DeliveryMode: amqp.Persistent,
				Headers:      amqp.Table{"aggregate_id": rec.AggregateID},
				Body:         rec.Payload,
			}
			if err := p.sink.Publish(ctx, rec.EventType, msg); err != nil {
				p.logger.WithFields(map[string]interface{}{
					"outbox_id":  rec.ID.String(),
					"event_type": rec.EventType,
				}).Warn("publish failed: ", err)
				if err := p.store.MarkAttemptFailed(ctx, tx, rec.ID); err != nil {
					return err
				}
				continue
			}
			if err := p.store.MarkPublished(ctx, tx, rec.ID, time.Now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, err
}
