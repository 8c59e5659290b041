package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string // NEW, PUBLISHED, FAILED
	Attempts      int
	DedupeKey     string
}

// maxAttempts before a record is parked as FAILED.
const maxAttempts = 10

func (r *Repository) InsertOutbox(ctx context.Context, tx pgx.Tx, record OutboxRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, 'NEW', $6)
	`, record.ID, record.AggregateType, record.AggregateID, record.EventType, record.Payload, record.DedupeKey)
	return err
}

// ClaimOutbox runs fn over up to limit unpublished records inside one
// transaction. The rows stay locked so parallel relays skip them.
func (r *Repository) ClaimOutbox(ctx context.Context, limit int, fn func(tx pgx.Tx, records []OutboxRecord) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, attempts, dedupe_key
			FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxRecord, error) {
			var rec OutboxRecord
			err := row.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload,
				&rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.Attempts, &rec.DedupeKey)
			return rec, err
		})
		if err != nil {
			return err
		}
		return fn(tx, records)
	})
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2, attempts = attempts + 1 WHERE id = $1
	`, id, publishedAt)
	return err
}

// MarkAttemptFailed counts a failed publish and parks the record once it has
// failed too often.
func (r *Repository) MarkAttemptFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox SET attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE status END
		WHERE id = $1
	`, id, maxAttempts)
	return err
}
