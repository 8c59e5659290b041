package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

const (
	SerializationFailureCode = "40001"
)

// Repository is the local booking ledger. The hotel backend stays the
// system of record for reservations; the ledger keeps what this service
// did with them and feeds the outbox.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		return mapTxError(err)
	}

	return mapTxError(tx.Commit(ctx))
}

func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
		return domain.ErrSerializationFailure
	}
	return err
}

// Record upserts the booking row and queues eventType in the same
// transaction. A serialization failure is retried a few times.
func (r *Repository) Record(ctx context.Context, st *domain.FlowState, eventType string) error {
	evt := domain.NewBookingEvent(eventType, st, time.Now())
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	var startDate *string
	if evt.StartDate != "" {
		if t, err := domain.ParseDate(evt.StartDate); err == nil {
			d := t.Format("2006-01-02")
			startDate = &d
		}
	}
	createdAt := st.Record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var hotelID *int64
	if st.Unit.HotelID != 0 {
		hotelID = &st.Unit.HotelID
	}

	return r.retry(ctx, func() error {
		return r.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				UPSERT INTO bookings (kind, reservation_id, unit_id, hotel_id, guest, email, status, payment, total, start_date, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::DATE, $11, now())
			`, st.Record.Kind.String(), st.Record.ID, st.Record.UnitID, hotelID, evt.Guest, evt.Email,
				string(st.Record.Status), string(st.Payment), st.Record.Quote.Total, startDate, createdAt)
			if err != nil {
				return err
			}
			return r.InsertOutbox(ctx, tx, OutboxRecord{
				ID:            evt.ID,
				AggregateType: "reservation",
				AggregateID:   evt.AggregateID(),
				EventType:     eventType,
				Payload:       payload,
				DedupeKey:     evt.ID.String(),
			})
		})
	})
}

func (r *Repository) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < 3; i++ {
		err = fn()
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * 50 * time.Millisecond):
		}
	}
	return err
}

// Booking is a ledger row.
type Booking struct {
	Kind          domain.Kind
	ReservationID int64
	UnitID        int64
	HotelID       *int64
	Guest         string
	Email         string
	Status        domain.Status
	Payment       domain.PaymentStep
	Total         float64
	StartDate     *time.Time
	RemindedAt    *time.Time
}

// DueForReminder lists confirmed bookings starting on day that have not been
// reminded yet.
func (r *Repository) DueForReminder(ctx context.Context, day time.Time, limit int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, bookingSelect+`
		WHERE status = $1 AND start_date = $2::DATE AND reminded_at IS NULL
		ORDER BY kind, reservation_id LIMIT $3
	`, string(domain.StatusConfirmed), day.Format("2006-01-02"), limit)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// MarkReminded stamps the booking and queues the reminder event in one
// transaction. It returns domain.ErrConflict if someone else got there first.
func (r *Repository) MarkReminded(ctx context.Context, b Booking, at time.Time) error {
	evt := domain.BookingEvent{
		ID:            uuid.New(),
		Type:          domain.EventReminderDue,
		Kind:          b.Kind,
		ReservationID: b.ReservationID,
		UnitID:        b.UnitID,
		Guest:         b.Guest,
		Email:         b.Email,
		Status:        b.Status,
		Payment:       b.Payment,
		Total:         b.Total,
		OccurredAt:    at.UTC(),
	}
	if b.HotelID != nil {
		evt.HotelID = *b.HotelID
	}
	if b.StartDate != nil {
		evt.StartDate = b.StartDate.Format("2006-01-02")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		res, err := tx.Exec(ctx, `
			UPDATE bookings SET reminded_at = $3, updated_at = now()
			WHERE kind = $1 AND reservation_id = $2 AND reminded_at IS NULL
		`, b.Kind.String(), b.ReservationID, at)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            evt.ID,
			AggregateType: "reservation",
			AggregateID:   evt.AggregateID(),
			EventType:     evt.Type,
			Payload:       payload,
			DedupeKey:     evt.ID.String(),
		})
	})
}

const bookingSelect = `
	SELECT kind, reservation_id, unit_id, hotel_id, guest, email, status, payment, total::FLOAT8, start_date, reminded_at
	FROM bookings`

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		var kind, status, pay string
		if err := rows.Scan(&kind, &b.ReservationID, &b.UnitID, &b.HotelID, &b.Guest, &b.Email,
			&status, &pay, &b.Total, &b.StartDate, &b.RemindedAt); err != nil {
			return nil, err
		}
		k, err := domain.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		b.Kind = k
		b.Status = domain.Status(status)
		b.Payment = domain.PaymentStep(pay)
		out = append(out, b)
	}
	return out, rows.Err()
}
