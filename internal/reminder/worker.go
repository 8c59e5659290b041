package reminder

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-booking/internal/adapters/crdb"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

type Ledger interface {
	DueForReminder(ctx context.Context, day time.Time, limit int) ([]crdb.Booking, error)
	MarkReminded(ctx context.Context, b crdb.Booking, at time.Time) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

const lockName = "reminder-worker"

// Worker queues a reservation.reminder_due event for confirmed bookings that
// start LeadDays from now. Only one replica works at a time.
type Worker struct {
	ledger   Ledger
	locker   Locker
	logger   observability.Logger
	leadDays int
	owner    string
	batch    int
}

func NewWorker(ledger Ledger, locker Locker, leadDays int, logger observability.Logger) *Worker {
	return &Worker{
		ledger:   ledger,
		locker:   locker,
		logger:   logger,
		leadDays: leadDays,
		owner:    uuid.NewString(),
		batch:    100,
	}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Tick(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("reminder tick failed: ", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick processes one pass and returns how many reminders were queued.
func (w *Worker) Tick(ctx context.Context, now time.Time) (int, error) {
	ok, err := w.locker.AcquireLock(ctx, lockName, w.owner, 5*time.Minute)
	if err != nil {
		return 0, errors.Wrap(err, "acquire reminder lock")
	}
	if !ok {
		w.logger.Debug("another reminder worker holds the lock")
		return 0, nil
	}
	defer func() {
		if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), lockName, w.owner); err != nil {
			w.logger.Warn("release reminder lock: ", err)
		}
	}()

	day := now.AddDate(0, 0, w.leadDays)
	queued := 0
	for {
		due, err := w.ledger.DueForReminder(ctx, day, w.batch)
		if err != nil {
			return queued, errors.Wrap(err, "list due bookings")
		}

		progress := 0
		for _, b := range due {
			err := w.markWithRetry(ctx, b, now)
			switch {
			case err == nil:
				queued++
				progress++
			case errors.Is(err, domain.ErrConflict):
				// reminded by an earlier pass
				progress++
			case ctx.Err() != nil:
				return queued, ctx.Err()
			default:
				w.logger.WithFields(map[string]interface{}{
					"kind":           b.Kind.String(),
					"reservation_id": b.ReservationID,
				}).Error("failed to queue reminder after retries: ", err)
			}
		}
		// failed rows come back in the next batch, so stop once a batch
		// moves nothing forward
		if len(due) < w.batch || progress == 0 {
			break
		}
	}
	if queued > 0 {
		w.logger.WithField("count", queued).Info("reminders queued")
	}
	return queued, nil
}

func (w *Worker) markWithRetry(ctx context.Context, b crdb.Booking, now time.Time) error {
	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		err = w.ledger.MarkReminded(ctx, b, now)
		if err == nil || errors.Is(err, domain.ErrConflict) {
			return err
		}
		backoff := time.Duration(1<<i) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", maxRetries)
}
