package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"golang.org/x/sync/errgroup"
)

type AdminBackend interface {
	ListReservations(ctx context.Context, token string, k domain.Kind, f domain.ReservationFilter) ([]domain.ReservationSummary, error)
	GetReservation(ctx context.Context, token string, k domain.Kind, id int64) (*domain.ReservationSummary, error)
	UpdateReservation(ctx context.Context, token string, k domain.Kind, id int64, fields map[string]any) error
	CancelReservation(ctx context.Context, token string, k domain.Kind, id int64) error
}

// Admin serves the hotel staff reservation views on top of the backend.
// Status changes are mirrored into the flow state of bookings made here, so
// receipts, payments and reminders follow what staff decided.
type Admin struct {
	backend AdminBackend
	store   StateStore
	ledger  Ledger
	logger  observability.Logger
	now     func() time.Time
}

// NewAdmin wires the admin service. ledger may be nil.
func NewAdmin(b AdminBackend, store StateStore, ledger Ledger, logger observability.Logger) *Admin {
	return &Admin{backend: b, store: store, ledger: ledger, logger: logger, now: time.Now}
}

func (a *Admin) List(ctx context.Context, token string, k domain.Kind, f domain.ReservationFilter) ([]domain.ReservationSummary, error) {
	return a.backend.ListReservations(ctx, token, k, f)
}

// ListAll queries every kind concurrently. The unit filter is per kind and is
// ignored here.
func (a *Admin) ListAll(ctx context.Context, token string, f domain.ReservationFilter) ([]domain.ReservationSummary, error) {
	f.UnitID = 0

	var mu sync.Mutex
	var all []domain.ReservationSummary

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range domain.Kinds() {
		k := k
		g.Go(func() error {
			list, err := a.backend.ListReservations(gctx, token, k, f)
			if err != nil {
				return errors.Wrapf(err, "list %s reservations", k)
			}
			mu.Lock()
			all = append(all, list...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Kind != all[j].Kind {
			return all[i].Kind.String() < all[j].Kind.String()
		}
		return all[i].ID > all[j].ID
	})
	return all, nil
}

func (a *Admin) Get(ctx context.Context, token string, k domain.Kind, id int64) (*domain.ReservationSummary, error) {
	return a.backend.GetReservation(ctx, token, k, id)
}

// Update is a partial change from the admin edit form.
type Update struct {
	Status *domain.Status `json:"status,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
}

func (a *Admin) Update(ctx context.Context, token string, k domain.Kind, id int64, u Update) error {
	fields := map[string]any{}
	if u.Status != nil {
		if !u.Status.Valid() {
			return &domain.ValidationError{Field: "status", Message: "unknown status " + string(*u.Status)}
		}
		fields["statut"] = string(*u.Status)
	}
	if u.Notes != nil {
		fields[k.NotesField()] = *u.Notes
	}
	if len(fields) == 0 {
		return &domain.ValidationError{Field: "status", Message: "nothing to update"}
	}
	if err := a.backend.UpdateReservation(ctx, token, k, id, fields); err != nil {
		return err
	}
	if u.Status != nil {
		if err := a.applyStatus(ctx, k, id, *u.Status); err != nil {
			return err
		}
	}
	a.logger.WithFields(map[string]interface{}{"kind": k.String(), "reservation_id": id}).Info("reservation updated")
	return nil
}

func (a *Admin) Cancel(ctx context.Context, token string, k domain.Kind, id int64) error {
	if err := a.backend.CancelReservation(ctx, token, k, id); err != nil {
		return err
	}
	if err := a.applyStatus(ctx, k, id, domain.StatusCancelled); err != nil {
		return err
	}
	a.logger.WithFields(map[string]interface{}{"kind": k.String(), "reservation_id": id}).Info("reservation cancelled")
	return nil
}

// applyStatus copies a status the backend accepted into the stored flow
// state. Bookings made elsewhere have no state and are left alone.
func (a *Admin) applyStatus(ctx context.Context, k domain.Kind, id int64, status domain.Status) error {
	if a.store == nil {
		return nil
	}
	st, err := a.store.Load(ctx, k, id)
	if errors.Is(err, domain.ErrNoReservation) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "load flow state for %s", flowKey(k, id))
	}
	if st.Record.Status == status {
		return nil
	}

	st.Record.Status = status
	st.UpdatedAt = a.now().UTC()
	if err := a.store.Save(ctx, st); err != nil {
		return errors.Wrapf(err, "save flow state for %s", flowKey(k, id))
	}

	if a.ledger != nil {
		event := domain.EventStatusChanged
		switch status {
		case domain.StatusConfirmed:
			event = domain.EventReservationConfirmed
		case domain.StatusCancelled:
			event = domain.EventReservationCancelled
		}
		if err := a.ledger.Record(ctx, st, event); err != nil {
			a.logger.WithFields(map[string]interface{}{
				"reservation": flowKey(k, id),
				"event":       event,
			}).Error("ledger write failed: ", err)
		}
	}
	return nil
}
