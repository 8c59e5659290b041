package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/robertarktes/hotel-booking/internal/booking"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/export"
	"github.com/robertarktes/hotel-booking/internal/session"
)

// AdminService is the staff reservation view, implemented by booking.Admin.
type AdminService interface {
	List(ctx context.Context, token string, k domain.Kind, f domain.ReservationFilter) ([]domain.ReservationSummary, error)
	ListAll(ctx context.Context, token string, f domain.ReservationFilter) ([]domain.ReservationSummary, error)
	Get(ctx context.Context, token string, k domain.Kind, id int64) (*domain.ReservationSummary, error)
	Update(ctx context.Context, token string, k domain.Kind, id int64, u booking.Update) error
	Cancel(ctx context.Context, token string, k domain.Kind, id int64) error
}

// filterFrom reads the list filters. Without an explicit hotel_id the
// session's hotel is used.
func filterFrom(r *http.Request) (domain.ReservationFilter, error) {
	q := r.URL.Query()
	f := domain.ReservationFilter{
		Status:   domain.Status(q.Get("status")),
		Email:    q.Get("email"),
		FromDate: q.Get("from_date"),
		ToDate:   q.Get("to_date"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, &domain.ValidationError{Field: "status", Message: "unknown status " + string(f.Status)}
	}
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"hotel_id", &f.HotelID}, {"unit_id", &f.UnitID}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return f, &domain.ValidationError{Field: p.name, Message: "must be a positive integer"}
		}
		*p.dst = n
	}
	if f.HotelID == 0 {
		if s, ok := session.FromContext(r.Context()); ok && s.Hotel != nil {
			f.HotelID = s.Hotel.ID
		}
	}
	return f, nil
}

func (h *Handlers) ListAllReservations(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.admin.ListAll(r.Context(), token(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": nonNil(list), "count": len(list)})
}

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.admin.List(r.Context(), token(r), k, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": nonNil(list), "count": len(list)})
}

func (h *Handlers) ExportReservations(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.admin.List(r.Context(), token(r), k, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, list); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(k)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.Get(r.Context(), token(r), k, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var u booking.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "malformed JSON body"})
		return
	}
	if err := h.admin.Update(r.Context(), token(r), k, id, u); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.Cancel(r.Context(), token(r), k, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(list []domain.ReservationSummary) []domain.ReservationSummary {
	if list == nil {
		return []domain.ReservationSummary{}
	}
	return list
}
