package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/backend"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/payment"
	"github.com/robertarktes/hotel-booking/internal/session"
)

type errorBody struct {
	Error  string                    `json:"error"`
	Fields []*domain.ValidationError `json:"fields,omitempty"`
	Back   string                    `json:"back,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps every error the workflow can return to one response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs    domain.ValidationErrors
		verr     *domain.ValidationError
		phoneErr *payment.PhoneError
		apiErr   *backend.APIError
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verrs.Error(), Fields: verrs})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Fields: []*domain.ValidationError{verr}})
	case errors.As(err, &phoneErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:  phoneErr.Error(),
			Fields: []*domain.ValidationError{{Field: "phone", Message: phoneErr.Error()}},
		})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorBody{Error: apiErr.Message})
	case errors.Is(err, domain.ErrNoReservation):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no reservation found", Back: backLink(r)})
	case errors.Is(err, session.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
	case errors.Is(err, domain.ErrUnknownKind), errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotConfirmed),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrUnitUnavailable),
		errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidPhone):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, payment.ErrPaymentDeclined):
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: err.Error()})
	default:
		LoggerFrom(r.Context(), observability.NewNopLogger()).Error("request failed: ", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func backLink(r *http.Request) string {
	if k, err := kindParam(r); err == nil {
		return "/v1/units/" + k.String()
	}
	return "/v1/units"
}
