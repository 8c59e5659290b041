package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/robertarktes/hotel-booking/internal/domain"
)

// APIError is a non-2xx backend answer. Message is what the backend said,
// unchanged, so it can be shown to the guest as is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap maps well-known statuses onto domain errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("backend request failed with status %d", resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
