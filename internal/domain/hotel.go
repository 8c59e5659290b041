package domain

type Hotel struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Stars   int    `json:"stars,omitempty"`
}

// ReservationSummary is a reservation as the admin views see it. Stays fill
// the arrival/departure pair, event halls the event fields.
type ReservationSummary struct {
	ID            int64   `json:"id"`
	Kind          Kind    `json:"kind"`
	UnitID        int64   `json:"unit_id"`
	LastName      string  `json:"last_name"`
	FirstName     string  `json:"first_name"`
	Email         string  `json:"email,omitempty"`
	ArrivalDate   string  `json:"arrival_date,omitempty"`
	DepartureDate string  `json:"departure_date,omitempty"`
	Dates         string  `json:"dates,omitempty"`
	EventType     string  `json:"event_type,omitempty"`
	EventDate     string  `json:"event_date,omitempty"`
	StartTime     string  `json:"start_time,omitempty"`
	EndTime       string  `json:"end_time,omitempty"`
	Occupants     int     `json:"occupants,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Status        Status  `json:"status"`
	Total         float64 `json:"total"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// ReservationFilter mirrors the backend list query parameters.
type ReservationFilter struct {
	HotelID  int64
	UnitID   int64
	Status   Status
	Email    string
	FromDate string
	ToDate   string
}
