package domain

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// BookableUnit is a room, apartment or event hall as served by the backend
// catalog. Price is per night for stays and the flat rental fee for halls.
type BookableUnit struct {
	ID          int64   `json:"id"`
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Capacity    int     `json:"capacity"`
	Price       float64 `json:"price"`
	Available   bool    `json:"is_available"`
	HotelID     int64   `json:"hotel_id,omitempty"`
	Number      string  `json:"number,omitempty"`
}

// catalogUnit is the union of the three backend catalog shapes.
type catalogUnit struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	RoomType      string          `json:"room_type"`
	ApartmentType string          `json:"apartment_type"`
	RoomNumber    json.RawMessage `json:"room_number"`
	Description   string          `json:"description"`
	Capacity      int             `json:"capacity"`
	PricePerNight *float64        `json:"price_per_night"`
	RentalPrice   *float64        `json:"rental_price"`
	IsAvailable   *bool           `json:"is_available"`
	HotelID       int64           `json:"hotel_id"`
}

// DecodeUnit maps a backend catalog document onto a BookableUnit of kind k.
func DecodeUnit(k Kind, data []byte) (*BookableUnit, error) {
	var raw catalogUnit
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decode %s", k)
	}

	unit := &BookableUnit{
		ID:          raw.ID,
		Kind:        k,
		Description: raw.Description,
		Capacity:    raw.Capacity,
		HotelID:     raw.HotelID,
		Available:   raw.IsAvailable == nil || *raw.IsAvailable,
		Number:      numberString(raw.RoomNumber),
	}

	switch k {
	case Room:
		unit.Name = firstNonEmpty(raw.Type, raw.RoomType, raw.Name)
		if raw.PricePerNight != nil {
			unit.Price = *raw.PricePerNight
		}
	case Apartment:
		unit.Name = firstNonEmpty(raw.Name, raw.Type, raw.ApartmentType)
		if raw.PricePerNight != nil {
			unit.Price = *raw.PricePerNight
		}
	case EventHall:
		unit.Name = raw.Name
		if raw.RentalPrice != nil {
			unit.Price = *raw.RentalPrice
		}
	default:
		return nil, ErrUnknownKind
	}

	if unit.Name == "" {
		unit.Name = k.label + " #" + itoa(unit.ID)
	}
	return unit, nil
}

func numberString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
