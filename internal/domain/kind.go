package domain

import "strings"

// Kind identifies one of the three bookable unit families. Every kind-specific
// difference in the workflow (endpoints, payload keys, pricing mode) hangs off it.
type Kind struct {
	name        string
	catalogPath string
	unitIDField string
	totalField  string
	guestsField string
	notesField  string
	confirmSlug string
	label       string
	flatFee     bool
}

var (
	Room = Kind{
		name:        "room",
		catalogPath: "rooms",
		unitIDField: "room_id",
		totalField:  "total_price",
		guestsField: "nombre_personnes",
		notesField:  "notes",
		confirmSlug: "chambre",
		label:       "Chambre",
	}
	Apartment = Kind{
		name:        "apartment",
		catalogPath: "apartments",
		unitIDField: "apartment_id",
		totalField:  "prix_total",
		guestsField: "nombre_personnes",
		notesField:  "preferences",
		confirmSlug: "appartement",
		label:       "Appartement",
	}
	EventHall = Kind{
		name:        "event-hall",
		catalogPath: "event-rooms",
		unitIDField: "event_room_id",
		totalField:  "prix_total",
		guestsField: "nombre_invites",
		notesField:  "notes",
		confirmSlug: "salle-evenement",
		label:       "Salle",
		flatFee:     true,
	}
)

func Kinds() []Kind {
	return []Kind{Room, Apartment, EventHall}
}

// ParseKind accepts the kind name or its backend path segment.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if s == k.name || s == k.catalogPath {
			return k, nil
		}
	}
	return Kind{}, ErrUnknownKind
}

func (k Kind) String() string      { return k.name }
func (k Kind) IsZero() bool        { return k.name == "" }
func (k Kind) FlatFee() bool       { return k.flatFee }
func (k Kind) Label() string       { return k.label }
func (k Kind) ConfirmSlug() string { return k.confirmSlug }

// UnitPath is the backend catalog path for one unit, relative to /api.
func (k Kind) UnitPath(id int64) string {
	return "/" + k.catalogPath + "/" + itoa(id)
}

// ReservationsPath is the backend collection path, relative to /api.
func (k Kind) ReservationsPath() string {
	return "/reservations/" + k.catalogPath
}

func (k Kind) ReservationPath(id int64) string {
	return k.ReservationsPath() + "/" + itoa(id)
}

func (k Kind) UnitIDField() string { return k.unitIDField }
func (k Kind) TotalField() string  { return k.totalField }
func (k Kind) GuestsField() string { return k.guestsField }
func (k Kind) NotesField() string  { return k.notesField }

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.name), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
