package backend

import (
	"encoding/json"

	"github.com/robertarktes/hotel-booking/internal/domain"
)

// EncodeReservation builds the POST body for a kind using the backend's
// field names.
func EncodeReservation(k domain.Kind, unitID int64, d domain.ReservationDraft, q domain.Quote) map[string]any {
	p := map[string]any{
		k.UnitIDField():    unitID,
		"nom":              d.LastName,
		"prenom":           d.FirstName,
		"email":            d.Email,
		"methode_paiement": string(d.PaymentMethod),
		k.TotalField():     q.Total,
		k.GuestsField():    d.Occupants,
		k.NotesField():     d.Notes,
	}
	if k.FlatFee() {
		p["type_evenement"] = d.EventType
		p["date_evenement"] = d.EventDate
		p["heure_debut"] = d.StartTime
		p["heure_fin"] = d.EndTime
	} else {
		p["date_arrivee"] = d.ArrivalDate
		p["date_depart"] = d.DepartureDate
	}
	return p
}

// wireReservation is the union of the three backend reservation shapes.
type wireReservation struct {
	ID              int64         `json:"id"`
	RoomID          int64         `json:"room_id"`
	ApartmentID     int64         `json:"apartment_id"`
	EventRoomID     int64         `json:"event_room_id"`
	Nom             string        `json:"nom"`
	Prenom          string        `json:"prenom"`
	Email           string        `json:"email"`
	DateArrivee     string        `json:"date_arrivee"`
	DateDepart      string        `json:"date_depart"`
	Dates           string        `json:"dates"`
	TypeEvenement   string        `json:"type_evenement"`
	DateEvenement   string        `json:"date_evenement"`
	HeureDebut      string        `json:"heure_debut"`
	HeureFin        string        `json:"heure_fin"`
	NombrePersonnes int           `json:"nombre_personnes"`
	NombreInvites   int           `json:"nombre_invites"`
	MethodePaiement string        `json:"methode_paiement"`
	Statut          domain.Status `json:"statut"`
	PrixTotal       json.Number   `json:"prix_total"`
	Notes           string        `json:"notes"`
	Preferences     string        `json:"preferences"`
	CreatedAt       string        `json:"created_at"`
}

func (w wireReservation) summary(k domain.Kind) domain.ReservationSummary {
	total, _ := w.PrixTotal.Float64()
	s := domain.ReservationSummary{
		ID:            w.ID,
		Kind:          k,
		LastName:      w.Nom,
		FirstName:     w.Prenom,
		Email:         w.Email,
		ArrivalDate:   w.DateArrivee,
		DepartureDate: w.DateDepart,
		Dates:         w.Dates,
		EventType:     w.TypeEvenement,
		EventDate:     w.DateEvenement,
		StartTime:     w.HeureDebut,
		EndTime:       w.HeureFin,
		Occupants:     w.NombrePersonnes,
		PaymentMethod: w.MethodePaiement,
		Status:        w.Statut,
		Total:         total,
		Notes:         w.Notes,
		CreatedAt:     w.CreatedAt,
	}
	switch k {
	case domain.Room:
		s.UnitID = w.RoomID
	case domain.Apartment:
		s.UnitID = w.ApartmentID
		if s.Notes == "" {
			s.Notes = w.Preferences
		}
	case domain.EventHall:
		s.UnitID = w.EventRoomID
		s.Occupants = w.NombreInvites
	}
	return s
}
