package receipt

import (
	"strconv"
	"strings"
	"time"

	"github.com/robertarktes/hotel-booking/internal/domain"
)

const Currency = "XAF"

// Line is one label/value row of a receipt section.
type Line struct {
	Label string
	Value string
}

// Receipt is the printable view of a confirmed booking.
type Receipt struct {
	ReservationID int64
	IssuedAt      time.Time
	Guest         string
	Email         string
	Details       []Line
	Payment       []Line
	Total         string
	Notes         string
}

func Filename(id int64, ext string) string {
	return "Facture_Reservation_" + strconv.FormatInt(id, 10) + "." + ext
}

// FromState builds the receipt of a confirmed booking.
func FromState(st *domain.FlowState, issuedAt time.Time) Receipt {
	rec := st.Record
	d := rec.Draft
	r := Receipt{
		ReservationID: rec.ID,
		IssuedAt:      issuedAt,
		Guest:         d.LastName + " " + d.FirstName,
		Email:         d.Email,
		Total:         Amount(rec.Quote.Total),
		Notes:         d.Notes,
	}

	unitName := st.Unit.Name
	if unitName == "" {
		unitName = "#" + strconv.FormatInt(rec.UnitID, 10)
	}
	r.Details = append(r.Details, Line{rec.Kind.Label(), unitName})

	if rec.Kind.FlatFee() {
		r.Details = append(r.Details,
			Line{"Type d'événement", d.EventType},
			Line{"Date de l'événement", LongDate(d.EventDate)},
			Line{"Horaire", d.StartTime + " - " + d.EndTime},
			Line{"Nombre d'invités", strconv.Itoa(d.Occupants)},
		)
		r.Payment = append(r.Payment, Line{"Prix de location", Amount(rec.Quote.UnitPrice)})
	} else {
		nights := strconv.Itoa(rec.Quote.Nights)
		r.Details = append(r.Details,
			Line{"Date d'arrivée", LongDate(d.ArrivalDate)},
			Line{"Date de départ", LongDate(d.DepartureDate)},
			Line{"Nombre de nuits", nights},
			Line{"Nombre de personnes", strconv.Itoa(d.Occupants)},
		)
		r.Payment = append(r.Payment,
			Line{"Prix par nuit", Amount(rec.Quote.UnitPrice)},
			Line{"Nombre de nuits", nights},
		)
	}
	if method := string(d.PaymentMethod); method != "" {
		r.Payment = append(r.Payment, Line{"Mode de paiement", method})
	}
	if st.TransactionID != "" {
		r.Payment = append(r.Payment, Line{"Transaction", st.TransactionID})
	}
	return r
}

// Amount formats a whole amount with space-grouped thousands, e.g. "75 000 XAF".
func Amount(v float64) string {
	n := int64(v + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return b.String() + " " + Currency
}

var (
	weekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	months   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// LongDate renders a booking date as "lundi 2 mars 2026". Unparsable input is
// returned unchanged.
func LongDate(s string) string {
	t, err := domain.ParseDate(s)
	if err != nil {
		return s
	}
	return weekdays[t.Weekday()] + " " + strconv.Itoa(t.Day()) + " " + months[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// ShortDate is the dd/mm/yyyy issue date.
func ShortDate(t time.Time) string {
	return t.Format("02/01/2006")
}
