package http

import (
	"strconv"

	"github.com/robertarktes/hotel-booking/internal/domain"
)

type paymentView struct {
	State         domain.PaymentStep `json:"state"`
	Error         string             `json:"error,omitempty"`
	Operator      string             `json:"operator,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

type confirmationView struct {
	Reservation domain.ReservationRecord `json:"reservation"`
	Unit        domain.BookableUnit      `json:"unit"`
	Payment     paymentView              `json:"payment"`
	Receipts    map[string]string        `json:"receipts,omitempty"`
}

func bookingPath(st *domain.FlowState) string {
	return "/v1/bookings/" + st.Record.Kind.String() + "/" + strconv.FormatInt(st.Record.ID, 10)
}

func newConfirmationView(st *domain.FlowState) confirmationView {
	v := confirmationView{
		Reservation: st.Record,
		Unit:        st.Unit,
		Payment: paymentView{
			State:         st.Payment,
			Error:         st.PaymentError,
			Operator:      st.Operator,
			TransactionID: st.TransactionID,
		},
	}
	if st.Record.Status == domain.StatusConfirmed {
		base := bookingPath(st)
		v.Receipts = map[string]string{
			"html": base + "/receipt.html",
			"pdf":  base + "/receipt.pdf",
		}
	}
	return v
}
