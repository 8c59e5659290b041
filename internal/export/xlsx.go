package export

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Réservations"

var header = []interface{}{
	"ID", "Type", "Unité", "Nom", "Prénom", "Email", "Début", "Fin",
	"Personnes", "Paiement", "Statut", "Total (XAF)", "Notes", "Créée le",
}

func Filename(k domain.Kind) string {
	if k.IsZero() {
		return "reservations.xlsx"
	}
	return "reservations_" + k.String() + ".xlsx"
}

// WriteReservations writes rows as a single-sheet workbook.
func WriteReservations(w io.Writer, rows []domain.ReservationSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "N1", bold); err != nil {
		return err
	}

	for i, r := range rows {
		start, end := window(r)
		row := []interface{}{
			r.ID, r.Kind.Label(), r.UnitID, r.LastName, r.FirstName, r.Email, start, end,
			r.Occupants, r.PaymentMethod, string(r.Status), r.Total, r.Notes, r.CreatedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %d", r.ID)
		}
	}

	last := len(rows) + 1
	if len(rows) > 0 {
		lastTotal, _ := excelize.CoordinatesToCellName(12, last)
		if err := f.SetCellStyle(sheetName, "L2", lastTotal, money); err != nil {
			return err
		}
	}
	lastCell, _ := excelize.CoordinatesToCellName(len(header), last)
	if err := f.AutoFilter(sheetName, "A1:"+lastCell, nil); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "D", "F", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "G", "H", 18); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	return f.Write(w)
}

func window(r domain.ReservationSummary) (string, string) {
	if r.Kind.FlatFee() {
		start, end := r.EventDate, r.EventDate
		if r.StartTime != "" {
			start += " " + r.StartTime
		}
		if r.EndTime != "" {
			end += " " + r.EndTime
		}
		return start, end
	}
	return r.ArrivalDate, r.DepartureDate
}
