package receipt

import (
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
)

// RenderPDF writes an A4 receipt. Core fonts are cp1252, so text goes
// through the unicode translator.
func RenderPDF(w io.Writer, r Receipt) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Facture de Réservation #"+strconv.FormatInt(r.ReservationID, 10), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("FACTURE DE RÉSERVATION"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr("Réservation #"+strconv.FormatInt(r.ReservationID, 10)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+ShortDate(r.IssuedAt), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(6)

	section := func(title string, lines []Line) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, l := range lines {
			pdf.CellFormat(80, 7, tr(l.Label+":"), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 7, tr(l.Value), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	section("Informations Client", []Line{{"Nom", r.Guest}, {"Email", r.Email}})

	details := r.Details
	if r.Notes != "" {
		details = append(append([]Line{}, details...), Line{"Notes", r.Notes})
	}
	section("Détails de la Réservation", details)
	section("Détail du Paiement", r.Payment)

	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(80, 10, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, tr(r.Total), "", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 6, tr("Merci pour votre réservation !"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr("En cas de questions, veuillez nous contacter."), "", 1, "C", false, 0, "")

	return pdf.Output(w)
}
