package receiptsvc

import (
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/payment"
)

const issuedLayout = "2006-01-02 15:04 MST"

type pdfRenderer struct{}

var _ payment.ReceiptRenderer = (*pdfRenderer)(nil)

// NewPDFRenderer returns a renderer printing A4 receipts.
func NewPDFRenderer() payment.ReceiptRenderer {
	return &pdfRenderer{}
}

func (pdfRenderer) ContentType() string { return "application/pdf" }

func (pdfRenderer) Render(w io.Writer, r payment.Receipt) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252, for accented names
	pdf.SetTitle(fmt.Sprintf("Receipt #%d", r.Payment.ID), true)
	pdf.SetAuthor(r.AcademyName, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(r.AcademyName))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Payment receipt #%06d", r.Payment.ID))
	pdf.Ln(14)

	rows := [][2]string{
		{"Player", r.PlayerName},
		{"Concept", humanize(r.Payment.Concept)},
		{"Method", humanize(r.Payment.Method)},
		{"Status", humanize(r.Payment.Status)},
		{"Paid on", r.Payment.PaidOn},
	}
	if r.Payment.Reference != "" {
		rows = append(rows, [2]string{"Reference", r.Payment.Reference})
	}
	if r.RecordedBy != "" {
		rows = append(rows, [2]string{"Recorded by", r.RecordedBy})
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 8, row[0], "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, tr(row[1]), "B", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(45, 10, "Amount", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, payment.FormatAmount(r.Payment.Amount), "", 1, "L", false, 0, "")

	if r.Payment.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, tr(r.Payment.Notes), "", "", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Issued "+r.IssuedAt.Format(issuedLayout))

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "writing receipt pdf")
	}
	return nil
}

// humanize turns "monthly_fee" into "Monthly fee".
func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
