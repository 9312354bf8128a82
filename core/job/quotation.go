package job

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core/customer"
)

// InstallationFee is charged per measured window.
const InstallationFee = 50.0

type QuotationLine struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

type Quotation struct {
	JobID     string          `json:"job_id"`
	Reference string          `json:"reference"`
	Lines     []QuotationLine `json:"lines"`
	Total     float64         `json:"total"`
}

// QuotationLines lists the selected products then the installation fee, if any window was measured.
func QuotationLines(j Job) []QuotationLine {
	lines := make([]QuotationLine, 0, len(j.SelectedProducts)+1)
	for _, sp := range j.SelectedProducts {
		lines = append(lines, QuotationLine{
			Description: sp.ProductName,
			Quantity:    sp.Quantity,
			UnitPrice:   sp.Price,
			Total:       sp.Subtotal(),
		})
	}
	if n := len(j.Measurements); n > 0 {
		lines = append(lines, QuotationLine{
			Description: "Installation",
			Quantity:    n,
			UnitPrice:   InstallationFee,
			Total:       InstallationFee * float64(n),
		})
	}
	return lines
}

// QuotationTotal is the sum of the selected products plus the installation fee per measured window.
func QuotationTotal(j Job) float64 {
	var total float64
	for _, l := range QuotationLines(j) {
		total += l.Total
	}
	return total
}

func NewQuotation(j Job) Quotation {
	return Quotation{
		JobID:     j.ID,
		Reference: j.CustomerReference,
		Lines:     QuotationLines(j),
		Total:     QuotationTotal(j),
	}
}

// RenderQuotationPDF renders the quotation of j for customer c as an A4 PDF document.
func RenderQuotationPDF(j Job, c customer.Customer, businessName string) ([]byte, error) {
	q := NewQuotation(j)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("%s - Quotation", businessName), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Reference: %s", q.Reference), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Customer: %s", c.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Address: %s %s", c.Address, c.Postcode), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Scheduled: %s %s", j.ScheduledDate, j.ScheduledTime), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	// table header
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(90, 10, "Item", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 10, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 10, "Unit price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 10, "Total", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	for _, l := range q.Lines {
		pdf.CellFormat(90, 10, l.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 10, fmt.Sprintf("%d", l.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 10, fmt.Sprintf("%.2f", l.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 10, fmt.Sprintf("%.2f", l.Total), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(150, 10, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 10, fmt.Sprintf("%.2f", q.Total), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering quotation pdf")
	}
	return buf.Bytes(), nil
}
