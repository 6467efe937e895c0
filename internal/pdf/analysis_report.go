package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"reicrm/internal/finance"
	"reicrm/internal/models"
)

// Generator renders analysis reports; an interface so handlers can be tested without gofpdf.
type Generator interface {
	AnalysisReport(data ReportData) ([]byte, error)
}

type ReportData struct {
	Analysis    *models.Analysis
	Property    *models.Property
	Schedule    finance.AmortizationSchedule
	GeneratedAt time.Time
}

type DocumentGenerator struct {
	FontPath string // optional TTF; core Helvetica when empty
	fontName string
}

func NewDocumentGenerator(fontPath string) *DocumentGenerator {
	g := &DocumentGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

func (g *DocumentGenerator) AnalysisReport(data ReportData) ([]byte, error) {
	a := data.Analysis
	if a == nil {
		return nil, fmt.Errorf("analysis is required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Investment analysis #%d", a.ID), false)
	pdf.SetAuthor("reicrm", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addFont(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "Investment Analysis", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	title := a.Name
	if title == "" {
		title = fmt.Sprintf("Analysis #%d", a.ID)
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("%s  (%s, %s)", title, string(a.Type), data.GeneratedAt.Format("Jan 2, 2006")), "", 1, "C", false, 0, "")
	g.hr(pdf)

	if p := data.Property; p != nil {
		g.sectionTitle(pdf, "Property")
		g.kvLine(pdf, "Address", p.Address.OneLine())
		g.kvLine(pdf, "Type", string(p.PropertyType))
		g.kvLine(pdf, "Status", string(p.Status))
		if p.SquareFeet != nil {
			g.kvLine(pdf, "Square feet", fmt.Sprintf("%d", *p.SquareFeet))
		}
		if p.AuctionDate != nil {
			g.kvLine(pdf, "Auction date", p.AuctionDate.Format("Jan 2, 2006"))
		}
		g.hr(pdf)
	}

	in, r := a.Inputs, a.Results
	g.sectionTitle(pdf, "Assumptions")
	g.kvLine(pdf, "Purchase price", money(in.PurchasePrice))
	g.kvLine(pdf, "Down payment", fmt.Sprintf("%.1f%%", in.DownPaymentPercent))
	g.kvLine(pdf, "Interest rate", fmt.Sprintf("%.3f%% / %d yrs", in.InterestRate, in.LoanTermYears))
	g.kvLine(pdf, "Rehab costs", money(in.RehabCosts))
	g.kvLine(pdf, "Closing costs", money(in.ClosingCosts))
	switch a.Type {
	case finance.TypeRental:
		g.kvLine(pdf, "Monthly rent", money(in.MonthlyRent))
		g.kvLine(pdf, "Vacancy rate", fmt.Sprintf("%.1f%%", in.VacancyRate))
	case finance.TypeFlip, finance.TypeWholesale:
		g.kvLine(pdf, "After repair value", money(in.AfterRepairValue))
	}
	g.hr(pdf)

	g.sectionTitle(pdf, "Results")
	g.kvLine(pdf, "Loan amount", money(r.LoanAmount))
	g.kvLine(pdf, "Monthly payment", money(r.MonthlyPayment))
	g.kvLine(pdf, "Total investment", money(r.TotalInvestment))
	switch a.Type {
	case finance.TypeRental:
		g.kvLine(pdf, "NOI (annual)", money(r.NetOperatingIncome))
		g.kvLine(pdf, "Cash flow", money(r.MonthlyCashFlow)+" / month")
		g.kvLine(pdf, "Cap rate", fmt.Sprintf("%.2f%%", r.CapRate))
		g.kvLine(pdf, "Cash on cash", fmt.Sprintf("%.2f%%", r.CashOnCash))
		g.kvLine(pdf, "DSCR", fmt.Sprintf("%.2f", r.DSCR))
	case finance.TypeFlip:
		g.kvLine(pdf, "Holding costs", money(r.HoldingCosts))
		g.kvLine(pdf, "Selling costs", money(r.SellingCosts))
		g.kvLine(pdf, "Net profit", money(r.NetProfit))
	case finance.TypeWholesale:
		g.kvLine(pdf, "Max allowable offer", money(r.MaxAllowableOffer))
		g.kvLine(pdf, "Assignment fee", money(r.AssignmentFee))
	}
	g.kvLine(pdf, "ROI", fmt.Sprintf("%.2f%%", r.ROI))

	if len(data.Schedule.Years) > 0 {
		g.hr(pdf)
		g.sectionTitle(pdf, "Amortization by year")
		g.scheduleTable(pdf, data.Schedule.Years)
	}

	if a.Notes != "" {
		g.hr(pdf)
		g.sectionTitle(pdf, "Notes")
		pdf.MultiCell(0, 6, a.Notes, "", "L", false)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := fmt.Sprintf("%.2f", v)
	intPart, frac := whole[:len(whole)-3], whole[len(whole)-3:]
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + frac
}

func (g *DocumentGenerator) scheduleTable(pdf *gofpdf.Fpdf, years []finance.AmortizationYear) {
	widths := []float64{20, 50, 50, 50}
	pdf.SetFont(g.fontName, "B", 10)
	for i, h := range []string{"Year", "Principal", "Interest", "Balance"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(g.fontName, "", 10)
	for _, y := range years {
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("%d", y.Year), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, money(y.Principal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, money(y.Interest), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, money(y.Balance), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

func (g *DocumentGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *DocumentGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(55, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *DocumentGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *DocumentGenerator) addFont(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}
