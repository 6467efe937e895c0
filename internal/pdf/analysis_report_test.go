package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/finance"
	"reicrm/internal/models"
)

func TestMoney(t *testing.T) {
	require.Equal(t, "$0.00", money(0))
	require.Equal(t, "$999.50", money(999.5))
	require.Equal(t, "$1,199.10", money(1199.1))
	require.Equal(t, "$1,234,567.89", money(1234567.89))
	require.Equal(t, "-$46,400.00", money(-46400))
}

func TestAnalysisReportRenders(t *testing.T) {
	in := finance.Inputs{PurchasePrice: 200000, DownPaymentPercent: 20, InterestRate: 6, LoanTermYears: 30, MonthlyRent: 2000}
	res, err := finance.Calculate(finance.TypeRental, in)
	require.NoError(t, err)

	sqft := 1400
	out, err := NewDocumentGenerator("").AnalysisReport(ReportData{
		Analysis: &models.Analysis{ID: 3, Name: "Oak St rental", Type: finance.TypeRental, Inputs: in, Results: res},
		Property: &models.Property{
			Address:      models.Address{Street: "12 Oak St", City: "Tampa", State: "FL", ZipCode: "33602"},
			PropertyType: models.PropertySingleFamily,
			Status:       models.PropertyActive,
			SquareFeet:   &sqft,
		},
		Schedule:    finance.Schedule(160000, 6, 360),
		GeneratedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestAnalysisReportRequiresAnalysis(t *testing.T) {
	_, err := NewDocumentGenerator("").AnalysisReport(ReportData{})
	require.Error(t, err)
}
