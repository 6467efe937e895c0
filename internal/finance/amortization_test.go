package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmortizeEndsAtZero(t *testing.T) {
	rows := Amortize(200000, 6, 360)
	require.Len(t, rows, 360)
	require.Equal(t, 0.0, rows[len(rows)-1].Balance)

	var principal float64
	for _, r := range rows {
		principal += r.Principal
	}
	require.InDelta(t, 200000, principal, 1e-6)

	first := rows[0]
	require.InDelta(t, 1000, first.Interest, 1e-9)
	require.InDelta(t, 199.10, first.Principal, 0.01)
}

func TestAmortizeZeroRate(t *testing.T) {
	rows := Amortize(12000, 0, 12)
	require.Len(t, rows, 12)
	for _, r := range rows {
		require.Equal(t, 0.0, r.Interest)
		require.InDelta(t, 1000, r.Payment, 1e-9)
	}
	require.Equal(t, 0.0, rows[11].Balance)
}

func TestAmortizeEmpty(t *testing.T) {
	require.Nil(t, Amortize(0, 5, 360))
	require.Nil(t, Amortize(1000, 5, 0))
}

func TestScheduleYearlyTotals(t *testing.T) {
	s := Schedule(100000, 5, 30)
	require.Len(t, s.Months, 30)
	require.Len(t, s.Years, 3)
	require.Equal(t, 3, s.Years[2].Year)
	require.Equal(t, 0.0, s.Years[2].Balance)

	var principal float64
	for _, y := range s.Years {
		principal += y.Principal
	}
	require.InDelta(t, 100000, principal, 0.05)
	require.InDelta(t, s.TotalPaid-100000, s.TotalInterest, 0.05)
	require.False(t, math.IsNaN(s.MonthlyPayment))
}

func TestFirstYearPrincipal(t *testing.T) {
	require.InDelta(t, 1964.82, FirstYearPrincipal(160000, 6, 360), 0.01)
	require.Equal(t, 0.0, FirstYearPrincipal(0, 6, 360))
}
