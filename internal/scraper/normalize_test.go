package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "12 Oak St Unit 4", CleanText("  12 Oak St\n\t Unit   4 "))
}

func TestParseCurrency(t *testing.T) {
	cases := map[string]float64{
		"$1,234.56":       1234.56,
		" $ 95,000 ":      95000,
		"Opening: $10.5k": 10.5,
	}
	for in, want := range cases {
		got, ok := ParseCurrency(in)
		require.True(t, ok, in)
		require.InDelta(t, want, got, 0.0001, in)
	}
	for _, in := range []string{"", "TBD", "$", "-"} {
		_, ok := ParseCurrency(in)
		require.False(t, ok, in)
	}
}

func TestParseDateFallbacks(t *testing.T) {
	want := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"07/09/2024", "2024-07-09", "Jul 9, 2024", "July 9, 2024"} {
		got, ok := ParseDate("", in, time.UTC)
		require.True(t, ok, in)
		require.True(t, want.Equal(got), in)
	}

	got, ok := ParseDate("02.01.2006", "09.07.2024", nil)
	require.True(t, ok)
	require.True(t, want.Equal(got))

	_, ok = ParseDate("", "soon", time.UTC)
	require.False(t, ok)
}

func TestSplitCityStateZip(t *testing.T) {
	city, state, zip, ok := SplitCityStateZip("Saint Petersburg, fl 33701-1234")
	require.True(t, ok)
	require.Equal(t, "Saint Petersburg", city)
	require.Equal(t, "FL", state)
	require.Equal(t, "33701", zip)

	_, _, _, ok = SplitCityStateZip("somewhere")
	require.False(t, ok)
}

func TestAbsolute(t *testing.T) {
	require.Equal(t, "https://county.gov/sales/case/1", Absolute("https://county.gov/sales/list?page=1", "case/1"))
	require.Equal(t, "https://county.gov/case/2", Absolute("https://county.gov/sales/", "/case/2"))
	require.Equal(t, "https://other.org/x", Absolute("https://county.gov/", "https://other.org/x"))
	require.Equal(t, "", Absolute("https://county.gov/", "  "))
}

func TestNormalizePropertyType(t *testing.T) {
	require.Equal(t, "condo", NormalizePropertyType("Residential Condominium"))
	require.Equal(t, "multi_family", NormalizePropertyType("Duplex"))
	require.Equal(t, "land", NormalizePropertyType("Vacant Lot"))
	require.Equal(t, "single_family", NormalizePropertyType("SFR"))
}
