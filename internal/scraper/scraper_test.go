package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/config"
	"reicrm/internal/logging"
)

const listPage1 = `<html><body>
<div class="sale">
  <span class="case">2024-CA-0001</span>
  <span class="addr"> 12  Oak St </span>
  <span class="csz">Tampa, FL 33602</span>
  <span class="bid">$95,000.00</span>
  <span class="date">07/09/2024</span>
  <span class="type">Single Family</span>
  <a class="more" href="/case/1">details</a>
</div>
<div class="sale">
  <span class="case">2024-CA-0002</span>
  <span class="addr"></span>
</div>
<div class="sale">
  <span class="addr">48 Pine Ave</span>
  <span class="csz">Tampa, FL 33603</span>
  <a class="more" href="/case/3">details</a>
</div>
<a class="next" href="/sales?page=2">next</a>
</body></html>`

const listPage2 = `<html><body>
<div class="sale">
  <span class="case">2024-CA-0004</span>
  <span class="addr">7 Elm Ct</span>
  <span class="csz">Brandon, FL 33511</span>
  <span class="bid">$120,500</span>
  <span class="date">2024-08-01</span>
</div>
</body></html>`

const detailPage3 = `<html><body>
<span class="case">2024-CA-0003</span>
<span class="bid">$60,000</span>
<span class="date">Aug 15, 2024</span>
<span class="type">Condo</span>
</body></html>`

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sales", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, listPage2)
			return
		}
		fmt.Fprint(w, listPage1)
	})
	mux.HandleFunc("/case/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage3)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSource(base string) config.ScraperSource {
	return config.ScraperSource{
		Name:     "hillsborough",
		County:   "Hillsborough",
		State:    "fl",
		BaseURL:  base,
		ListPath: "/sales",
		MaxPages: 5,
		Selectors: config.SelectorConfig{
			Item:         ".sale",
			CaseNumber:   ".case",
			Address:      ".addr",
			CityStateZip: ".csz",
			OpeningBid:   ".bid",
			AuctionDate:  ".date",
			PropertyType: ".type",
			DetailLink:   "a.more",
			NextPage:     "a.next",
		},
	}
}

func TestCollectorScrapesPagesAndDetails(t *testing.T) {
	srv := newFixtureServer(t)
	c := New(config.ScraperConfig{RequestTimeout: 5 * time.Second, UserAgent: "test"}, logging.Discard())

	res, err := c.Scrape(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 1, res.Skipped)
	require.Len(t, res.Listings, 3)

	first := res.Listings[0]
	require.Equal(t, "2024-CA-0001", first.CaseNumber)
	require.Equal(t, "12 Oak St", first.Street)
	require.Equal(t, "Tampa", first.City)
	require.Equal(t, "FL", first.State)
	require.Equal(t, "33602", first.ZipCode)
	require.Equal(t, 95000.0, *first.OpeningBid)
	require.Equal(t, "single_family", first.PropertyType)
	require.Equal(t, srv.URL+"/case/1", first.URL)
	require.True(t, time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC).Equal(*first.AuctionDate))

	detailed := res.Listings[1]
	require.Equal(t, "2024-CA-0003", detailed.CaseNumber)
	require.Equal(t, 60000.0, *detailed.OpeningBid)
	require.Equal(t, "condo", detailed.PropertyType)

	second := res.Listings[2]
	require.Equal(t, "Brandon", second.City)
	require.Equal(t, 120500.0, *second.OpeningBid)
	require.Empty(t, second.URL)
}

func TestCollectorRespectsMaxPages(t *testing.T) {
	srv := newFixtureServer(t)
	c := New(config.ScraperConfig{RequestTimeout: 5 * time.Second}, logging.Discard())

	src := testSource(srv.URL)
	src.MaxPages = 1
	res, err := c.Scrape(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 1, res.Pages)
	require.Len(t, res.Listings, 2)
}

func TestCollectorReportsHTTPErrors(t *testing.T) {
	srv := newFixtureServer(t)
	c := New(config.ScraperConfig{RequestTimeout: 5 * time.Second}, logging.Discard())

	src := testSource(srv.URL)
	src.ListPath = "/broken"
	_, err := c.Scrape(context.Background(), src)
	require.ErrorContains(t, err, "status code error: 502")
}

func TestSourcesSkipsDisabled(t *testing.T) {
	off := false
	c := New(config.ScraperConfig{Sources: []config.ScraperSource{
		{Name: "a", BaseURL: "http://a"},
		{Name: "b", BaseURL: "http://b", Enabled: &off},
	}}, logging.Discard())

	srcs := c.Sources()
	require.Len(t, srcs, 1)
	require.Equal(t, "a", srcs[0].Name)
}
