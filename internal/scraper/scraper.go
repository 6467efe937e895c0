package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"reicrm/internal/config"
	"reicrm/internal/telemetry"
)

// Listing is one normalized foreclosure/auction record.
type Listing struct {
	Source        string
	County        string
	CaseNumber    string
	ParcelID      string
	Street        string
	City          string
	State         string
	ZipCode       string
	OpeningBid    *float64
	AssessedValue *float64
	AuctionDate   *time.Time
	PropertyType  string
	URL           string
}

type Result struct {
	Listings []Listing
	Pages    int
	Skipped  int
}

type Collector struct {
	client   *resty.Client
	cfg      config.ScraperConfig
	log      *slog.Logger
	location *time.Location
}

func New(cfg config.ScraperConfig, logger *slog.Logger) *Collector {
	client := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")
	telemetry.InstrumentResty(client, "reicrm/scraper")
	return &Collector{
		client:   client,
		cfg:      cfg,
		log:      logger.With("component", "scraper"),
		location: time.UTC,
	}
}

func (c *Collector) Sources() []config.ScraperSource {
	out := []config.ScraperSource{}
	for _, s := range c.cfg.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Scrape walks the source's list pages sequentially, honoring the page delay.
func (c *Collector) Scrape(ctx context.Context, src config.ScraperSource) (Result, error) {
	var res Result
	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	next := Absolute(src.BaseURL, src.ListPath)
	if next == "" {
		next = src.BaseURL
	}
	seen := map[string]bool{}

	for next != "" && res.Pages < maxPages && !seen[next] {
		if res.Pages > 0 {
			if err := sleep(ctx, c.cfg.PageDelay); err != nil {
				return res, err
			}
		}
		seen[next] = true

		doc, err := c.fetch(ctx, next)
		if err != nil {
			return res, fmt.Errorf("%s page %d: %w", src.Name, res.Pages+1, err)
		}
		res.Pages++

		listings, skipped := c.parseList(doc, src, next)
		res.Skipped += skipped
		for i := range listings {
			c.fillFromDetail(ctx, src, &listings[i])
		}
		res.Listings = append(res.Listings, listings...)
		c.log.Debug("page scraped", "source", src.Name, "url", next, "listings", len(listings), "skipped", skipped)

		next = ""
		if sel := src.Selectors.NextPage; sel != "" {
			if href, ok := doc.Find(sel).First().Attr("href"); ok {
				next = Absolute(pageBase(doc, src), href)
			}
		}
	}
	return res, nil
}

// pageBase is the URL pagination links are resolved against.
func pageBase(doc *goquery.Document, src config.ScraperSource) string {
	if doc.Url != nil {
		return doc.Url.String()
	}
	return src.BaseURL
}

func (c *Collector) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := c.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		doc.Url = resp.RawResponse.Request.URL
	}
	return doc, nil
}

func (c *Collector) parseList(doc *goquery.Document, src config.ScraperSource, pageURL string) ([]Listing, int) {
	var out []Listing
	skipped := 0
	doc.Find(src.Selectors.Item).Each(func(_ int, s *goquery.Selection) {
		l := c.extract(s, src, pageURL)
		if l.Street == "" {
			skipped++
			return
		}
		out = append(out, l)
	})
	return out, skipped
}

func text(s *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return CleanText(s.Find(sel).First().Text())
}

func (c *Collector) extract(s *goquery.Selection, src config.ScraperSource, pageURL string) Listing {
	sel := src.Selectors
	l := Listing{
		Source: src.Name,
		County: src.County,
		State:  strings.ToUpper(src.State),
		Street: text(s, sel.Address),
	}
	c.applyFields(s, src, &l)
	if sel.DetailLink != "" {
		if href, ok := s.Find(sel.DetailLink).First().Attr("href"); ok {
			l.URL = Absolute(pageURL, href)
		}
	}
	return l
}

// applyFields fills the fields that are shared between list rows and detail pages.
func (c *Collector) applyFields(s *goquery.Selection, src config.ScraperSource, l *Listing) {
	sel := src.Selectors
	if l.City == "" {
		if city, state, zip, ok := SplitCityStateZip(text(s, sel.CityStateZip)); ok {
			l.City, l.State, l.ZipCode = city, state, zip
		}
	}
	if l.OpeningBid == nil {
		if v, ok := ParseCurrency(text(s, sel.OpeningBid)); ok {
			l.OpeningBid = &v
		}
	}
	if l.AssessedValue == nil {
		if v, ok := ParseCurrency(text(s, sel.AssessedValue)); ok {
			l.AssessedValue = &v
		}
	}
	if l.AuctionDate == nil {
		if t, ok := ParseDate(src.DateLayout, text(s, sel.AuctionDate), c.location); ok {
			l.AuctionDate = &t
		}
	}
	if l.PropertyType == "" && sel.PropertyType != "" {
		if raw := text(s, sel.PropertyType); raw != "" {
			l.PropertyType = NormalizePropertyType(raw)
		}
	}
	if l.CaseNumber == "" {
		l.CaseNumber = text(s, sel.CaseNumber)
	}
	if l.ParcelID == "" {
		l.ParcelID = text(s, sel.ParcelID)
	}
}

func (l *Listing) incomplete() bool {
	return l.CaseNumber == "" || l.OpeningBid == nil || l.AuctionDate == nil || l.City == ""
}

// fillFromDetail fetches the detail page when the list row left fields empty.
// Failures are logged; the list data is kept as is.
func (c *Collector) fillFromDetail(ctx context.Context, src config.ScraperSource, l *Listing) {
	if l.URL == "" || !l.incomplete() {
		return
	}
	doc, err := c.fetch(ctx, l.URL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("detail fetch failed", "source", src.Name, "url", l.URL, "error", err)
		}
		return
	}
	c.applyFields(doc.Selection, src, l)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
