package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reicrm/internal/models"
)

// Comparable is the price data of a nearby property used for value estimates.
type Comparable struct {
	ID         int64
	ListPrice  float64
	SquareFeet int
}

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id int64) (*models.Property, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.PropertyFilter, page models.Page, sort models.Sort) ([]*models.Property, int, error)
	Assign(ctx context.Context, id int64, assignedTo *int64, priority models.LeadPriority) error
	FindBySourceKey(ctx context.Context, caseNumber, sourceURL string) (*models.Property, error)
	ListForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Property, error)
	Comparables(ctx context.Context, p *models.Property) ([]Comparable, error)
	UpdateEnrichment(ctx context.Context, p *models.Property) error
	Stats(ctx context.Context, now time.Time) (*models.PropertyStats, error)
	Count(ctx context.Context) (int, error)
}

type propertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `
	id, street, city, state, zip_code, county, latitude, longitude,
	property_type, status, bedrooms, bathrooms, square_feet, lot_size, year_built,
	list_price, estimated_value, tax_assessed_value, opening_bid, auction_date,
	case_number, parcel_id, source, source_url,
	assigned_to, lead_priority, lead_status, description, created_by,
	last_enriched_at, created_at, updated_at`

var propertySortColumns = map[string]string{
	"created_at":      "created_at",
	"list_price":      "list_price",
	"auction_date":    "auction_date",
	"estimated_value": "estimated_value",
	"square_feet":     "square_feet",
}

func scanProperty(row rowScanner) (*models.Property, error) {
	p := &models.Property{}
	err := row.Scan(
		&p.ID, &p.Address.Street, &p.Address.City, &p.Address.State, &p.Address.ZipCode, &p.Address.County,
		&p.Latitude, &p.Longitude,
		&p.PropertyType, &p.Status, &p.Bedrooms, &p.Bathrooms, &p.SquareFeet, &p.LotSize, &p.YearBuilt,
		&p.ListPrice, &p.EstimatedValue, &p.TaxAssessedValue, &p.OpeningBid, &p.AuctionDate,
		&p.CaseNumber, &p.ParcelID, &p.Source, &p.SourceURL,
		&p.LeadInfo.AssignedTo, &p.LeadInfo.Priority, &p.LeadInfo.Status, &p.Description, &p.CreatedBy,
		&p.LastEnrichedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	const q = `
		INSERT INTO properties (
			street, city, state, zip_code, county, latitude, longitude,
			property_type, status, bedrooms, bathrooms, square_feet, lot_size, year_built,
			list_price, estimated_value, tax_assessed_value, opening_bid, auction_date,
			case_number, parcel_id, source, source_url,
			assigned_to, lead_priority, lead_status, description, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		p.Address.Street, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.County,
		p.Latitude, p.Longitude,
		p.PropertyType, p.Status, p.Bedrooms, p.Bathrooms, p.SquareFeet, p.LotSize, p.YearBuilt,
		p.ListPrice, p.EstimatedValue, p.TaxAssessedValue, p.OpeningBid, p.AuctionDate,
		p.CaseNumber, p.ParcelID, p.Source, p.SourceURL,
		p.LeadInfo.AssignedTo, p.LeadInfo.Priority, p.LeadInfo.Status, p.Description, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create property: %w", mapError(err))
	}
	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	return scanProperty(r.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
}

func (r *propertyRepository) Update(ctx context.Context, p *models.Property) error {
	const q = `
		UPDATE properties SET
			street=$1, city=$2, state=$3, zip_code=$4, county=$5, latitude=$6, longitude=$7,
			property_type=$8, status=$9, bedrooms=$10, bathrooms=$11, square_feet=$12, lot_size=$13, year_built=$14,
			list_price=$15, estimated_value=$16, tax_assessed_value=$17, opening_bid=$18, auction_date=$19,
			case_number=$20, parcel_id=$21, source_url=$22,
			lead_priority=$23, lead_status=$24, description=$25, updated_at=NOW()
		WHERE id=$26
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		p.Address.Street, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.County,
		p.Latitude, p.Longitude,
		p.PropertyType, p.Status, p.Bedrooms, p.Bathrooms, p.SquareFeet, p.LotSize, p.YearBuilt,
		p.ListPrice, p.EstimatedValue, p.TaxAssessedValue, p.OpeningBid, p.AuctionDate,
		p.CaseNumber, p.ParcelID, p.SourceURL,
		p.LeadInfo.Priority, p.LeadInfo.Status, p.Description, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update property: %w", mapError(err))
	}
	return nil
}

// Delete removes the property; leads are unlinked and analyses cascade in the schema.
func (r *propertyRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	return expectOne(res)
}

func propertyWhere(f models.PropertyFilter) where {
	var w where
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	if f.PropertyType != nil {
		w.add("property_type = $%d", *f.PropertyType)
	}
	if f.City != "" {
		w.add("city ILIKE $%d", f.City)
	}
	if f.State != "" {
		w.add("state ILIKE $%d", f.State)
	}
	if f.ZipCode != "" {
		w.add("zip_code = $%d", f.ZipCode)
	}
	if f.County != "" {
		w.add("county ILIKE $%d", f.County)
	}
	if f.Source != nil {
		w.add("source = $%d", *f.Source)
	}
	if f.AssignedTo != nil {
		w.add("assigned_to = $%d", *f.AssignedTo)
	}
	if f.MinPrice != nil {
		w.add("list_price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("list_price <= $%d", *f.MaxPrice)
	}
	if f.MinBeds != nil {
		w.add("bedrooms >= $%d", *f.MinBeds)
	}
	if f.MinBaths != nil {
		w.add("bathrooms >= $%d", *f.MinBaths)
	}
	if f.AuctionFrom != nil {
		w.add("auction_date >= $%d", *f.AuctionFrom)
	}
	if f.AuctionTo != nil {
		w.add("auction_date <= $%d", *f.AuctionTo)
	}
	if f.Search != "" {
		w.add("(street ILIKE $%d OR city ILIKE $%d OR case_number ILIKE $%d)", likePattern(f.Search))
	}
	return w
}

func (r *propertyRepository) List(ctx context.Context, filter models.PropertyFilter, page models.Page, sort models.Sort) ([]*models.Property, int, error) {
	w := propertyWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}

	n := w.next()
	q := `SELECT ` + propertyColumns + ` FROM properties` + w.sql() +
		orderBy(sort.Column, sort.Desc, propertySortColumns, "created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1)
	args := append(w.args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	out := []*models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *propertyRepository) Assign(ctx context.Context, id int64, assignedTo *int64, priority models.LeadPriority) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE properties
		 SET assigned_to=$1, lead_priority=COALESCE(NULLIF($2, ''), lead_priority), updated_at=NOW()
		 WHERE id=$3`,
		assignedTo, priority, id)
	if err != nil {
		return fmt.Errorf("assign property: %w", mapError(err))
	}
	return expectOne(res)
}

// FindBySourceKey matches a scraped listing by case number first, then by listing URL.
func (r *propertyRepository) FindBySourceKey(ctx context.Context, caseNumber, sourceURL string) (*models.Property, error) {
	if caseNumber != "" {
		p, err := scanProperty(r.db.QueryRowContext(ctx,
			`SELECT `+propertyColumns+` FROM properties WHERE source = $1 AND case_number = $2`,
			models.SourceScraper, caseNumber))
		if !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}
	if sourceURL == "" {
		return nil, ErrNotFound
	}
	return scanProperty(r.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE source = $1 AND source_url = $2 ORDER BY id LIMIT 1`,
		models.SourceScraper, sourceURL))
}

func (r *propertyRepository) ListForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Property, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties
		 WHERE last_enriched_at IS NULL OR last_enriched_at < $1
		 ORDER BY last_enriched_at NULLS FIRST, id
		 LIMIT $2`,
		staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list properties for enrichment: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *propertyRepository) Comparables(ctx context.Context, p *models.Property) ([]Comparable, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, list_price, square_feet FROM properties
		 WHERE zip_code = $1 AND property_type = $2 AND id <> $3
		   AND list_price IS NOT NULL AND list_price > 0
		   AND square_feet IS NOT NULL AND square_feet > 0`,
		p.Address.ZipCode, p.PropertyType, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list comparables: %w", err)
	}
	defer rows.Close()

	var out []Comparable
	for rows.Next() {
		var c Comparable
		if err := rows.Scan(&c.ID, &c.ListPrice, &c.SquareFeet); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *propertyRepository) UpdateEnrichment(ctx context.Context, p *models.Property) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE properties
		 SET latitude=$1, longitude=$2, estimated_value=$3, lead_priority=$4,
		     last_enriched_at=$5, updated_at=NOW()
		 WHERE id=$6`,
		p.Latitude, p.Longitude, p.EstimatedValue, p.LeadInfo.Priority, p.LastEnrichedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	return expectOne(res)
}

func (r *propertyRepository) Stats(ctx context.Context, now time.Time) (*models.PropertyStats, error) {
	st := &models.PropertyStats{
		ByStatus: map[models.PropertyStatus]int{},
		ByType:   map[models.PropertyType]int{},
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(list_price), 0),
		        COUNT(*) FILTER (WHERE auction_date >= $1 AND auction_date < $2)
		 FROM properties`,
		now, now.AddDate(0, 0, 30),
	).Scan(&st.Total, &st.AverageListPrice, &st.UpcomingAuctions)
	if err != nil {
		return nil, fmt.Errorf("property totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM properties GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("properties by status: %w", err)
	}
	for rows.Next() {
		var s models.PropertyStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByStatus[s] = n
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `SELECT property_type, COUNT(*) FROM properties GROUP BY property_type`)
	if err != nil {
		return nil, fmt.Errorf("properties by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t models.PropertyType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		st.ByType[t] = n
	}
	return st, rows.Err()
}

func (r *propertyRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n)
	return n, err
}
