package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketinsights/internal/cache"
	"marketinsights/internal/metrics"
	"marketinsights/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDatabaseUnavailable is returned by Ping when no database is configured
var ErrDatabaseUnavailable = errors.New("database not configured")

// Options configures a MarketRepository
type Options struct {
	CacheTTL          time.Duration
	CacheCapacity     int
	QueryTimeout      time.Duration
	SyntheticFallback bool
	SyntheticSeed     int64
	Clock             cache.Clock
}

// MarketRepository serves aggregate market figures from PostgreSQL, with an
// in-process TTL cache in front and optional synthetic data behind
type MarketRepository struct {
	db           *sqlx.DB // nil runs on synthetic data only
	cache        *cache.TTL[any]
	synthetic    *SyntheticGenerator
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewMarketRepository creates a repository. db may be nil.
func NewMarketRepository(db *sqlx.DB, opts Options, logger *zap.Logger) *MarketRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &MarketRepository{
		db:           db,
		cache:        cache.New[any](opts.CacheTTL, opts.CacheCapacity, opts.Clock),
		queryTimeout: opts.QueryTimeout,
		logger:       logger,
	}
	if opts.SyntheticFallback {
		r.synthetic = NewSyntheticGenerator(opts.SyntheticSeed, opts.Clock)
	}
	return r
}

// Close closes the database connection
func (r *MarketRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping checks database connectivity
func (r *MarketRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return ErrDatabaseUnavailable
	}
	return r.db.PingContext(ctx)
}

// ClearCache drops every cached result
func (r *MarketRepository) ClearCache() {
	r.cache.Clear()
}

// CacheStats reports data cache usage
func (r *MarketRepository) CacheStats() cache.Stats {
	return r.cache.Stats()
}

func (r *MarketRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func cacheKey(op string, parts ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte('|')
		switch v := p.(type) {
		case *int:
			if v == nil {
				b.WriteString("*")
			} else {
				b.WriteString(strconv.Itoa(*v))
			}
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// resolve decides what a failed or empty database read turns into
func (r *MarketRepository) resolve(op string, queryErr error) error {
	if queryErr != nil {
		r.logger.Warn("Market data query failed",
			zap.String("operation", op),
			zap.Bool("synthetic_fallback", r.synthetic != nil),
			zap.Error(queryErr),
		)
	}
	if r.synthetic != nil {
		return nil
	}
	if queryErr != nil {
		return queryErr
	}
	return model.ErrNoData
}

type yieldRow struct {
	AvgPrice   sql.NullFloat64 `db:"avg_price"`
	AvgRent    sql.NullFloat64 `db:"avg_monthly_rent"`
	AvgYield   sql.NullFloat64 `db:"avg_yield_percent"`
	SampleSize int             `db:"sample_size"`
}

// GetMarketYield returns the yield aggregate for a location and property type
func (r *MarketRepository) GetMarketYield(ctx context.Context, location, propertyType string, bedrooms *int) (*model.YieldData, error) {
	const op = "market_yield"
	key := cacheKey(op, location, propertyType, bedrooms)
	if cached, ok := r.cache.Get(key); ok {
		metrics.DataFetches.WithLabelValues(op, "cache").Inc()
		y := *cached.(*model.YieldData)
		return &y, nil
	}

	var queryErr error
	if r.db != nil {
		data, err := r.queryYield(ctx, location, propertyType, bedrooms)
		if err == nil && data != nil {
			metrics.DataFetches.WithLabelValues(op, "database").Inc()
			r.cache.Set(key, data)
			y := *data
			return &y, nil
		}
		queryErr = err
	}

	if err := r.resolve(op, queryErr); err != nil {
		return nil, err
	}
	data := r.synthetic.Yield(location, propertyType, bedrooms)
	metrics.DataFetches.WithLabelValues(op, "synthetic").Inc()
	r.cache.Set(key, data)
	y := *data
	return &y, nil
}

// queryYield returns nil data and nil error when no rows match
func (r *MarketRepository) queryYield(ctx context.Context, location, propertyType string, bedrooms *int) (*model.YieldData, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			AVG(p.price) AS avg_price,
			AVG(r.monthly_rent) AS avg_monthly_rent,
			AVG((r.monthly_rent * 12) / NULLIF(p.price, 0) * 100) AS avg_yield_percent,
			COUNT(*) AS sample_size
		FROM properties p
		JOIN rentals r ON p.id = r.property_id
		WHERE LOWER(p.city) = $1
		AND p.property_type = $2
		AND r.monthly_rent IS NOT NULL
	`
	args := []interface{}{location, propertyType}
	if bedrooms != nil {
		query += " AND p.bedrooms = $3"
		args = append(args, *bedrooms)
	}

	var row yieldRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query market yield: %w", err)
	}
	if row.SampleSize == 0 {
		return nil, nil
	}

	return &model.YieldData{
		Location:        location,
		PropertyType:    propertyType,
		Bedrooms:        bedrooms,
		AvgPrice:        row.AvgPrice.Float64,
		AvgMonthlyRent:  row.AvgRent.Float64,
		AvgYieldPercent: row.AvgYield.Float64,
		SampleSize:      row.SampleSize,
	}, nil
}

// GetMarketTrends returns the monthly series for the last months, oldest first
func (r *MarketRepository) GetMarketTrends(ctx context.Context, location string, months int) ([]model.TrendPoint, error) {
	const op = "market_trends"
	if months <= 0 {
		months = 12
	}
	months = min(months, model.MaxTimePeriodMonths)
	key := cacheKey(op, location, months)
	if cached, ok := r.cache.Get(key); ok {
		metrics.DataFetches.WithLabelValues(op, "cache").Inc()
		return append([]model.TrendPoint(nil), cached.([]model.TrendPoint)...), nil
	}

	var queryErr error
	if r.db != nil {
		points, err := r.queryTrends(ctx, location, months)
		if err == nil && len(points) > 0 {
			metrics.DataFetches.WithLabelValues(op, "database").Inc()
			r.cache.Set(key, points)
			return append([]model.TrendPoint(nil), points...), nil
		}
		queryErr = err
	}

	if err := r.resolve(op, queryErr); err != nil {
		return nil, err
	}
	points := r.synthetic.Trends(location, months)
	metrics.DataFetches.WithLabelValues(op, "synthetic").Inc()
	r.cache.Set(key, points)
	return append([]model.TrendPoint(nil), points...), nil
}

func (r *MarketRepository) queryTrends(ctx context.Context, location string, months int) ([]model.TrendPoint, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			DATE_TRUNC('month', p.listed_date) AS month,
			AVG(p.price) AS avg_price,
			COALESCE(AVG(r.monthly_rent), 0) AS avg_rent,
			COUNT(*) AS transactions
		FROM properties p
		LEFT JOIN rentals r ON p.id = r.property_id
		WHERE LOWER(p.city) = $1
		AND p.listed_date >= NOW() - make_interval(months => $2)
		GROUP BY month
		ORDER BY month ASC
	`
	var points []model.TrendPoint
	if err := r.db.SelectContext(ctx, &points, query, location, months); err != nil {
		return nil, fmt.Errorf("failed to query market trends: %w", err)
	}
	return points, nil
}

// CompareLocations fetches yield aggregates for each location concurrently.
// Results keep the input order; locations without data are left out.
func (r *MarketRepository) CompareLocations(ctx context.Context, locations []string, propertyType string) ([]model.YieldData, error) {
	results := make([]*model.YieldData, len(locations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, loc := range locations {
		g.Go(func() error {
			data, err := r.GetMarketYield(gCtx, loc, propertyType, nil)
			if errors.Is(err, model.ErrNoData) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to compare %s: %w", loc, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.YieldData
	for _, d := range results {
		if d != nil {
			out = append(out, *d)
		}
	}
	if len(out) == 0 {
		return nil, model.ErrNoData
	}
	return out, nil
}

// GetInvestmentOpportunities returns listings yielding at least minYield and
// priced at most maxPrice, best yield first. An empty location searches all.
func (r *MarketRepository) GetInvestmentOpportunities(ctx context.Context, minYield, maxPrice float64, location string) ([]model.Opportunity, error) {
	const op = "investment_opportunities"
	key := cacheKey(op, minYield, maxPrice, location)
	if cached, ok := r.cache.Get(key); ok {
		metrics.DataFetches.WithLabelValues(op, "cache").Inc()
		return append([]model.Opportunity(nil), cached.([]model.Opportunity)...), nil
	}

	var queryErr error
	if r.db != nil {
		opps, err := r.queryOpportunities(ctx, minYield, maxPrice, location)
		if err == nil && len(opps) > 0 {
			metrics.DataFetches.WithLabelValues(op, "database").Inc()
			r.cache.Set(key, opps)
			return append([]model.Opportunity(nil), opps...), nil
		}
		queryErr = err
	}

	if err := r.resolve(op, queryErr); err != nil {
		return nil, err
	}
	opps := r.synthetic.Opportunities(minYield, maxPrice, location)
	if len(opps) == 0 {
		return nil, model.ErrNoData
	}
	metrics.DataFetches.WithLabelValues(op, "synthetic").Inc()
	r.cache.Set(key, opps)
	return append([]model.Opportunity(nil), opps...), nil
}

func (r *MarketRepository) queryOpportunities(ctx context.Context, minYield, maxPrice float64, location string) ([]model.Opportunity, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	whereClauses := []string{
		"p.price > 0",
		"p.price <= $1",
		"(r.monthly_rent * 12) / p.price * 100 >= $2",
	}
	args := []interface{}{maxPrice, minYield}
	if location != "" {
		whereClauses = append(whereClauses, "LOWER(p.city) = $3")
		args = append(args, location)
	}

	query := fmt.Sprintf(`
		SELECT
			LOWER(p.city) AS location,
			p.property_type,
			COALESCE(p.bedrooms, 0) AS bedrooms,
			p.price,
			r.monthly_rent,
			(r.monthly_rent * 12) / p.price * 100 AS yield_percent,
			COALESCE(p.neighborhood, '') AS neighborhood
		FROM properties p
		JOIN rentals r ON p.id = r.property_id
		WHERE %s
		ORDER BY yield_percent DESC
		LIMIT 20
	`, strings.Join(whereClauses, " AND "))

	var opps []model.Opportunity
	if err := r.db.SelectContext(ctx, &opps, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query investment opportunities: %w", err)
	}
	return opps, nil
}

// GetMarketSummary combines apartment yield and six months of trends,
// fetched concurrently
func (r *MarketRepository) GetMarketSummary(ctx context.Context, location string) (*model.MarketSummary, error) {
	const op = "market_summary"
	key := cacheKey(op, location)
	if cached, ok := r.cache.Get(key); ok {
		metrics.DataFetches.WithLabelValues(op, "cache").Inc()
		s := *cached.(*model.MarketSummary)
		return &s, nil
	}

	var (
		yieldData *model.YieldData
		points    []model.TrendPoint
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := r.GetMarketYield(gCtx, location, "apartment", nil)
		if err != nil && !errors.Is(err, model.ErrNoData) {
			return err
		}
		yieldData = data
		return nil
	})
	g.Go(func() error {
		data, err := r.GetMarketTrends(gCtx, location, 6)
		if err != nil && !errors.Is(err, model.ErrNoData) {
			return err
		}
		points = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build market summary: %w", err)
	}
	if yieldData == nil && len(points) == 0 {
		return nil, model.ErrNoData
	}

	summary := &model.MarketSummary{
		Location:    location,
		Yield:       yieldData,
		MarketTrend: "stable",
	}
	if len(points) > 0 {
		trend := model.SummarizeTrend(location, 6, points)
		summary.Trend = &trend
		summary.MarketTrend = model.TrendLabel(trend.AvgPriceChangePct)
	}

	r.cache.Set(key, summary)
	s := *summary
	return &s, nil
}
