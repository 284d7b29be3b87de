package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// LogRepository reads and enriches the raw visit log
type LogRepository interface {
	QueryLiveVisits(ctx context.Context, since time.Time, siteID int, limit int) ([]models.VisitAggregateRow, error)
	AggregateVisits(ctx context.Context, siteID int, start, end time.Time) ([]models.VisitAggregateRow, error)
	ListUnlocatedVisits(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.UnlocatedVisit, error)
	UpdateVisitLocation(ctx context.Context, idVisit int64, loc *models.GeoLocation) error
}

type logRepository struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// NewLogRepository creates a new visit log repository
func NewLogRepository(db *sql.DB, m *metrics.Metrics) LogRepository {
	return &logRepository{db: db, metrics: m}
}

// Both the live query and the archiver group located visits by coordinates.
// The other location columns are functionally dependent on the coordinates in
// practice, so MAX picks the single value a group carries.
const locationAggregateSelect = `
	SELECT
		MAX(cc.continent) AS location_continent,
		MAX(lv.location_country) AS location_country,
		COALESCE(MAX(lv.location_city), '') AS location_city,
		lv.location_latitude,
		lv.location_longitude,
		COUNT(DISTINCT lv.idvisitor) AS nb_uniq_visitors,
		COUNT(*) AS nb_visits,
		MAX(lv.visit_last_action_time) AS visit_last_action_time
	FROM log_visit lv
	JOIN continentcountry cc ON lv.location_country = cc.country
`

func (r *logRepository) QueryLiveVisits(ctx context.Context, since time.Time, siteID int, limit int) ([]models.VisitAggregateRow, error) {
	query := locationAggregateSelect + `
		WHERE lv.visit_last_action_time > $1
			AND lv.idsite = $2
			AND lv.location_latitude IS NOT NULL
			AND lv.location_longitude IS NOT NULL
		GROUP BY lv.location_longitude, lv.location_latitude
		ORDER BY MAX(lv.visit_last_action_time) DESC
		LIMIT $3
	`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, since.UTC(), siteID, limit)
	r.metrics.RecordDatabaseQuery("live_visits", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "query live visits")
	}
	defer rows.Close()

	return scanVisitAggregates(rows)
}

func (r *logRepository) AggregateVisits(ctx context.Context, siteID int, from, to time.Time) ([]models.VisitAggregateRow, error) {
	query := locationAggregateSelect + `
		WHERE lv.visit_last_action_time >= $1
			AND lv.visit_last_action_time < $2
			AND lv.idsite = $3
			AND lv.location_latitude IS NOT NULL
			AND lv.location_longitude IS NOT NULL
		GROUP BY lv.location_longitude, lv.location_latitude
		ORDER BY nb_visits DESC, MAX(lv.visit_last_action_time) DESC
	`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC(), siteID)
	r.metrics.RecordDatabaseQuery("aggregate_visits", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate visits")
	}
	defer rows.Close()

	return scanVisitAggregates(rows)
}

func scanVisitAggregates(rows *sql.Rows) ([]models.VisitAggregateRow, error) {
	var result []models.VisitAggregateRow
	for rows.Next() {
		var (
			row      models.VisitAggregateRow
			lat, lon float64
		)
		if err := rows.Scan(
			&row.Continent, &row.Country, &row.City,
			&lat, &lon,
			&row.UniqueVisitors, &row.Visits, &row.LastActionTime,
		); err != nil {
			return nil, errors.Wrap(err, "scan visit aggregate")
		}
		row.Latitude = &lat
		row.Longitude = &lon
		row.Label = models.LocationLabel(lon, lat)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration")
	}

	return result, nil
}

func (r *logRepository) ListUnlocatedVisits(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.UnlocatedVisit, error) {
	query := `
		SELECT idvisit, location_ip
		FROM log_visit
		WHERE location_latitude IS NULL
			AND location_ip IS NOT NULL
			AND visit_last_action_time > $1
			AND idvisit > $2
		ORDER BY idvisit
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, since.UTC(), afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query unlocated visits")
	}
	defer rows.Close()

	var visits []models.UnlocatedVisit
	for rows.Next() {
		var v models.UnlocatedVisit
		if err := rows.Scan(&v.IDVisit, &v.IP); err != nil {
			return nil, errors.Wrap(err, "scan unlocated visit")
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration")
	}

	return visits, nil
}

// UpdateVisitLocation stores a resolved location and makes sure its country is
// known to continentcountry, otherwise the visit would never join into reports.
func (r *logRepository) UpdateVisitLocation(ctx context.Context, idVisit int64, loc *models.GeoLocation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO continentcountry (country, continent)
		VALUES ($1, $2)
		ON CONFLICT (country) DO NOTHING
	`, loc.CountryCode, loc.ContinentCode)
	if err != nil {
		return errors.Wrap(err, "upsert continent")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE log_visit
		SET location_country = $1,
			location_city = $2,
			location_latitude = $3,
			location_longitude = $4
		WHERE idvisit = $5
	`, loc.CountryCode, loc.City, loc.Latitude, loc.Longitude, idVisit)
	if err != nil {
		return errors.Wrap(err, "update visit location")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "visit %d", idVisit)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit visit location")
	}

	return nil
}
