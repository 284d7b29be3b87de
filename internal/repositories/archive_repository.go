package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
	"github.com/kyvra-tech/geoipmap-backend/internal/period"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// ArchiveRepository stores pre-aggregated report tables per site, period and segment
type ArchiveRepository interface {
	GetRecord(ctx context.Context, siteID int, r period.Range, segment, name string) (*datatable.Table, error)
	SaveRecord(ctx context.Context, siteID int, r period.Range, segment, name string, table *datatable.Table) error
}

type archiveRepository struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *sql.DB, m *metrics.Metrics) ArchiveRepository {
	return &archiveRepository{db: db, metrics: m}
}

func (r *archiveRepository) GetRecord(ctx context.Context, siteID int, rng period.Range, segment, name string) (*datatable.Table, error) {
	query := `
		SELECT rows
		FROM archive_geoipmap
		WHERE idsite = $1 AND period = $2 AND date1 = $3 AND date2 = $4
			AND segment = $5 AND name = $6
	`

	start := time.Now()
	var data []byte
	err := r.db.QueryRowContext(ctx, query,
		siteID, rng.Period, rng.Date1(), rng.Date2(), segment, name,
	).Scan(&data)
	if err == sql.ErrNoRows {
		r.metrics.RecordDatabaseQuery("archive_get", time.Since(start), nil)
		return nil, errors.Wrapf(errors.ErrArchiveNotFound, "site %d %s %s", siteID, rng, name)
	}
	r.metrics.RecordDatabaseQuery("archive_get", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "get archive record")
	}

	table, err := datatable.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode archive record %s", name)
	}
	return table, nil
}

func (r *archiveRepository) SaveRecord(ctx context.Context, siteID int, rng period.Range, segment, name string, table *datatable.Table) error {
	data, err := datatable.Encode(table)
	if err != nil {
		return errors.Wrapf(err, "encode archive record %s", name)
	}

	query := `
		INSERT INTO archive_geoipmap (idsite, period, date1, date2, segment, name, rows, ts_archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (idsite, period, date1, date2, segment, name)
		DO UPDATE SET
			rows = EXCLUDED.rows,
			ts_archived = NOW()
	`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		siteID, rng.Period, rng.Date1(), rng.Date2(), segment, name, data,
	)
	r.metrics.RecordDatabaseQuery("archive_save", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "save archive record")
	}

	return nil
}
