package repositories

import (
	"context"
	"database/sql"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// SiteRepository defines the interface for site data access
type SiteRepository interface {
	GetSite(ctx context.Context, siteID int) (*models.Site, error)
	GetTimezone(ctx context.Context, siteID int) (string, error)
	ListSiteIDs(ctx context.Context) ([]int, error)
}

type siteRepository struct {
	db *sql.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *sql.DB) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) GetSite(ctx context.Context, siteID int) (*models.Site, error) {
	query := `
		SELECT idsite, name, main_url, timezone, created_at
		FROM site
		WHERE idsite = $1
	`

	site := &models.Site{}
	err := r.db.QueryRowContext(ctx, query, siteID).Scan(
		&site.ID, &site.Name, &site.MainURL, &site.Timezone, &site.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrSiteNotFound, "site %d", siteID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get site")
	}

	return site, nil
}

func (r *siteRepository) GetTimezone(ctx context.Context, siteID int) (string, error) {
	site, err := r.GetSite(ctx, siteID)
	if err != nil {
		return "", err
	}
	return site.Timezone, nil
}

func (r *siteRepository) ListSiteIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT idsite FROM site ORDER BY idsite`)
	if err != nil {
		return nil, errors.Wrap(err, "query sites")
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan site")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration")
	}

	return ids, nil
}
