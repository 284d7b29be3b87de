package repositories

import (
	"context"
	"database/sql"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// AccessRepository answers permission questions for API callers
type AccessRepository interface {
	HasViewAccess(ctx context.Context, token string, siteID int) (bool, error)
}

type accessRepository struct {
	db *sql.DB
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(db *sql.DB) AccessRepository {
	return &accessRepository{db: db}
}

// HasViewAccess is true for superusers, for logins holding a view or admin grant
// on the site, and for everyone when the site grants view to the anonymous login.
func (r *accessRepository) HasViewAccess(ctx context.Context, token string, siteID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_token
			WHERE token_auth = $1 AND superuser
		) OR EXISTS (
			SELECT 1 FROM site_access sa
			WHERE sa.idsite = $2
				AND sa.access IN ($3, $4)
				AND (
					sa.login = $5
					OR sa.login = (SELECT login FROM user_token WHERE token_auth = $1)
				)
		)
	`

	var allowed bool
	err := r.db.QueryRowContext(ctx, query,
		token, siteID, models.AccessView, models.AccessAdmin, models.AnonymousLogin,
	).Scan(&allowed)
	if err != nil {
		return false, errors.Wrap(err, "check view access")
	}

	return allowed, nil
}
