package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/auth"
	"github.com/kyvra-tech/geoipmap-backend/internal/repositories"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// AccessControl enforces site view permission for the token carried by the request context.
type AccessControl struct {
	repo   repositories.AccessRepository
	logger *logrus.Logger
}

func NewAccessControl(repo repositories.AccessRepository, logger *logrus.Logger) *AccessControl {
	return &AccessControl{repo: repo, logger: logger}
}

// CheckViewAccess returns ErrForbidden unless the caller may view siteID.
func (a *AccessControl) CheckViewAccess(ctx context.Context, siteID int) error {
	token := auth.TokenFromContext(ctx)

	allowed, err := a.repo.HasViewAccess(ctx, token, siteID)
	if err != nil {
		return errors.Wrapf(err, "check view access for site %d", siteID)
	}
	if !allowed {
		a.logger.WithFields(logrus.Fields{
			"site_id":   siteID,
			"anonymous": token == "",
		}).Debug("View access denied")
		return errors.Wrapf(errors.ErrForbidden, "site %d", siteID)
	}

	return nil
}
