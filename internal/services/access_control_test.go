package services

import (
	"context"
	"testing"

	"github.com/kyvra-tech/geoipmap-backend/internal/auth"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

type fakeAccessRepository struct {
	grants map[string]map[int]bool
	err    error
	tokens []string
}

func (f *fakeAccessRepository) HasViewAccess(ctx context.Context, token string, siteID int) (bool, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return false, f.err
	}
	return f.grants[token][siteID], nil
}

func TestAccessControlCheckViewAccess(t *testing.T) {
	repo := &fakeAccessRepository{grants: map[string]map[int]bool{
		"viewer": {1: true},
		"":       {2: true},
	}}
	ac := NewAccessControl(repo, testLogger())

	tests := []struct {
		name      string
		token     string
		siteID    int
		forbidden bool
	}{
		{name: "granted token", token: "viewer", siteID: 1},
		{name: "token without grant", token: "viewer", siteID: 3, forbidden: true},
		{name: "anonymous on public site", siteID: 2},
		{name: "anonymous on private site", siteID: 1, forbidden: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := auth.WithToken(context.Background(), tt.token)
			err := ac.CheckViewAccess(ctx, tt.siteID)
			if tt.forbidden != errors.IsForbidden(err) {
				t.Errorf("Expected forbidden=%v, got %v", tt.forbidden, err)
			}
			if !tt.forbidden && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestAccessControlStorageError(t *testing.T) {
	ac := NewAccessControl(&fakeAccessRepository{err: errors.ErrDatabaseConnection}, testLogger())

	err := ac.CheckViewAccess(context.Background(), 1)
	if errors.IsForbidden(err) {
		t.Error("Storage failure must not be reported as access denied")
	}
	if !errors.Is(err, errors.ErrDatabaseConnection) {
		t.Errorf("Expected storage error, got %v", err)
	}
}
