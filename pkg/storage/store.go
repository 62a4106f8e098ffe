package storage

import (
	"context"

	"amd-server/pkg/errors"
	"amd-server/pkg/models"
)

// ErrCampaignNotFound is returned when a campaign ID has no record
var ErrCampaignNotFound = errors.ErrCampaignNotFound

// CampaignStore persists campaign records. Implementations return copies, so
// callers may mutate what they get back.
type CampaignStore interface {
	Save(ctx context.Context, campaign *models.Campaign) error
	Get(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context) ([]*models.Campaign, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
