package storage

import (
	"context"
	"sort"
	"sync"

	"amd-server/pkg/models"
)

type memoryStore struct {
	campaigns map[string]models.Campaign
	mu        sync.RWMutex
}

// NewMemoryStore creates a store that lives only as long as the process
func NewMemoryStore() CampaignStore {
	return &memoryStore{
		campaigns: make(map[string]models.Campaign),
	}
}

func (s *memoryStore) Save(ctx context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.ID] = *campaign
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, exists := s.campaigns[id]
	if !exists {
		return nil, ErrCampaignNotFound
	}
	return &campaign, nil
}

func (s *memoryStore) List(ctx context.Context) ([]*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaigns := make([]*models.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		c := c
		campaigns = append(campaigns, &c)
	}
	sortByCreation(campaigns)
	return campaigns, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[id]; !exists {
		return ErrCampaignNotFound
	}
	delete(s.campaigns, id)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

func sortByCreation(campaigns []*models.Campaign) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt.Equal(campaigns[j].CreatedAt) {
			return campaigns[i].ID < campaigns[j].ID
		}
		return campaigns[i].CreatedAt.Before(campaigns[j].CreatedAt)
	})
}
