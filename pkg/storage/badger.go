package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"amd-server/pkg/models"

	"github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
)

var campaignPrefix = []byte("campaign/")

type badgerStore struct {
	db     *badger.DB
	logger *logrus.Entry
}

// NewBadgerStore opens (or creates) a campaign store under path
func NewBadgerStore(logger *logrus.Logger, path string) (CampaignStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	entry := logger.WithField("component", "campaign_store")
	entry.WithField("path", path).Info("Opened campaign store")
	return &badgerStore{db: db, logger: entry}, nil
}

// NewInMemoryBadgerStore runs Badger without touching disk
func NewInMemoryBadgerStore(logger *logrus.Logger) (CampaignStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}
	return &badgerStore{db: db, logger: logger.WithField("component", "campaign_store")}, nil
}

func campaignKey(id string) []byte {
	return append(append([]byte(nil), campaignPrefix...), id...)
}

func (s *badgerStore) Save(ctx context.Context, campaign *models.Campaign) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(campaignKey(campaign.ID), data)
	})
}

func (s *badgerStore) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(campaignKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &campaign)
		})
	})

	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (s *badgerStore) List(ctx context.Context) ([]*models.Campaign, error) {
	var campaigns []*models.Campaign

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(campaignPrefix); it.ValidForPrefix(campaignPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var campaign models.Campaign
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &campaign)
			})
			if err != nil {
				return fmt.Errorf("failed to decode campaign %s: %w", it.Item().Key(), err)
			}
			campaigns = append(campaigns, &campaign)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreation(campaigns)
	return campaigns, nil
}

func (s *badgerStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := campaignKey(id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})

	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return ErrCampaignNotFound
	}
	return err
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
