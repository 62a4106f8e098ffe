package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	amderrors "amd-server/pkg/errors"
	"amd-server/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func sampleCampaign(id string, created time.Time) *models.Campaign {
	return &models.Campaign{
		ID:     id,
		Name:   "Onam offers " + id,
		Status: models.CampaignActive,
		CulturalProfile: models.CulturalProfile{
			PrimaryLanguage: models.LanguageMalayalam,
			Region:          "central",
		},
		MessageConfiguration: models.MessageConfiguration{
			Machine: models.LocalizedMessage{
				Malayalam: "ദയവായി തിരികെ വിളിക്കുക",
				English:   "Please call us back",
			},
		},
		CallbackSettings: models.CallbackSettings{
			Enabled:       true,
			MaxAttempts:   3,
			RetryInterval: time.Hour,
		},
		Analytics: models.CampaignAnalytics{TotalCalls: 3, AMDDetections: 2, HumanConnections: 1},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func storeContract(t *testing.T, store CampaignStore) {
	ctx := context.Background()
	base := time.Date(2024, 8, 29, 10, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	assert.True(t, errors.Is(err, amderrors.ErrCampaignNotFound))
	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrCampaignNotFound)

	require.NoError(t, store.Save(ctx, sampleCampaign("b", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, sampleCampaign("a", base)))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Onam offers a", got.Name)
	assert.Equal(t, time.Hour, got.CallbackSettings.RetryInterval)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.Equal(t, int64(3), got.Analytics.TotalCalls)

	// Returned records are copies
	got.Name = "changed"
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Onam offers a", again.Name)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestInMemoryBadgerStore(t *testing.T) {
	store, err := NewInMemoryBadgerStore(testLogger())
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(testLogger(), dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleCampaign("persisted", time.Now().UTC())))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(testLogger(), dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignActive, got.Status)
	assert.Equal(t, "ദയവായി തിരികെ വിളിക്കുക", got.MessageConfiguration.Machine.Malayalam)
}
