package campaign

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"amd-server/pkg/amd"
	"amd-server/pkg/errors"
	"amd-server/pkg/messaging"
	"amd-server/pkg/metrics"
	"amd-server/pkg/models"
	"amd-server/pkg/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sender delivers a message and reports how many attempts it took
type Sender interface {
	Send(ctx context.Context, msg messaging.Message) (int, error)
}

// Manager owns campaigns, runs detection for each call and keeps analytics
type Manager struct {
	logger   *logrus.Entry
	detector *amd.Detector
	sender   Sender
	store    storage.CampaignStore
	now      func() time.Time

	locksMutex sync.Mutex
	locks      map[string]*sync.Mutex
}

// NewManager creates a campaign manager
func NewManager(logger *logrus.Logger, detector *amd.Detector, sender Sender, store storage.CampaignStore) *Manager {
	return &Manager{
		logger:   logger.WithField("component", "campaign_manager"),
		detector: detector,
		sender:   sender,
		store:    store,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock serialises analytics updates for one campaign
func (m *Manager) lock(id string) func() {
	m.locksMutex.Lock()
	mu, ok := m.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[id] = mu
	}
	m.locksMutex.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (m *Manager) load(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := m.store.Get(ctx, id)
	if stderrors.Is(err, storage.ErrCampaignNotFound) {
		return nil, errors.NewCampaignNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load campaign").WithField("campaign_id", id)
	}
	return c, nil
}

// CreateCampaign stores a new campaign with zeroed analytics and returns its ID
func (m *Manager) CreateCampaign(ctx context.Context, spec Spec) (string, error) {
	status := spec.Status
	if status == "" {
		status = models.CampaignDraft
	}
	if !status.Valid() {
		return "", errors.NewInvalidInput(fmt.Sprintf("unknown campaign status %q", status))
	}

	now := m.now()
	c := &models.Campaign{
		ID:                   uuid.New().String(),
		Name:                 spec.Name,
		Status:               status,
		CulturalProfile:      spec.CulturalProfile,
		MessageConfiguration: spec.MessageConfiguration,
		CallbackSettings:     withCallbackDefaults(spec.CallbackSettings),
		Escalation:           spec.Escalation,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := m.store.Save(ctx, c); err != nil {
		return "", errors.Wrap(err, "failed to save campaign")
	}

	m.logger.WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"name":        c.Name,
		"language":    c.CulturalProfile.PrimaryLanguage,
	}).Info("Campaign created")
	m.publishCount(ctx)
	return c.ID, nil
}

// GetCampaign returns a copy of the campaign
func (m *Manager) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	return m.load(ctx, id)
}

// ListCampaigns returns copies of all campaigns, oldest first
func (m *Manager) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	return m.store.List(ctx)
}

// UpdateCampaign applies a partial update and bumps UpdatedAt
func (m *Manager) UpdateCampaign(ctx context.Context, id string, update Update) (*models.Campaign, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, errors.NewInvalidInput(fmt.Sprintf("unknown campaign status %q", *update.Status))
	}

	unlock := m.lock(id)
	defer unlock()

	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	if update.CulturalProfile != nil {
		c.CulturalProfile = *update.CulturalProfile
	}
	if update.MessageConfiguration != nil {
		c.MessageConfiguration = *update.MessageConfiguration
	}
	if update.CallbackSettings != nil {
		c.CallbackSettings = withCallbackDefaults(*update.CallbackSettings)
	}
	if update.Escalation != nil {
		c.Escalation = *update.Escalation
	}
	c.UpdatedAt = m.now()

	if err := m.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "failed to save campaign").WithField("campaign_id", id)
	}
	m.logger.WithField("campaign_id", id).Info("Campaign updated")
	return c, nil
}

// DeleteCampaign removes a campaign
func (m *Manager) DeleteCampaign(ctx context.Context, id string) error {
	unlock := m.lock(id)
	err := m.store.Delete(ctx, id)
	unlock()

	if stderrors.Is(err, storage.ErrCampaignNotFound) {
		return errors.NewCampaignNotFound(id)
	}
	if err != nil {
		return errors.Wrap(err, "failed to delete campaign").WithField("campaign_id", id)
	}

	m.locksMutex.Lock()
	delete(m.locks, id)
	m.locksMutex.Unlock()

	m.logger.WithField("campaign_id", id).Info("Campaign deleted")
	m.publishCount(ctx)
	return nil
}

// Analytics returns a snapshot of the campaign's counters
func (m *Manager) Analytics(ctx context.Context, id string) (models.CampaignAnalytics, error) {
	c, err := m.load(ctx, id)
	if err != nil {
		return models.CampaignAnalytics{}, err
	}
	return c.Analytics, nil
}

// RecordCallbackOutcome counts a successful callback
func (m *Manager) RecordCallbackOutcome(ctx context.Context, id string, success bool) error {
	return m.mutateAnalytics(ctx, id, func(a *models.CampaignAnalytics) {
		if success {
			a.CallbackSuccess++
		}
	})
}

// ProcessCampaignCall runs detection on the answered call's audio, leaves a
// message when a machine answered and updates the campaign analytics. Analysis
// failures never surface here; the worst case is continue_call.
func (m *Manager) ProcessCampaignCall(ctx context.Context, id string, audio []byte, phone string) (*CallResult, error) {
	c, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	callID := uuid.New().String()
	logger := m.logger.WithFields(logrus.Fields{
		"campaign_id": id,
		"call_id":     callID,
	})
	if c.Status != models.CampaignActive {
		logger.WithField("status", c.Status).Debug("Processing call for inactive campaign")
	}

	detection := m.detector.Detect(ctx, audio)
	cultural := detection.CulturalContext
	malayalam := cultural.MalayalamGreeting()

	language := models.LanguageEnglish
	if malayalam || c.PrefersMalayalam() {
		language = models.LanguageMalayalam
	}

	result := &CallResult{
		CallID:     callID,
		CampaignID: id,
		Phone:      phone,
		Detection:  detection,
		Action:     detection.RecommendedAction,
		CulturalAdaptation: CulturalAdaptation{
			MessageLanguage: language,
			GreetingPattern: cultural.GreetingPattern,
			Formality:       cultural.FormalityLevel,
			Dialect:         cultural.RegionalDialect,
			Adapted:         malayalam,
		},
	}

	if detection.IsAnsweringMachine {
		m.leaveMessage(ctx, c, result, logger)
		if result.Action == amd.ActionCallbackLater {
			at := nextCallback(m.now(), c.CallbackSettings, m.detector.Configuration().BusinessHoursAdaptation)
			result.CallbackAt = &at
		}
	} else {
		result.Message, result.CulturalAdaptation.MessageLanguage = pickMessage(c.MessageConfiguration.Human, language)
		if c.Escalation.TransferOnHuman && c.Escalation.TransferNumber != "" {
			result.Action = amd.ActionHumanTransfer
			result.TransferNumber = c.Escalation.TransferNumber
		}
	}

	err = m.mutateAnalytics(ctx, id, func(a *models.CampaignAnalytics) {
		a.TotalCalls++
		if detection.IsAnsweringMachine {
			a.AMDDetections++
			if result.MessageDelivered {
				a.MessagesLeft++
			}
		} else {
			a.HumanConnections++
		}
		if malayalam {
			a.CulturalEngagement++
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCampaignCall(detection.IsAnsweringMachine, string(result.Action), malayalam)
	logger.WithFields(logrus.Fields{
		"is_machine": detection.IsAnsweringMachine,
		"confidence": detection.Confidence,
		"action":     result.Action,
		"delivered":  result.MessageDelivered,
		"language":   result.CulturalAdaptation.MessageLanguage,
	}).Info("Campaign call processed")
	return result, nil
}

func (m *Manager) leaveMessage(ctx context.Context, c *models.Campaign, result *CallResult, logger *logrus.Entry) {
	text, language := pickMessage(c.MessageConfiguration.Machine, result.CulturalAdaptation.MessageLanguage)
	result.Message = text
	result.CulturalAdaptation.MessageLanguage = language
	if text == "" {
		logger.Warn("Campaign has no machine message configured, nothing to deliver")
		return
	}
	if m.sender == nil {
		logger.Warn("No delivery channel configured, message not delivered")
		return
	}

	msg := messaging.NewMessage(c.ID, result.Phone, text, language)
	msg.CallID = result.CallID
	msg.Metadata = map[string]string{
		"action":           string(result.Action),
		"greeting_pattern": string(result.CulturalAdaptation.GreetingPattern),
	}
	result.MessageID = msg.ID

	attempts, err := m.sender.Send(ctx, msg)
	result.DeliveryAttempts = attempts
	if err != nil {
		logger.WithError(err).Warn("Machine message was not delivered")
		return
	}
	result.MessageDelivered = true
}

// pickMessage returns the message in the wanted language, or the other one when it is empty
func pickMessage(msg models.LocalizedMessage, language string) (string, string) {
	if language == models.LanguageMalayalam {
		if msg.Malayalam != "" {
			return msg.Malayalam, models.LanguageMalayalam
		}
		if msg.English != "" {
			return msg.English, models.LanguageEnglish
		}
		return "", language
	}
	if msg.English != "" {
		return msg.English, models.LanguageEnglish
	}
	if msg.Malayalam != "" {
		return msg.Malayalam, models.LanguageMalayalam
	}
	return "", language
}

func (m *Manager) mutateAnalytics(ctx context.Context, id string, fn func(*models.CampaignAnalytics)) error {
	unlock := m.lock(id)
	defer unlock()

	c, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	fn(&c.Analytics)
	c.UpdatedAt = m.now()

	if err := m.store.Save(ctx, c); err != nil {
		return errors.Wrap(err, "failed to save campaign analytics").WithField("campaign_id", id)
	}
	return nil
}

func (m *Manager) publishCount(ctx context.Context) {
	campaigns, err := m.store.List(ctx)
	if err != nil {
		m.logger.WithError(err).Debug("Failed to count campaigns")
		return
	}
	metrics.SetCampaignCount(len(campaigns))
}
