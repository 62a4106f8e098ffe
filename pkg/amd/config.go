package amd

import (
	"fmt"
	"time"

	"amd-server/pkg/errors"
)

// AlgorithmHeuristic is the rule-based scorer, currently the only algorithm
const AlgorithmHeuristic = "heuristic"

// Configuration controls a detector. A detection call works on a snapshot,
// so updates never affect a call already in flight.
type Configuration struct {
	Algorithm                 string        `json:"algorithm"`
	SensitivityLevel          float64       `json:"sensitivity_level"`
	MaxDetectionTime          time.Duration `json:"max_detection_time"`
	AccuracyThreshold         float64       `json:"accuracy_threshold"`
	FalsePositiveThreshold    float64       `json:"false_positive_threshold"`
	MalayalamGreetingDatabase []string      `json:"malayalam_greeting_database"`

	MalayalamPatterns       bool `json:"malayalam_patterns"`
	CulturalAdaptation      bool `json:"cultural_adaptation"`
	RealTimeProcessing      bool `json:"real_time_processing"`
	DialectRecognition      bool `json:"dialect_recognition"`
	FestivalAwareness       bool `json:"festival_awareness"`
	BusinessHoursAdaptation bool `json:"business_hours_adaptation"`

	// CorrectedSensitivity flips the fusion comparison to confidence >= sensitivity
	CorrectedSensitivity bool `json:"corrected_sensitivity"`
}

// DefaultConfiguration returns the configuration used when nothing is set
func DefaultConfiguration() Configuration {
	return Configuration{
		Algorithm:              AlgorithmHeuristic,
		SensitivityLevel:       0.75,
		MaxDetectionTime:       3 * time.Second,
		AccuracyThreshold:      0.85,
		FalsePositiveThreshold: 0.05,
		MalayalamGreetingDatabase: []string{
			"ആരാണ് വിളിക്കുന്നത്",
			"ആരാണ് സംസാരിക്കുന്നത്",
		},
		MalayalamPatterns:       true,
		CulturalAdaptation:      true,
		RealTimeProcessing:      true,
		DialectRecognition:      true,
		FestivalAwareness:       true,
		BusinessHoursAdaptation: true,
	}
}

// Validate checks ranges
func (c Configuration) Validate() error {
	if c.Algorithm != AlgorithmHeuristic {
		return errors.NewInvalidInput(fmt.Sprintf("unsupported algorithm: %q", c.Algorithm))
	}
	if c.SensitivityLevel < 0.1 || c.SensitivityLevel > 1.0 {
		return errors.NewInvalidInput(fmt.Sprintf("sensitivity level must be within [0.1, 1.0], got %v", c.SensitivityLevel))
	}
	if c.MaxDetectionTime <= 0 {
		return errors.NewInvalidInput("max detection time must be positive")
	}
	if c.AccuracyThreshold < 0 || c.AccuracyThreshold > 1 {
		return errors.NewInvalidInput(fmt.Sprintf("accuracy threshold must be within [0, 1], got %v", c.AccuracyThreshold))
	}
	if c.FalsePositiveThreshold < 0 || c.FalsePositiveThreshold > 1 {
		return errors.NewInvalidInput(fmt.Sprintf("false positive threshold must be within [0, 1], got %v", c.FalsePositiveThreshold))
	}
	return nil
}

// clone copies the slice so snapshots do not alias
func (c Configuration) clone() Configuration {
	if c.MalayalamGreetingDatabase != nil {
		c.MalayalamGreetingDatabase = append([]string(nil), c.MalayalamGreetingDatabase...)
	}
	return c
}

// ConfigurationUpdate is a partial update; nil fields are left unchanged
type ConfigurationUpdate struct {
	Algorithm                 *string        `json:"algorithm,omitempty"`
	SensitivityLevel          *float64       `json:"sensitivity_level,omitempty"`
	MaxDetectionTime          *time.Duration `json:"max_detection_time,omitempty"`
	AccuracyThreshold         *float64       `json:"accuracy_threshold,omitempty"`
	FalsePositiveThreshold    *float64       `json:"false_positive_threshold,omitempty"`
	MalayalamGreetingDatabase []string       `json:"malayalam_greeting_database,omitempty"`

	MalayalamPatterns       *bool `json:"malayalam_patterns,omitempty"`
	CulturalAdaptation      *bool `json:"cultural_adaptation,omitempty"`
	RealTimeProcessing      *bool `json:"real_time_processing,omitempty"`
	DialectRecognition      *bool `json:"dialect_recognition,omitempty"`
	FestivalAwareness       *bool `json:"festival_awareness,omitempty"`
	BusinessHoursAdaptation *bool `json:"business_hours_adaptation,omitempty"`
	CorrectedSensitivity    *bool `json:"corrected_sensitivity,omitempty"`
}

// Merge applies the update to a copy of c and validates the result
func (c Configuration) Merge(u ConfigurationUpdate) (Configuration, error) {
	next := c.clone()

	if u.Algorithm != nil {
		next.Algorithm = *u.Algorithm
	}
	if u.SensitivityLevel != nil {
		next.SensitivityLevel = *u.SensitivityLevel
	}
	if u.MaxDetectionTime != nil {
		next.MaxDetectionTime = *u.MaxDetectionTime
	}
	if u.AccuracyThreshold != nil {
		next.AccuracyThreshold = *u.AccuracyThreshold
	}
	if u.FalsePositiveThreshold != nil {
		next.FalsePositiveThreshold = *u.FalsePositiveThreshold
	}
	if u.MalayalamGreetingDatabase != nil {
		next.MalayalamGreetingDatabase = append([]string(nil), u.MalayalamGreetingDatabase...)
	}
	setBool(&next.MalayalamPatterns, u.MalayalamPatterns)
	setBool(&next.CulturalAdaptation, u.CulturalAdaptation)
	setBool(&next.RealTimeProcessing, u.RealTimeProcessing)
	setBool(&next.DialectRecognition, u.DialectRecognition)
	setBool(&next.FestivalAwareness, u.FestivalAwareness)
	setBool(&next.BusinessHoursAdaptation, u.BusinessHoursAdaptation)
	setBool(&next.CorrectedSensitivity, u.CorrectedSensitivity)

	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
