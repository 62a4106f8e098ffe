package amd

import (
	"context"
	"fmt"
	"math"

	"amd-server/pkg/errors"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Classifier scores features into a machine likelihood. The heuristic scorer
// is the default; a trained model can satisfy the same contract.
type Classifier interface {
	Classify(ctx context.Context, features AudioFeatures) (Classification, error)
}

// Machine indicator tags
const (
	IndicatorConsistentPitch       = "consistent_pitch"
	IndicatorLowEnergyVariation    = "low_energy_variation"
	IndicatorRoboticFrequencyRange = "robotic_frequency_range"
	IndicatorUnnaturalMFCC         = "unnatural_mfcc_patterns"
)

const classifierMachineThreshold = 0.6

// heuristicRule is a single row of the scoring table
type heuristicRule struct {
	indicator string
	score     float64
	fires     func(f AudioFeatures) bool
}

var heuristicRules = []heuristicRule{
	{
		indicator: IndicatorConsistentPitch,
		score:     0.30,
		fires:     func(f AudioFeatures) bool { return f.Prosody.PitchVariation < 0.3 },
	},
	{
		indicator: IndicatorLowEnergyVariation,
		score:     0.25,
		fires:     func(f AudioFeatures) bool { return f.Prosody.EnergyVariation < 0.1 },
	},
	{
		indicator: IndicatorRoboticFrequencyRange,
		score:     0.20,
		fires: func(f AudioFeatures) bool {
			return f.Spectral.Centroid > 2000 && f.Spectral.Centroid < 4000
		},
	},
	{
		indicator: IndicatorUnnaturalMFCC,
		score:     0.25,
		fires:     func(f AudioFeatures) bool { return MFCCStdDev(f.MFCC) < 0.5 },
	},
}

// HeuristicClassifier is the rule-based machine scorer
type HeuristicClassifier struct {
	logger *logrus.Entry
}

// NewHeuristicClassifier creates the rule-based classifier
func NewHeuristicClassifier(logger *logrus.Logger) *HeuristicClassifier {
	return &HeuristicClassifier{
		logger: logger.WithField("component", "amd_classifier"),
	}
}

// Classify implements Classifier
func (hc *HeuristicClassifier) Classify(ctx context.Context, features AudioFeatures) (result Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.ErrClassificationFailed, fmt.Sprintf("panic: %v", r))
			result = NeutralClassification()
		}
	}()

	if err := ctx.Err(); err != nil {
		return NeutralClassification(), err
	}

	score := 0.0
	indicators := make([]string, 0, len(heuristicRules))
	for _, rule := range heuristicRules {
		if rule.fires(features) {
			score += rule.score
			indicators = append(indicators, rule.indicator)
		}
	}
	if math.IsNaN(score) {
		return NeutralClassification(), errors.Wrap(errors.ErrClassificationFailed, "score is NaN")
	}

	confidence := math.Min(1, score)
	return Classification{
		IsAnsweringMachine: confidence > classifierMachineThreshold,
		Confidence:         confidence,
		HumanLikelihood:    1 - confidence,
		MachineIndicators:  indicators,
	}, nil
}

// NeutralClassification is the fallback used when scoring fails
func NeutralClassification() Classification {
	return Classification{
		Confidence:        0.5,
		HumanLikelihood:   0.5,
		MachineIndicators: []string{},
	}
}

// MFCCStdDev is the population standard deviation of the coefficients
func MFCCStdDev(mfcc [MFCCCount]float64) float64 {
	return stat.PopStdDev(mfcc[:], nil)
}

// classifySafely runs a classifier and recovers to the neutral result on any failure
func classifySafely(ctx context.Context, logger *logrus.Entry, c Classifier, features AudioFeatures) Classification {
	result, err := func() (res Classification, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrap(errors.ErrClassificationFailed, fmt.Sprintf("panic: %v", r))
			}
		}()
		return c.Classify(ctx, features)
	}()
	if err != nil {
		logger.WithError(err).Warn("Classification failed, using neutral score")
		return NeutralClassification()
	}

	result.Confidence = clamp01(result.Confidence)
	result.HumanLikelihood = clamp01(result.HumanLikelihood)
	if result.MachineIndicators == nil {
		result.MachineIndicators = []string{}
	}
	return result
}
