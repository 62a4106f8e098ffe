package amd

import "math"

const (
	malayalamGreetingBoost = 1.1
	beepBoost              = 0.3
	beepBoostCeiling       = 0.95
)

// Fuse merges the classifier score with beep and greeting evidence.
//
// By default the decision is confidence < SensitivityLevel, which is the
// historical behaviour: a high machine confidence under a low sensitivity
// reads as human. CorrectedSensitivity switches to confidence >= SensitivityLevel.
func Fuse(ml Classification, cultural CulturalMarkers, beep BeepResult, cfg Configuration) Fusion {
	confidence := ml.Confidence

	if cultural.MalayalamGreeting() {
		confidence *= malayalamGreetingBoost
	}
	if beep.Detected {
		confidence = math.Min(beepBoostCeiling, confidence+beepBoost)
	}
	confidence = clamp01(math.Min(1.0, confidence))

	isMachine := confidence < cfg.SensitivityLevel
	if cfg.CorrectedSensitivity {
		isMachine = confidence >= cfg.SensitivityLevel
	}

	return Fusion{
		IsAnsweringMachine: isMachine,
		Confidence:         confidence,
	}
}

// Decide maps a fused decision onto the base action. Escalation to a human
// agent is layered on top by the campaign manager.
func Decide(fusion Fusion, cultural CulturalMarkers) Action {
	if !fusion.IsAnsweringMachine {
		return ActionContinueCall
	}
	if cultural.MalayalamGreeting() {
		return ActionLeaveMessage
	}
	return ActionCallbackLater
}
