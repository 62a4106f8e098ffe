// Package amd implements answering-machine detection: signal features, beep
// detection, greeting analysis, heuristic scoring, fusion and action policy.
package amd

const (
	// FrequencyBinCount is the number of spectrum magnitudes reported in features
	FrequencyBinCount = 50
	// EnvelopeLength is the number of samples in the reported amplitude envelope
	EnvelopeLength = 100
	// MFCCCount is the number of cepstral-like coefficients
	MFCCCount = 13
)

// SpectralFeatures summarises the magnitude spectrum of the call slice
type SpectralFeatures struct {
	Centroid      float64                    `json:"centroid"`
	RMS           float64                    `json:"rms"`
	ZCR           float64                    `json:"zcr"`
	FrequencyBins [FrequencyBinCount]float64 `json:"frequency_bins"`
}

// ProsodyFeatures captures amplitude dynamics and periodicity
type ProsodyFeatures struct {
	AmplitudeEnvelope [EnvelopeLength]float64 `json:"amplitude_envelope"`
	EnergyVariation   float64                 `json:"energy_variation"`
	// PitchVariation is the strongest normalised autocorrelation found in the
	// 50-500 Hz period range. It is a periodicity strength, not a frequency.
	PitchVariation float64 `json:"pitch_variation"`
}

// AudioFeatures is the derived, per-call feature record
type AudioFeatures struct {
	Spectral   SpectralFeatures   `json:"spectral"`
	Prosody    ProsodyFeatures    `json:"prosody"`
	MFCC       [MFCCCount]float64 `json:"mfcc"`
	Duration   float64            `json:"duration"`
	SampleRate int                `json:"sample_rate"`
}

// IsZero reports whether the record is the zero-value fallback produced for
// undecodable or empty audio.
func (f AudioFeatures) IsZero() bool {
	return f == AudioFeatures{}
}

// BeepResult is the outcome of scanning for an answering-machine beep
type BeepResult struct {
	Detected   bool    `json:"detected"`
	Timing     float64 `json:"timing"`
	Confidence float64 `json:"confidence"`
	Frequency  float64 `json:"frequency"`
}

// GreetingPattern classifies the language of the greeting
type GreetingPattern string

const (
	GreetingMalayalam GreetingPattern = "malayalam"
	GreetingEnglish   GreetingPattern = "english"
	GreetingMixed     GreetingPattern = "mixed"
	GreetingUnknown   GreetingPattern = "unknown"
)

// FormalityLevel classifies the register of the greeting
type FormalityLevel string

const (
	FormalityCasual   FormalityLevel = "casual"
	FormalityFormal   FormalityLevel = "formal"
	FormalityBusiness FormalityLevel = "business"
)

// RegionalDialect is the Kerala region inferred from place names
type RegionalDialect string

const (
	DialectNorthern RegionalDialect = "northern"
	DialectCentral  RegionalDialect = "central"
	DialectSouthern RegionalDialect = "southern"
	DialectUnknown  RegionalDialect = "unknown"
)

// TranscriptSource records where the analysed text came from
type TranscriptSource string

const (
	TranscriptFromSTT         TranscriptSource = "stt"
	TranscriptFromPlaceholder TranscriptSource = "placeholder"
	TranscriptNone            TranscriptSource = "none"
)

// CulturalMarkers is the linguistic context extracted from the greeting
type CulturalMarkers struct {
	GreetingPattern  GreetingPattern  `json:"greeting_pattern"`
	Markers          []string         `json:"markers"`
	FormalityLevel   FormalityLevel   `json:"formality_level"`
	RegionalDialect  RegionalDialect  `json:"regional_dialect"`
	MachinePhrasing  bool             `json:"machine_phrasing,omitempty"`
	Transcript       string           `json:"transcript,omitempty"`
	TranscriptSource TranscriptSource `json:"transcript_source,omitempty"`
}

// UnknownMarkers is the neutral context used when no text could be analysed
func UnknownMarkers() CulturalMarkers {
	return CulturalMarkers{
		GreetingPattern:  GreetingUnknown,
		Markers:          []string{},
		FormalityLevel:   FormalityCasual,
		RegionalDialect:  DialectUnknown,
		TranscriptSource: TranscriptNone,
	}
}

// MalayalamGreeting reports whether the caller greeted in Malayalam or Manglish
func (c CulturalMarkers) MalayalamGreeting() bool {
	return c.GreetingPattern == GreetingMalayalam || c.GreetingPattern == GreetingMixed
}

// HasMarker reports whether the tag fired during analysis
func (c CulturalMarkers) HasMarker(tag string) bool {
	for _, m := range c.Markers {
		if m == tag {
			return true
		}
	}
	return false
}

// Classification is the output of a Classifier
type Classification struct {
	IsAnsweringMachine bool     `json:"is_answering_machine"`
	Confidence         float64  `json:"confidence"`
	HumanLikelihood    float64  `json:"human_likelihood"`
	MachineIndicators  []string `json:"machine_indicators"`
}

// Fusion is the merged decision before the action policy runs
type Fusion struct {
	IsAnsweringMachine bool    `json:"is_answering_machine"`
	Confidence         float64 `json:"confidence"`
}

// Action is the recommended next step for the dialer
type Action string

const (
	ActionLeaveMessage  Action = "leave_message"
	ActionCallbackLater Action = "callback_later"
	ActionHumanTransfer Action = "human_transfer"
	ActionContinueCall  Action = "continue_call"
)

// AudioAnalysis groups the signal-level evidence behind a decision
type AudioAnalysis struct {
	Features       AudioFeatures  `json:"features"`
	Beep           BeepResult     `json:"beep"`
	Classification Classification `json:"classification"`
	DecodeError    string         `json:"decode_error,omitempty"`
}

// DetectionResult is produced exactly once per call
type DetectionResult struct {
	IsAnsweringMachine bool            `json:"is_answering_machine"`
	Confidence         float64         `json:"confidence"`
	DetectionTimeMs    int64           `json:"detection_time_ms"`
	AudioAnalysis      AudioAnalysis   `json:"audio_analysis"`
	CulturalContext    CulturalMarkers `json:"cultural_context"`
	RecommendedAction  Action          `json:"recommended_action"`
	// TimedOut is set when the deadline expired and the fallback decision was returned
	TimedOut bool `json:"timed_out,omitempty"`
}

func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
