package amd

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/sirupsen/logrus"
)

const (
	// fuzzyPlaceThreshold is the Jaro-Winkler score above which a token is taken
	// to be a misspelt place name
	fuzzyPlaceThreshold = 0.92
	fuzzyMinTokenLength = 6
)

// CulturalAnalyzer classifies a greeting transcript into language, formality
// and regional dialect using an ordered rule table.
type CulturalAnalyzer struct {
	logger *logrus.Entry
	rules  []PatternRule
	config Configuration
}

// NewCulturalAnalyzer creates an analyzer over the default rule table
func NewCulturalAnalyzer(logger *logrus.Logger, config Configuration) *CulturalAnalyzer {
	return NewCulturalAnalyzerWithRules(logger, config, DefaultPatternRules)
}

// NewCulturalAnalyzerWithRules creates an analyzer over a caller-supplied rule table
func NewCulturalAnalyzerWithRules(logger *logrus.Logger, config Configuration, rules []PatternRule) *CulturalAnalyzer {
	return &CulturalAnalyzer{
		logger: logger.WithField("component", "amd_cultural"),
		rules:  rules,
		config: config,
	}
}

// Analyze classifies text with the analyzer's own configuration
func (ca *CulturalAnalyzer) Analyze(text string) CulturalMarkers {
	return ca.AnalyzeWith(text, ca.config)
}

// AnalyzeWith classifies text with an explicit configuration snapshot
func (ca *CulturalAnalyzer) AnalyzeWith(text string, config Configuration) CulturalMarkers {
	markers := UnknownMarkers()
	markers.Transcript = text

	normalized := normalizeTranscript(text)
	if normalized == "" {
		return markers
	}

	rules := ca.rules
	if custom, ok := customGreetingRule(config.MalayalamGreetingDatabase); ok {
		rules = append(append(make([]PatternRule, 0, len(rules)+1), rules...), custom)
	}

	bestPriority := 0
	bestFormality := 0
	for _, rule := range rules {
		if rule.Festival && !config.FestivalAwareness {
			continue
		}
		if (rule.Language == LanguageMalayalam || rule.Language == LanguageManglish) && !config.MalayalamPatterns {
			continue
		}
		if rule.Matcher == nil || !rule.Matcher(normalized) {
			continue
		}

		markers.Markers = append(markers.Markers, rule.Tag)
		if rule.Machine {
			markers.MachinePhrasing = true
		}
		if rule.Language != LanguageNone && rule.Priority > bestPriority {
			bestPriority = rule.Priority
			markers.GreetingPattern = greetingFor(rule.Language)
		}
		if rank := formalityRank[rule.Formality]; rank > bestFormality {
			bestFormality = rank
			markers.FormalityLevel = rule.Formality
		}
	}

	if config.DialectRecognition {
		markers.RegionalDialect = detectDialect(normalized)
	}

	ca.logger.WithFields(logrus.Fields{
		"greeting":  markers.GreetingPattern,
		"formality": markers.FormalityLevel,
		"dialect":   markers.RegionalDialect,
		"markers":   markers.Markers,
	}).Debug("Analyzed greeting")

	return markers
}

func greetingFor(lang Language) GreetingPattern {
	switch lang {
	case LanguageMalayalam:
		return GreetingMalayalam
	case LanguageManglish:
		return GreetingMixed
	case LanguageEnglish:
		return GreetingEnglish
	default:
		return GreetingUnknown
	}
}

func normalizeTranscript(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// detectDialect returns the first region whose place list matches. Exact
// substrings are tried for every region before falling back to fuzzy token
// matching against Latin-script place names.
func detectDialect(normalized string) RegionalDialect {
	for _, region := range DialectPlaces {
		for _, place := range region.Places {
			if strings.Contains(normalized, place) {
				return region.Dialect
			}
		}
	}

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, region := range DialectPlaces {
		for _, place := range region.Places {
			if !isASCII(place) {
				continue
			}
			for _, token := range tokens {
				if utf8.RuneCountInString(token) < fuzzyMinTokenLength || !isASCII(token) {
					continue
				}
				if matchr.JaroWinkler(token, place, false) >= fuzzyPlaceThreshold {
					return region.Dialect
				}
			}
		}
	}
	return DialectUnknown
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
