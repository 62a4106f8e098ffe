package amd

import (
	"regexp"
	"strings"
)

// Pattern tags reported in CulturalMarkers.Markers
const (
	TagMalayalamFormal   = "malayalam_formal"
	TagMalayalamCasual   = "malayalam_casual"
	TagMalayalamBusiness = "malayalam_business"
	TagManglishGreeting  = "manglish_greeting"
	TagManglishBusiness  = "manglish_business"
	TagEnglishGreeting   = "english_greeting"
	TagGenericMachine    = "generic_machine"
	TagMalayalamMachine  = "malayalam_machine"
	TagFestivalGreeting  = "festival_greeting"
	TagMalayalamCustom   = "malayalam_custom"
)

// Language is the greeting language a rule votes for
type Language string

const (
	LanguageNone      Language = ""
	LanguageMalayalam Language = "malayalam"
	LanguageManglish  Language = "manglish"
	LanguageEnglish   Language = "english"
)

// Matcher reports whether a normalised (lower-cased) transcript matches
type Matcher func(text string) bool

// PatternRule is one entry of the ordered greeting table. When several rules
// fire, the greeting language of the highest Priority rule wins.
type PatternRule struct {
	Tag       string
	Matcher   Matcher
	Priority  int
	Language  Language
	Formality FormalityLevel
	Machine   bool
	// Festival rules only run when festival awareness is enabled
	Festival bool
}

// ContainsAny matches when any of the phrases occurs as a substring
func ContainsAny(phrases ...string) Matcher {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return func(text string) bool {
		for _, p := range lowered {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}

// MatchRegexp matches a compiled regular expression
func MatchRegexp(expr string) Matcher {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

const (
	priorityEnglish   = 1
	priorityMalayalam = 2
	priorityManglish  = 3
)

// DefaultPatternRules is the built-in table, evaluated in registration order
var DefaultPatternRules = []PatternRule{
	{
		Tag:       TagMalayalamFormal,
		Matcher:   ContainsAny("നമസ്കാരം", "നമസ്തേ", "ബഹുമാനപ്പെട്ട", "ദയവായി"),
		Priority:  priorityMalayalam,
		Language:  LanguageMalayalam,
		Formality: FormalityFormal,
	},
	{
		Tag:       TagMalayalamCasual,
		Matcher:   ContainsAny("ഹലോ", "എന്താ", "പറയൂ", "സുഖമാണോ", "ആരാ"),
		Priority:  priorityMalayalam,
		Language:  LanguageMalayalam,
		Formality: FormalityCasual,
	},
	{
		Tag:       TagMalayalamBusiness,
		Matcher:   ContainsAny("കമ്പനി", "ഓഫീസ്", "സ്ഥാപനം", "ബിസിനസ്", "ലിമിറ്റഡ്"),
		Priority:  priorityMalayalam,
		Language:  LanguageMalayalam,
		Formality: FormalityBusiness,
	},
	{
		Tag:       TagManglishGreeting,
		Matcher:   MatchRegexp(`\b(namaskaram|namaskar|enthu|entha|enthanu|sugamano|chetta|chechi|parayu|aaranu|aara)\b`),
		Priority:  priorityManglish,
		Language:  LanguageManglish,
		Formality: FormalityCasual,
	},
	{
		Tag:       TagManglishBusiness,
		Matcher:   MatchRegexp(`\b(office(il)? aanu|company(il)? aanu|sthapanam|thirichu vilikkam|vilikkam)\b`),
		Priority:  priorityManglish,
		Language:  LanguageManglish,
		Formality: FormalityBusiness,
	},
	{
		Tag:      TagEnglishGreeting,
		Matcher:  MatchRegexp(`\b(hello|hi|hey|good (morning|afternoon|evening)|speaking)\b`),
		Priority: priorityEnglish,
		Language: LanguageEnglish,
	},
	{
		Tag:     TagGenericMachine,
		Matcher: ContainsAny("leave a message", "leave your message", "after the beep", "after the tone", "not available", "voicemail", "voice mail", "record your message"),
		Machine: true,
	},
	{
		Tag:      TagMalayalamMachine,
		Matcher:  ContainsAny("സന്ദേശം", "ബീപ്", "ലഭ്യമല്ല", "beep shesham", "sandesham", "labhyamalla"),
		Priority: priorityMalayalam,
		Language: LanguageMalayalam,
		Machine:  true,
	},
	{
		Tag:       TagFestivalGreeting,
		Matcher:   MatchRegexp(`\b(onam|vishu|christmas|eid|ramadan|diwali|ashamsakal)\b|ഓണം|വിഷു|ആശംസകൾ`),
		Formality: FormalityFormal,
		Festival:  true,
	},
}

// customGreetingRule turns configured greeting phrases into a Malayalam rule
func customGreetingRule(phrases []string) (PatternRule, bool) {
	if len(phrases) == 0 {
		return PatternRule{}, false
	}
	return PatternRule{
		Tag:      TagMalayalamCustom,
		Matcher:  ContainsAny(phrases...),
		Priority: priorityMalayalam,
		Language: LanguageMalayalam,
	}, true
}

var formalityRank = map[FormalityLevel]int{
	FormalityCasual:   1,
	FormalityFormal:   2,
	FormalityBusiness: 3,
}

// DialectPlaces lists place names per region, checked in order
var DialectPlaces = []struct {
	Dialect RegionalDialect
	Places  []string
}{
	{DialectNorthern, []string{"kozhikode", "calicut", "kannur", "kasaragod", "malappuram", "wayanad", "thalassery", "vadakara", "കോഴിക്കോട്", "കണ്ണൂർ", "മലപ്പുറം", "കാസർഗോഡ്"}},
	{DialectCentral, []string{"thrissur", "ernakulam", "kochi", "cochin", "palakkad", "idukki", "aluva", "തൃശ്ശൂർ", "എറണാകുളം", "കൊച്ചി", "പാലക്കാട്"}},
	{DialectSouthern, []string{"thiruvananthapuram", "trivandrum", "kollam", "pathanamthitta", "alappuzha", "alleppey", "kottayam", "തിരുവനന്തപുരം", "കൊല്ലം", "ആലപ്പുഴ", "കോട്ടയം"}},
}
