package guardrail

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

const (
	ReasonInjection = "Potential prompt injection detected"
	ReasonOffTopic  = "Query is not related to stock trading platform"
)

// DefaultInjectionPatterns are evaluated in order, case-insensitively.
var DefaultInjectionPatterns = []string{
	`ignore\s+(previous|above|all)\s+(instructions|prompts|rules)`,
	`forget\s+(everything|all|previous)`,
	`you\s+are\s+now\s+(a|an)\s+`,
	`act\s+as\s+(if\s+you\s+are\s+)?(a|an)\s+`,
	`system\s*:\s*`,
	`<\|(system|assistant|user)\|>`,
	`\[INST\]|\[/INST\]`,
	`###\s*(system|instruction|prompt)`,
	`disregard\s+(all|previous)`,
}

// DefaultOffTopicKeywords are matched as plain substrings of the lowercased
// input, so "ssn" also hits words that merely contain it.
var DefaultOffTopicKeywords = []string{
	"hack", "exploit", "vulnerability", "password", "credit card",
	"ssn", "social security", "malware", "virus", "phishing",
	"cryptocurrency mining", "bitcoin wallet", "drug", "illegal",
}

var (
	chatRoleMarker = regexp.MustCompile(`<\|.*?\|>`)
	instSpan       = regexp.MustCompile(`(?is)\[INST\].*?\[/INST\]`)
	headerTail     = regexp.MustCompile(`(?i)###\s*(system|instruction|prompt).*`)
)

type InputGuardrails struct {
	injection []*regexp.Regexp
	offTopic  []string
}

func NewInputGuardrails() *InputGuardrails {
	return NewInputGuardrailsWith(DefaultInjectionPatterns, DefaultOffTopicKeywords)
}

// NewInputGuardrailsWith compiles a custom pattern set. It panics on an
// invalid pattern, like regexp.MustCompile.
func NewInputGuardrailsWith(patterns []string, keywords []string) *InputGuardrails {
	g := &InputGuardrails{
		injection: make([]*regexp.Regexp, 0, len(patterns)),
		offTopic:  make([]string, 0, len(keywords)),
	}
	for _, p := range patterns {
		g.injection = append(g.injection, regexp.MustCompile(`(?i)`+p))
	}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			g.offTopic = append(g.offTopic, k)
		}
	}
	return g
}

func (g *InputGuardrails) CheckPromptInjection(text string) Result {
	for _, re := range g.injection {
		if re.MatchString(text) {
			log.Warn().Str("pattern", re.String()).Msg("prompt injection detected")
			return Fail(ReasonInjection)
		}
	}
	return Pass()
}

func (g *InputGuardrails) CheckOffTopic(text string) Result {
	lower := strings.ToLower(text)
	for _, keyword := range g.offTopic {
		if strings.Contains(lower, keyword) {
			log.Warn().Str("keyword", keyword).Msg("off-topic keyword detected")
			return Fail(ReasonOffTopic)
		}
	}
	return Pass()
}

// SanitizeInput strips chat-role markers, [INST] spans and everything after
// a "### system|instruction|prompt" header, then trims.
func (g *InputGuardrails) SanitizeInput(text string) string {
	out := chatRoleMarker.ReplaceAllString(text, "")
	out = instSpan.ReplaceAllString(out, "")
	out = headerTail.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// ValidateInput runs the injection check, then the topic check, then
// sanitizes. SanitizedOutput is set only when sanitizing changed the text.
func (g *InputGuardrails) ValidateInput(text string) Result {
	if res := g.CheckPromptInjection(text); !res.Passed {
		metrics.RecordGuardrail("input", "rejected")
		return res
	}
	if res := g.CheckOffTopic(text); !res.Passed {
		metrics.RecordGuardrail("input", "rejected")
		return res
	}

	sanitized := g.SanitizeInput(text)
	if sanitized != text {
		metrics.RecordGuardrail("input", "sanitized")
		return Pass().WithSanitized(sanitized)
	}
	metrics.RecordGuardrail("input", "passed")
	return Pass()
}
