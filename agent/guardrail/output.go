package guardrail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

const (
	ReasonEmptyOutput = "Empty output"
	ReasonOffDomain   = "Response contains content outside the stock trading platform domain"
	ReasonHarmfulCode = "Response contains potentially harmful code patterns"

	redactedValue = "[REDACTED]"
)

// sensitiveRule detects one kind of leak and knows how to redact it. Rules
// with a field name only match when the assigned value is not exactly a
// redaction placeholder, which keeps redaction idempotent.
type sensitiveRule struct {
	re          *regexp.Regexp
	description string
	replacement string
	field       string
}

var sensitiveRules = []sensitiveRule{
	{re: regexp.MustCompile(`\b[A-Z0-9]{20,}\b`), description: "Potential API key or token", replacement: "[REDACTED-TOKEN]"},
	{re: regexp.MustCompile(`(?i)\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), description: "Potential credit card number", replacement: "[REDACTED-CARD]"},
	{re: regexp.MustCompile(`(?i)\b\d{3}-\d{2}-\d{4}\b`), description: "Potential SSN", replacement: "[REDACTED-SSN]"},
	{re: regexp.MustCompile(`(?i)password\s*[:=]\s*(\S+)`), description: "Password exposure", field: "password"},
	{re: regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*(\S+)`), description: "API key exposure", field: "api_key"},
	{re: regexp.MustCompile(`(?i)secret\s*[:=]\s*(\S+)`), description: "Secret exposure", field: "secret"},
	{re: regexp.MustCompile(`(?i)token\s*[:=]\s*(\S+)`), description: "Token exposure", field: "token"},
}

func (r sensitiveRule) leaks(text string) bool {
	if r.field == "" {
		return r.re.MatchString(text)
	}
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if !isPlaceholder(m[1]) {
			return true
		}
	}
	return false
}

func (r sensitiveRule) redact(text string) string {
	if r.field == "" {
		return r.re.ReplaceAllString(text, r.replacement)
	}
	return r.re.ReplaceAllStringFunc(text, func(match string) string {
		sub := r.re.FindStringSubmatch(match)
		if len(sub) > 1 && isPlaceholder(sub[1]) {
			return match
		}
		return r.field + ": " + redactedValue
	})
}

// isPlaceholder matches whole placeholders only. A value like
// "[REDACTED-TOKEN]-rest" still carries the unredacted tail.
func isPlaceholder(value string) bool {
	switch value {
	case redactedValue, "[REDACTED-TOKEN]", "[REDACTED-CARD]", "[REDACTED-SSN]":
		return true
	}
	return false
}

var defaultOffDomainKeywords = []string{
	"hack", "exploit", "vulnerability", "malware", "virus",
	"illegal activity", "drug", "weapon", "violence",
	"generate code for", "write a script to", "execute command",
	"bypass security", "crack password", "unauthorized access",
}

var codePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?i)```(?:python|bash|sh|shell|javascript|js|sql)"),
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.`),
	regexp.MustCompile(`(?i)os\.system\s*\(`),
}

type OutputGuardrails struct {
	offDomain []string
}

func NewOutputGuardrails() *OutputGuardrails {
	return &OutputGuardrails{offDomain: defaultOffDomainKeywords}
}

// CheckSensitiveData fails on the first leak found and attaches the fully
// redacted text.
func (g *OutputGuardrails) CheckSensitiveData(text string) Result {
	for _, rule := range sensitiveRules {
		if rule.leaks(text) {
			log.Warn().Str("kind", rule.description).Msg("sensitive data detected in output")
			return Fail(fmt.Sprintf("Response contains potentially sensitive data: %s", rule.description)).
				WithSanitized(RedactSensitiveData(text))
		}
	}
	return Pass()
}

// RedactSensitiveData applies every rule in order.
func RedactSensitiveData(text string) string {
	out := text
	for _, rule := range sensitiveRules {
		out = rule.redact(out)
	}
	return out
}

func (g *OutputGuardrails) CheckDomainBoundary(text string) Result {
	lower := strings.ToLower(text)
	for _, keyword := range g.offDomain {
		if strings.Contains(lower, keyword) {
			log.Warn().Str("keyword", keyword).Msg("off-domain content detected")
			return Block(ReasonOffDomain)
		}
	}
	for _, re := range codePatterns {
		if re.MatchString(text) {
			log.Warn().Str("pattern", re.String()).Msg("code injection pattern detected")
			return Block(ReasonHarmfulCode)
		}
	}
	return Pass()
}

// ValidateOutput redacts leaks in place and then runs the domain check on
// the redacted text. Only the domain check can fail the call.
func (g *OutputGuardrails) ValidateOutput(text string) Result {
	if text == "" {
		metrics.RecordGuardrail("output", "rejected")
		return Fail(ReasonEmptyOutput)
	}

	working := text
	sensitive := g.CheckSensitiveData(text)
	sanitized, wasSanitized := sensitive.Sanitized()
	if !sensitive.Passed && wasSanitized {
		working = sanitized
		log.Info().Msg("output sanitized due to sensitive data detection")
	}

	if domain := g.CheckDomainBoundary(working); !domain.Passed && domain.Blocked {
		metrics.RecordGuardrail("output", "blocked")
		return Block(domain.Reason)
	}

	if wasSanitized {
		metrics.RecordGuardrail("output", "sanitized")
		return Pass().WithSanitized(working)
	}
	metrics.RecordGuardrail("output", "passed")
	return Pass()
}
