package vision

import (
	"encoding/json"
	"regexp"
	"strings"
)

// strategy is one way of pulling a JSON object out of a vision
// model's free-form prose. Strategies run in order; the next one only
// runs if the previous returned an error or failed to unmarshal.
type strategy func(text string) (decisionRaw, error)

var strategies = []strategy{
	extractJSONLinePrefix,
	extractFencedCodeBlock,
	extractBalancedBraces,
	extractRegexFragment,
}

// extractDecision runs the ordered strategies and returns the first
// one that produces a parseable decisionRaw.
func extractDecision(text string) (decisionRaw, bool) {
	for _, s := range strategies {
		d, err := s(text)
		if err == nil {
			return d, true
		}
	}
	return decisionRaw{}, false
}

// extractJSONLinePrefix looks for a line starting with "JSON:" and
// parses everything after the prefix.
func extractJSONLinePrefix(text string) (decisionRaw, error) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(strings.ToUpper(trimmed), "JSON:"); idx == 0 {
			body := strings.TrimSpace(trimmed[len("JSON:"):])
			var d decisionRaw
			if err := json.Unmarshal([]byte(body), &d); err == nil {
				return d, nil
			}
		}
	}
	return decisionRaw{}, errNoMatch
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// extractFencedCodeBlock parses the body of the first fenced code
// block, whether tagged ```json or bare ```.
func extractFencedCodeBlock(text string) (decisionRaw, error) {
	m := fencedBlockRe.FindStringSubmatch(text)
	if m == nil {
		return decisionRaw{}, errNoMatch
	}
	var d decisionRaw
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &d); err != nil {
		return decisionRaw{}, err
	}
	return d, nil
}

// extractBalancedBraces scans for the longest balanced {...} substring
// and tries to parse it.
func extractBalancedBraces(text string) (decisionRaw, error) {
	best := ""
	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
				}
			}
		}
	}
	if best == "" {
		return decisionRaw{}, errNoMatch
	}
	var d decisionRaw
	if err := json.Unmarshal([]byte(best), &d); err != nil {
		return decisionRaw{}, err
	}
	return d, nil
}

// regexFragmentRe is a best-effort fallback: it does not tolerate
// nested braces inside the fragment, a known limitation of this
// strategy (documented, not fixed, since strategies 1-3 cover nested
// cases already).
var regexFragmentRe = regexp.MustCompile(`\{[^{}]*"risk[^{}]*\}`)

func extractRegexFragment(text string) (decisionRaw, error) {
	m := regexFragmentRe.FindString(text)
	if m == "" {
		return decisionRaw{}, errNoMatch
	}
	var d decisionRaw
	if err := json.Unmarshal([]byte(m), &d); err != nil {
		return decisionRaw{}, err
	}
	return d, nil
}
