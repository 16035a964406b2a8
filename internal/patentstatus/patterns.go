package patentstatus

import (
	"fmt"
	"regexp"
	"strings"
)

// Jurisdiction codes must not be glued to a preceding letter, so that a
// path like "/campus1234567" is not read as a US number.
var urlNumberPatterns = []struct {
	jurisdiction string
	re           *regexp.Regexp
}{
	{"US", regexp.MustCompile(`(?i)(?:^|[^a-z])(US\s*\d{7,10})`)},
	{"US", regexp.MustCompile(`(?i)(?:^|[^a-z])(US\s*20\d{2}/\d{6,7})`)},
	{"WO", regexp.MustCompile(`(?i)(?:^|[^a-z])(WO\s*\d{4}/\d+)`)},
	{"EP", regexp.MustCompile(`(?i)(?:^|[^a-z])(EP\s*\d+)`)},
	{"JP", regexp.MustCompile(`(?i)(?:^|[^a-z])(JP\s*\d+)`)},
	{"CN", regexp.MustCompile(`(?i)(?:^|[^a-z])(CN\s*\d+)`)},
	{"generic", regexp.MustCompile(`(?i)/patents?/(\d{7,10})`)},
}

func fromURLNumber(url string) (Result, bool) {
	if url == "" {
		return Result{}, false
	}
	for _, p := range urlNumberPatterns {
		if sub := p.re.FindStringSubmatch(url); sub != nil {
			details := fmt.Sprintf("Patent number in URL: %s (%s)", sub[1], p.jurisdiction)
			return found(Granted, SourceURLPatentNumber, details), true
		}
	}
	return Result{}, false
}

type keywordRule struct {
	label string
	re    *regexp.Regexp
}

func keywords(pairs ...string) []keywordRule {
	rules := make([]keywordRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, keywordRule{label: pairs[i], re: regexp.MustCompile(`(?i)` + pairs[i+1])})
	}
	return rules
}

// Families run most specific first; pending is the loosest and goes last.
var textFamilies = []struct {
	status Status
	rules  []keywordRule
}{
	{Granted, keywords(
		"patent issued", `\bpatent\s+issued\b`,
		"patent granted", `\bpatent\s+granted\b`,
		"granted patent", `\bgranted\s+patent\b`,
		"issued patent", `\bissued\s+patent\b`,
		"patented", `\bpatented\b`,
		"US patent number", `\bUS\s*\d{7,10}\b`,
		"U.S. Patent No.", `\bU\.S\.\s*patent\s+no\.?\s*[\d,]{7,}`,
	)},
	{Expired, keywords(
		"patent expired", `\bpatent\s+expired\b`,
		"expired patent", `\bexpired\s+patent\b`,
		"patent has expired", `\bpatent\s+has\s+expired\b`,
		"patent lapsed", `\bpatent\s+(has\s+)?lapsed\b`,
	)},
	{Provisional, keywords(
		"provisional patent", `\bprovisional\s+patent\b`,
		"provisional application", `\bprovisional\s+application\b`,
		"provisionally patented", `\bprovisionall?y\s+patented\b`,
	)},
	{Filed, keywords(
		"PCT filed", `\bpct\s+filed\b`,
		"filed PCT", `\bfiled\s+pct\b`,
		"PCT application", `\bpct\s+application\b`,
		"international application", `\binternational\s+application\b`,
		"patent application filed", `\bpatent\s+application\s+filed\b`,
		"application filed", `\bapplication\s+filed\b`,
	)},
	{Pending, keywords(
		"patent pending", `\bpatent[\s-]+pending\b`,
		"pending patent", `\bpending\s+patent\b`,
		"awaiting patent", `\bawaiting\s+patent\b`,
	)},
}

func fromText(title, description string) (Result, bool) {
	text := strings.TrimSpace(title + " " + description)
	if text == "" {
		return Result{}, false
	}
	for _, family := range textFamilies {
		for _, rule := range family.rules {
			if rule.re.MatchString(text) {
				return found(family.status, SourceTextExplicit, "Matched text pattern: "+rule.label), true
			}
		}
	}
	return Result{}, false
}

func fromURLPath(url string) (Result, bool) {
	lower := strings.ToLower(url)
	if strings.Contains(lower, "/patent/") || strings.Contains(lower, "/patents/") {
		return found(Granted, SourceURLPath, "URL contains /patent/ path"), true
	}
	return Result{}, false
}
