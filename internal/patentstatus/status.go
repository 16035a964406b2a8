// Package patentstatus derives an intellectual-property status for a
// technology record from its metadata, URL and free text.
package patentstatus

import (
	"regexp"
	"strings"
)

// Status is the normalized patent state of a technology.
type Status string

const (
	Unknown     Status = "unknown"
	Pending     Status = "pending"
	Provisional Status = "provisional"
	Filed       Status = "filed"
	Granted     Status = "granted"
	Expired     Status = "expired"
)

// Statuses lists every status, strongest first.
var Statuses = []Status{Granted, Expired, Pending, Provisional, Filed, Unknown}

var priority = map[Status]int{
	Granted:     5,
	Expired:     4,
	Pending:     3,
	Provisional: 2,
	Filed:       1,
	Unknown:     0,
}

// Priority ranks statuses when several signals in one source disagree.
func (s Status) Priority() int {
	return priority[s]
}

// Source names the detection rule that produced a result.
type Source string

const (
	SourceAPIData         Source = "api_data"
	SourceURLPatentNumber Source = "url_patent_number"
	SourceTextExplicit    Source = "text_explicit"
	SourceTextImplicit    Source = "text_implicit"
	SourceURLPath         Source = "url_path"
	SourceNone            Source = "none"
)

// Confidence is the fixed confidence attached to results from s.
func (s Source) Confidence() float64 {
	switch s {
	case SourceAPIData:
		return 0.95
	case SourceURLPatentNumber:
		return 0.90
	case SourceTextExplicit:
		return 0.85
	case SourceTextImplicit:
		return 0.70
	case SourceURLPath:
		return 0.60
	}
	return 0
}

// Result is the outcome of one detection.
type Result struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Details    string  `json:"details,omitempty"`
}

func found(status Status, source Source, details string) Result {
	return Result{Status: status, Confidence: source.Confidence(), Source: source, Details: details}
}

func none() Result {
	return Result{Status: Unknown, Confidence: 0, Source: SourceNone, Details: "No patent information detected"}
}

var exactStatuses = map[string]Status{
	"granted":            Granted,
	"issued":             Granted,
	"patented":           Granted,
	"patent issued":      Granted,
	"patent granted":     Granted,
	"pending":            Pending,
	"patent pending":     Pending,
	"provisional":        Provisional,
	"provisional patent": Provisional,
	"filed":              Filed,
	"application filed":  Filed,
	"expired":            Expired,
	"lapsed":             Expired,
}

// Order matters: the first matching rule wins.
var statusRules = []struct {
	re     *regexp.Regexp
	status Status
}{
	{regexp.MustCompile(`\b(issued|granted|patented)\b`), Granted},
	{regexp.MustCompile(`\bpending\b`), Pending},
	{regexp.MustCompile(`\bprovisional\b`), Provisional},
	{regexp.MustCompile(`\bfiled\b`), Filed},
	{regexp.MustCompile(`\b(expired|lapsed)\b`), Expired},
}

// Normalize maps free-form status text such as "Patent Issued" or
// "US Provisional Filed" onto a Status.
func Normalize(text string) Status {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return Unknown
	}
	if st, ok := exactStatuses[s]; ok {
		return st
	}
	for _, r := range statusRules {
		if r.re.MatchString(s) {
			return r.status
		}
	}
	return Unknown
}
