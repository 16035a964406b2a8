package patentstatus

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

var (
	statusListKeys   = []string{"patentStatuses", "patent_statuses"}
	statusStringKeys = []string{"patent_status", "patentStatus", "ip_status", "ipStatus"}
	numberKeys       = []string{"patent_numbers", "patentNumbers", "ip_number", "ipNumber"}
	publicationsKeys = []string{"publications"}
	flagKeys         = []string{"patent", "has_patent", "hasPatent"}
)

// fromMetadata walks the structured metadata fields in priority order and
// returns the first non-unknown status.
func fromMetadata(m record.Metadata) (Result, bool) {
	if len(m) == 0 {
		return Result{}, false
	}
	checks := []func(record.Metadata) (Result, bool){
		fromStatusList,
		fromStatusString,
		fromNumbers,
		fromPublications,
		fromFlag,
	}
	for _, check := range checks {
		if r, ok := check(m); ok {
			return r, true
		}
	}
	return Result{}, false
}

func fromStatusList(m record.Metadata) (Result, bool) {
	items, key, ok := m.List(statusListKeys...)
	if !ok {
		return Result{}, false
	}
	best, bestText := Unknown, ""
	for _, item := range items {
		text := statusEntryText(item)
		st := Normalize(text)
		if st.Priority() > best.Priority() {
			best, bestText = st, text
		}
	}
	if best == Unknown {
		return Result{}, false
	}
	return found(best, SourceAPIData, metadataDetails(key, bestText)), true
}

func statusEntryText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		if s, _, ok := record.Metadata(v).String("name", "status"); ok {
			return s
		}
	}
	return ""
}

func fromStatusString(m record.Metadata) (Result, bool) {
	for _, key := range statusStringKeys {
		text, _, ok := m.String(key)
		if !ok {
			continue
		}
		if st := Normalize(text); st != Unknown {
			return found(st, SourceAPIData, metadataDetails(key, text)), true
		}
	}
	return Result{}, false
}

func fromNumbers(m record.Metadata) (Result, bool) {
	for _, key := range numberKeys {
		if m.Has(key) {
			return found(Granted, SourceAPIData, metadataDetails(key, record.Format(m[key]))), true
		}
	}
	return Result{}, false
}

func fromFlag(m record.Metadata) (Result, bool) {
	for _, key := range flagKeys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			if t {
				return found(Granted, SourceAPIData, metadataDetails(key, "true")), true
			}
		case string:
			if st := Normalize(t); st != Unknown {
				return found(st, SourceAPIData, metadataDetails(key, t)), true
			}
		}
	}
	return Result{}, false
}

func metadataDetails(key, value string) string {
	return fmt.Sprintf("Structured metadata: %s=%s", key, value)
}

var (
	htmlTagRe        = regexp.MustCompile(`<[^>]+>`)
	issuedPatentRe   = regexp.MustCompile(`(?i)issued\s+(?:us\s+)?patent\s+(?:no\.?\s*)?[\d,]+`)
	usNumberRe       = regexp.MustCompile(`(?i)\bUS\s*(?:Patent\s*)?(?:No\.?\s*)?(\d{1,3}(?:,\d{3})+|\d{7,})`)
	provisionalPubRe = regexp.MustCompile(`(?i)provisional\s+patent\s+application`)
	filedPubRe       = regexp.MustCompile(`(?i)patent\s+filed|\bpct\b`)
)

// fromPublications reads the publications blob some portals attach to a
// listing. Granted numbers win over published applications.
func fromPublications(m record.Metadata) (Result, bool) {
	raw, _, ok := m.Lookup(publicationsKeys...)
	if !ok {
		return Result{}, false
	}
	html, err := cast.ToStringE(raw)
	if err != nil {
		html = record.Format(raw)
	}
	text := strings.Join(strings.Fields(htmlTagRe.ReplaceAllString(html, " ")), " ")
	if text == "" {
		return Result{}, false
	}

	if match := issuedPatentRe.FindString(text); match != "" {
		return found(Granted, SourceAPIData, "Publications: "+match), true
	}

	var granted, applications []string
	for _, sub := range usNumberRe.FindAllStringSubmatch(text, -1) {
		digits := strings.ReplaceAll(sub[1], ",", "")
		switch {
		case strings.HasPrefix(digits, "202") && len(digits) >= 10:
			applications = append(applications, sub[1])
		case len(digits) >= 7:
			granted = append(granted, sub[1])
		}
	}
	if len(granted) > 0 {
		return found(Granted, SourceAPIData, "Publications: US "+strings.Join(firstN(granted, 3), ", ")), true
	}
	if len(applications) > 0 {
		return found(Pending, SourceAPIData, "Publications: US application "+strings.Join(firstN(applications, 3), ", ")), true
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "patent pending"):
		return found(Pending, SourceAPIData, "Publications: patent pending"), true
	case provisionalPubRe.MatchString(text):
		return found(Provisional, SourceAPIData, "Publications: provisional patent application"), true
	case filedPubRe.MatchString(text):
		return found(Filed, SourceAPIData, "Publications: patent filed or PCT"), true
	}
	return Result{}, false
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
