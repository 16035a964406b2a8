package patentstatus

import "github.com/joelkehle/techtransfer-enrich/internal/record"

// Detector reconciles patent signals into a single Status. It holds no
// state and is safe for concurrent use.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect tries each source in priority order and returns the first hit:
// structured metadata, a patent number in the URL, keywords in the title
// and description, then a /patent/ URL path. It never fails.
func (d *Detector) Detect(metadata record.Metadata, url, title, description string) Result {
	if r, ok := fromMetadata(metadata); ok {
		return r
	}
	if r, ok := fromURLNumber(url); ok {
		return r
	}
	if r, ok := fromText(title, description); ok {
		return r
	}
	if r, ok := fromURLPath(url); ok {
		return r
	}
	return none()
}

// DetectRecord runs Detect over a scraped record.
func (d *Detector) DetectRecord(r record.Record) Result {
	return d.Detect(r.Metadata, r.URL, r.Title, r.Description)
}

// Tally counts results per status. Every status is present in the map.
func Tally(results []Result) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
