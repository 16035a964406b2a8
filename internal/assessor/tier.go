package assessor

import (
	"strings"

	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

// Tier controls how many categories are assessed for a record.
type Tier string

const (
	TierSkipped Tier = "skipped"
	TierLimited Tier = "limited"
	TierFull    Tier = "full"
)

// RichnessFields are the metadata keys whose presence signals enough
// source material for a full assessment.
var RichnessFields = []string{
	"applications",
	"advantages",
	"key_points",
	"development_stage",
	"publications",
	"market_opportunity",
}

// FullTierThreshold is the number of richness fields needed for TierFull.
const FullTierThreshold = 2

// Richness counts the richness fields present and non-empty in m.
func Richness(m record.Metadata) int {
	n := 0
	for _, f := range RichnessFields {
		if m.Has(f) {
			n++
		}
	}
	return n
}

// Select picks the tier before any external call is made.
func Select(description string, m record.Metadata) Tier {
	if strings.TrimSpace(description) == "" {
		return TierSkipped
	}
	if Richness(m) >= FullTierThreshold {
		return TierFull
	}
	return TierLimited
}
