package assessor

import (
	"strings"

	"github.com/spf13/cast"
)

// TRL is a technology readiness tier, ordered from least to most mature.
type TRL string

const (
	TRLConcept               TRL = "Concept"
	TRLPrototypeEarly        TRL = "Prototype:Early"
	TRLPrototypeDemonstrated TRL = "Prototype:Demonstrated"
	TRLPrototypeAdvanced     TRL = "Prototype:Advanced"
	TRLMarketReady           TRL = "Market-ready"
)

var TRLTiers = []TRL{TRLConcept, TRLPrototypeEarly, TRLPrototypeDemonstrated, TRLPrototypeAdvanced, TRLMarketReady}

// Rank is the tier's position on the scale, 0 for Concept.
func (t TRL) Rank() int {
	for i, tier := range TRLTiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Evaluated in order; the first match wins.
var trlRules = []struct {
	words []string
	tier  TRL
}{
	{[]string{"market", "ready"}, TRLMarketReady},
	{[]string{"advanced"}, TRLPrototypeAdvanced},
	{[]string{"demonstrated"}, TRLPrototypeDemonstrated},
	{[]string{"early", "proto"}, TRLPrototypeEarly},
}

// MatchTRL maps free text from a model onto a tier. Exact names match
// case-insensitively; otherwise keyword rules apply and Concept is the
// fallback.
func MatchTRL(v any) TRL {
	raw := strings.ToLower(strings.TrimSpace(cast.ToString(v)))
	if raw == "" {
		return TRLConcept
	}
	for _, tier := range TRLTiers {
		if strings.ToLower(string(tier)) == raw {
			return tier
		}
	}
	for _, rule := range trlRules {
		for _, w := range rule.words {
			if strings.Contains(raw, w) {
				return rule.tier
			}
		}
	}
	return TRLConcept
}
