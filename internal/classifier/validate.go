package classifier

import (
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
	"github.com/joelkehle/techtransfer-enrich/internal/taxonomy"
)

// validate never trusts the model's labels: the pair is resolved against
// the taxonomy and confidence is clamped.
func validate(tax *taxonomy.Taxonomy, obj map[string]any) Result {
	m := record.Metadata(obj)
	field, _, _ := m.String("top_field", "topField", "field")
	sub, _, _ := m.String("subfield", "sub_field", "subField")
	reasoning, _, _ := m.String("reasoning")
	conf, _, _ := m.Lookup("confidence")

	field, sub = tax.Resolve(field, sub)
	return Result{
		TopField:   field,
		Subfield:   sub,
		Confidence: completion.UnitInterval(conf),
		Reasoning:  reasoning,
	}
}
