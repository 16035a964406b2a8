package completion

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var embeddedPrices []byte

// Price is the cost of one million tokens in each direction.
type Price struct {
	Input  float64 `yaml:"input" json:"input_per_million"`
	Output float64 `yaml:"output" json:"output_per_million"`
}

// PriceTable maps model identifiers to prices. It is read-only after
// construction.
type PriceTable struct {
	prices map[string]Price
}

// DefaultPrices returns the embedded table.
func DefaultPrices() *PriceTable {
	t, err := ParsePrices(embeddedPrices)
	if err != nil {
		panic(fmt.Sprintf("completion: embedded pricing invalid: %v", err))
	}
	return t
}

func ParsePrices(data []byte) (*PriceTable, error) {
	prices := map[string]Price{}
	if err := yaml.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("parse pricing: %w", err)
	}
	for model, p := range prices {
		if p.Input < 0 || p.Output < 0 {
			return nil, fmt.Errorf("pricing for %s is negative", model)
		}
	}
	return &PriceTable{prices: prices}, nil
}

// LoadPrices reads a YAML override and layers it over the embedded table.
func LoadPrices(path string) (*PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	override, err := ParsePrices(data)
	if err != nil {
		return nil, err
	}
	merged := DefaultPrices()
	for model, p := range override.prices {
		merged.prices[model] = p
	}
	return merged, nil
}

func (t *PriceTable) Lookup(model string) (Price, bool) {
	p, ok := t.prices[model]
	return p, ok
}

// Cost prices a call. Unknown models cost nothing and report false.
func (t *PriceTable) Cost(model string, inputTokens, outputTokens int) (float64, bool) {
	p, ok := t.prices[model]
	if !ok {
		return 0, false
	}
	return float64(inputTokens)/1e6*p.Input + float64(outputTokens)/1e6*p.Output, true
}

func (t *PriceTable) Models() []string {
	models := make([]string, 0, len(t.prices))
	for m := range t.prices {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
