// Package cost prices LLM usage and aggregates it per user.
package cost

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownModel is reported when a model has no entry in the price table.
var ErrUnknownModel = errors.New("model is not supported for pricing")

// Rate is the price of one million tokens, in USD.
type Rate struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// PriceTable maps a model name to its rates.
type PriceTable map[string]Rate

// DefaultPrices is the fixed table the service charges with.
var DefaultPrices = PriceTable{
	"claude-3-5-sonnet-20241022": {Prompt: 3, Completion: 15},
	"gpt-4o":                     {Prompt: 2.5, Completion: 10},
	"gpt-4o-mini":                {Prompt: 0.15, Completion: 0.6},
	"text-embedding-3-small":     {Prompt: 0.02, Completion: 0},
}

const tokensPerUnit = 1_000_000

// Calculate returns the USD cost of one call. An unknown model costs zero and
// returns ErrUnknownModel; no fallback rate is ever applied.
func (t PriceTable) Calculate(promptTokens, completionTokens int, model string) (float64, error) {
	rate, ok := t[model]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}
	return (rate.Prompt*float64(promptTokens) + rate.Completion*float64(completionTokens)) / tokensPerUnit, nil
}

// Models lists the priced models in name order.
func (t PriceTable) Models() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate prices a call against DefaultPrices.
func Calculate(promptTokens, completionTokens int, model string) (float64, error) {
	return DefaultPrices.Calculate(promptTokens, completionTokens, model)
}
