package cost

import (
	"strings"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// DefaultProvider is the pricing key used for providers missing from the table.
const DefaultProvider = "default"

// defaultPricing is USD per 1,000 tokens and per image.
var defaultPricing = map[string]schemas.Pricing{
	"anthropic":     {InputTokenPrice: 0.003, OutputTokenPrice: 0.015, ImagePrice: 0.0048},
	"openai":        {InputTokenPrice: 0.0025, OutputTokenPrice: 0.01, ImagePrice: 0.0019},
	"gemini":        {InputTokenPrice: 0.00125, OutputTokenPrice: 0.01, ImagePrice: 0.0003},
	DefaultProvider: {InputTokenPrice: 0.003, OutputTokenPrice: 0.015, ImagePrice: 0.0048},
}

// DefaultPricing returns a copy of the built-in table.
func DefaultPricing() map[string]schemas.Pricing {
	out := make(map[string]schemas.Pricing, len(defaultPricing))
	for k, v := range defaultPricing {
		out[k] = v
	}
	return out
}

func providerKey(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Compute prices one call. images is already defaulted by the caller.
func Compute(p schemas.Pricing, inputTokens, outputTokens, images int) float64 {
	return float64(inputTokens)/1000*p.InputTokenPrice +
		float64(outputTokens)/1000*p.OutputTokenPrice +
		float64(images)*p.ImagePrice
}
