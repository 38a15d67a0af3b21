package schemas

// Pricing is expressed in USD per 1,000 tokens and per image.
type Pricing struct {
	InputTokenPrice  float64 `json:"inputTokenPrice" mapstructure:"input_token_price" yaml:"input_token_price"`
	OutputTokenPrice float64 `json:"outputTokenPrice" mapstructure:"output_token_price" yaml:"output_token_price"`
	ImagePrice       float64 `json:"imagePrice" mapstructure:"image_price" yaml:"image_price"`
}

// TokenUsage is what a vision call reports back for cost tracking.
type TokenUsage struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	// Images defaults to 1 when nil.
	Images    *int   `json:"images,omitempty"`
	Operation string `json:"operation"`
}

// CostEntry is one tracked vision-model call. Entries are never edited.
type CostEntry struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Images       int     `json:"images"`
	CostUSD      float64 `json:"costUsd"`
	TimestampMs  int64   `json:"timestampMs"`
	Operation    string  `json:"operation"`
}

// CostBucket aggregates calls under one key.
type CostBucket struct {
	Cost  float64 `json:"cost"`
	Calls int     `json:"calls"`
}

// CostSummary is recomputed from the entry log on every request.
type CostSummary struct {
	TotalCost   float64               `json:"totalCost"`
	TotalCalls  int                   `json:"totalCalls"`
	ByProvider  map[string]CostBucket `json:"byProvider"`
	ByOperation map[string]CostBucket `json:"byOperation"`
	Entries     []CostEntry           `json:"entries"`
}
