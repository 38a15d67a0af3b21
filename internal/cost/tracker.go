// Package cost records vision-model usage against a pricing table.
package cost

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/observability"
)

// Tracker is append-only. Summaries are recomputed from the entry log, so the
// total always equals the sum of the entries.
type Tracker struct {
	mu        sync.RWMutex
	overrides map[string]schemas.Pricing
	entries   []schemas.CostEntry
	now       func() time.Time
	logger    *zap.Logger
}

// NewTracker creates a tracker with optional per-provider pricing overrides.
func NewTracker(overrides map[string]schemas.Pricing, logger *zap.Logger) *Tracker {
	t := &Tracker{
		overrides: make(map[string]schemas.Pricing, len(overrides)),
		now:       time.Now,
		logger:    logger.Named("cost"),
	}
	for k, v := range overrides {
		t.overrides[providerKey(k)] = v
	}
	return t
}

// GetPricing resolves overrides first, then the built-in table, then the
// default entry.
func (t *Tracker) GetPricing(provider string) schemas.Pricing {
	key := providerKey(provider)
	t.mu.RLock()
	p, ok := t.overrides[key]
	t.mu.RUnlock()
	if ok {
		return p
	}
	if p, ok := defaultPricing[key]; ok {
		return p
	}
	return defaultPricing[DefaultProvider]
}

// SetPricing installs an override. Overrides survive Reset.
func (t *Tracker) SetPricing(provider string, p schemas.Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[providerKey(provider)] = p
}

// Track prices one call and appends it to the log.
func (t *Tracker) Track(u schemas.TokenUsage) schemas.CostEntry {
	images := 1
	if u.Images != nil {
		images = *u.Images
	}
	entry := schemas.CostEntry{
		Provider:     u.Provider,
		Model:        u.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		Images:       images,
		CostUSD:      Compute(t.GetPricing(u.Provider), u.InputTokens, u.OutputTokens, images),
		TimestampMs:  t.now().UnixMilli(),
		Operation:    u.Operation,
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	observability.VLMCostUSD.WithLabelValues(providerKey(u.Provider)).Add(entry.CostUSD)
	t.logger.Info("Vision call tracked.",
		zap.String("provider", entry.Provider),
		zap.String("model", entry.Model),
		zap.String("operation", entry.Operation),
		zap.Int("input_tokens", entry.InputTokens),
		zap.Int("output_tokens", entry.OutputTokens),
		zap.Float64("cost_usd", entry.CostUSD),
	)
	return entry
}

// Summary aggregates the current log.
func (t *Tracker) Summary() schemas.CostSummary {
	t.mu.RLock()
	entries := make([]schemas.CostEntry, len(t.entries))
	copy(entries, t.entries)
	t.mu.RUnlock()

	s := schemas.CostSummary{
		TotalCalls:  len(entries),
		ByProvider:  map[string]schemas.CostBucket{},
		ByOperation: map[string]schemas.CostBucket{},
		Entries:     entries,
	}
	for _, e := range entries {
		s.TotalCost += e.CostUSD
		add(s.ByProvider, providerKey(e.Provider), e.CostUSD)
		add(s.ByOperation, e.Operation, e.CostUSD)
	}
	return s
}

func add(m map[string]schemas.CostBucket, key string, c float64) {
	b := m[key]
	b.Cost += c
	b.Calls++
	m[key] = b
}

// TotalCost is the sum of every tracked entry.
func (t *Tracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, e := range t.entries {
		total += e.CostUSD
	}
	return total
}

// Entries returns a copy of the log.
func (t *Tracker) Entries() []schemas.CostEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schemas.CostEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Reset clears the log. Pricing overrides are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
