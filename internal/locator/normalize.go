// Package locator turns the locator shorthands accepted at the API boundary
// into canonical schemas.Locator values, and translates those into the forms
// the structural backend and the vision model understand.
package locator

import (
	"strings"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

const (
	prefixRef    = "@"
	prefixXPath  = "//"
	prefixText   = "text="
	prefixRole   = "role="
	prefixTestID = "[data-testid="
)

// Normalize maps a shorthand string onto exactly one strategy. The prefix checks
// run in a fixed order and the first match wins; anything unrecognised is CSS.
func Normalize(input string) schemas.Locator {
	switch {
	case strings.HasPrefix(input, prefixRef):
		return schemas.Locator{Strategy: schemas.StrategyReference, Value: input[len(prefixRef):]}
	case strings.HasPrefix(input, prefixXPath):
		return schemas.Locator{Strategy: schemas.StrategyXPath, Value: input}
	case strings.HasPrefix(input, prefixText):
		return schemas.Locator{Strategy: schemas.StrategyText, Value: input[len(prefixText):]}
	case strings.HasPrefix(input, prefixRole):
		return schemas.Locator{Strategy: schemas.StrategyRole, Value: input[len(prefixRole):]}
	case strings.HasPrefix(input, prefixTestID):
		return schemas.Locator{Strategy: schemas.StrategyTestID, Value: testIDValue(input[len(prefixTestID):])}
	default:
		return schemas.Locator{Strategy: schemas.StrategyCSS, Value: input}
	}
}

// NormalizeLocator accepts an already structured locator. A locator with a
// known strategy is returned as is; one without a strategy is normalized from
// its value.
func NormalizeLocator(l schemas.Locator) schemas.Locator {
	if IsKnownStrategy(l.Strategy) {
		return l
	}
	return Normalize(l.Value)
}

// IsKnownStrategy reports whether s is one of the canonical strategies.
func IsKnownStrategy(s schemas.Strategy) bool {
	switch s {
	case schemas.StrategyReference, schemas.StrategyCSS, schemas.StrategyXPath,
		schemas.StrategyText, schemas.StrategyRole, schemas.StrategyTestID, schemas.StrategyVisual:
		return true
	}
	return false
}

// Visual builds a locator that is only ever resolved by the vision model.
func Visual(description string) schemas.Locator {
	return schemas.Locator{Strategy: schemas.StrategyVisual, Value: description}
}

// testIDValue extracts the attribute value from the tail of a
// [data-testid=...] shorthand, dropping the closing bracket and quotes.
func testIDValue(rest string) string {
	if i := strings.IndexByte(rest, ']'); i >= 0 {
		rest = rest[:i]
	}
	return unquote(strings.TrimSpace(rest))
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
