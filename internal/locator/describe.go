package locator

import (
	"fmt"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// Describe renders a locator as the natural-language element description
// sent to the vision model.
func Describe(l schemas.Locator) string {
	switch l.Strategy {
	case schemas.StrategyText:
		return fmt.Sprintf("element with text %q", l.Value)
	case schemas.StrategyRole:
		return l.Value + " element"
	case schemas.StrategyVisual:
		return l.Value
	default:
		return "element matching " + l.Value
	}
}
