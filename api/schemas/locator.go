package schemas

// Strategy names how the value of a Locator is interpreted.
type Strategy string

const (
	StrategyReference Strategy = "ref"
	StrategyCSS       Strategy = "css"
	StrategyXPath     Strategy = "xpath"
	StrategyText      Strategy = "text"
	StrategyRole      Strategy = "role"
	StrategyTestID    Strategy = "testid"
	StrategyVisual    Strategy = "visual"
)

// Locator is the canonical form of every element query accepted by the engine.
// It is built once per call and never mutated.
type Locator struct {
	Strategy Strategy `json:"strategy"`
	Value    string   `json:"value"`
}

// String renders the locator as strategy=value for logs and error messages.
func (l Locator) String() string {
	return string(l.Strategy) + "=" + l.Value
}

// SelectorKind is the query language a structural backend understands.
type SelectorKind string

const (
	SelectorCSS   SelectorKind = "css"
	SelectorXPath SelectorKind = "xpath"
	SelectorRole  SelectorKind = "role"
)

// Selector is the translated form of a Locator handed to the structural backend.
type Selector struct {
	Kind SelectorKind `json:"kind"`
	// Expr is the CSS/XPath expression, or the ARIA role for SelectorRole.
	Expr string `json:"expr"`
	// Name optionally narrows a role query to an accessible name.
	Name string `json:"name,omitempty"`
	// Nth selects the match index when more than one element matches.
	Nth int `json:"nth,omitempty"`
}
