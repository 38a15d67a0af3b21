package schemas

// FindElementRequest asks a vision model to locate one element on a screenshot.
type FindElementRequest struct {
	// Screenshot is a base64 encoded PNG.
	Screenshot  string `json:"screenshot"`
	Description string `json:"description"`
}

// FindElementResult is the model's answer. Coordinates is nil when the
// element was not located.
type FindElementResult struct {
	Coordinates *Point     `json:"coordinates,omitempty"`
	Confidence  float64    `json:"confidence"`
	Reasoning   string     `json:"reasoning"`
	NotFound    bool       `json:"notFound"`
	Alternative string     `json:"alternative,omitempty"`
	Usage       TokenUsage `json:"usage"`
}

// NextActionRequest asks the model to propose the next step towards an instruction.
type NextActionRequest struct {
	Screenshot  string   `json:"screenshot"`
	Instruction string   `json:"instruction"`
	ActionSpace []string `json:"actionSpace"`
}

// NextActionResult is a proposed action.
type NextActionResult struct {
	ActionType   string         `json:"actionType"`
	ActionParams map[string]any `json:"actionParams"`
	Thought      string         `json:"thought"`
	Finished     bool           `json:"finished"`
	Usage        TokenUsage     `json:"usage"`
}

// AssertVisualRequest asks the model to judge an assertion about the screen.
type AssertVisualRequest struct {
	Screenshot string `json:"screenshot"`
	Assertion  string `json:"assertion"`
	Expected   string `json:"expected,omitempty"`
}

// AssertVisualResult is the model's verdict.
type AssertVisualResult struct {
	Passed      bool       `json:"passed"`
	Reasoning   string     `json:"reasoning"`
	Actual      string     `json:"actual"`
	Suggestions []string   `json:"suggestions,omitempty"`
	Usage       TokenUsage `json:"usage"`
}

// DefaultActionSpace is offered to NextAction when the caller passes none.
var DefaultActionSpace = []string{"click", "double-click", "right-click", "type", "press", "scroll", "drag", "hover", "wait", "finish"}
