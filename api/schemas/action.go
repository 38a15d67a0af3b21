package schemas

// ActionKind names a user-facing action handled by the dispatcher.
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionDoubleClick ActionKind = "double-click"
	ActionRightClick  ActionKind = "right-click"
	ActionHover       ActionKind = "hover"
	ActionType        ActionKind = "type"
	ActionTypeSubmit  ActionKind = "type-submit"
	ActionFill        ActionKind = "fill"
	ActionClear       ActionKind = "clear"
	ActionPress       ActionKind = "press"
	ActionScroll      ActionKind = "scroll"
	ActionDrag        ActionKind = "drag"
	// ActionFocus is the element-addressed primitive used to direct keyboard
	// input when no pixel backend is available.
	ActionFocus ActionKind = "focus"
)

func (a ActionKind) String() string { return string(a) }

// ActionParams carries the per-action arguments. Unused fields are ignored.
type ActionParams struct {
	Text       string      `json:"text,omitempty"`
	Key        string      `json:"key,omitempty"`
	Button     MouseButton `json:"button,omitempty"`
	ClickCount int         `json:"clickCount,omitempty"`
	DeltaX     float64     `json:"deltaX,omitempty"`
	DeltaY     float64     `json:"deltaY,omitempty"`
	// Target is the drop location for ActionDrag.
	Target *Locator `json:"target,omitempty"`
	// To is the resolved drop handle, filled in by the dispatcher.
	To *ElementHandle `json:"-"`
}

// ActionStatus is the outcome class of one action invocation.
type ActionStatus string

const (
	StatusSuccess     ActionStatus = "success"
	StatusVLMFallback ActionStatus = "vlm_fallback"
	StatusNotFound    ActionStatus = "not_found"
	StatusFailed      ActionStatus = "failed"
)

func (s ActionStatus) String() string { return string(s) }

// ActionResult is produced exactly once per action invocation.
type ActionResult struct {
	Action     ActionKind   `json:"action"`
	Status     ActionStatus `json:"status"`
	DurationMs int64        `json:"durationMs"`
	UsedVLM    bool         `json:"usedVlm"`
	VLMCostUSD *float64     `json:"vlmCostUsd,omitempty"`
	Error      string       `json:"error,omitempty"`
	// Backend is the collaborator that executed the action, if any.
	Backend BackendKind `json:"backend,omitempty"`
}

// OK reports whether the action was executed.
func (r ActionResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusVLMFallback
}

// WaitState selects the condition WaitFor polls for.
type WaitState string

const (
	WaitVisible WaitState = "visible"
	WaitHidden  WaitState = "hidden"
)
