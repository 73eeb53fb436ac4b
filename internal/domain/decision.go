package domain

import "strings"

// Action is the oracle's trade recommendation.
type Action string

const (
	ActionBuyUp   Action = "BUY_UP"
	ActionBuyDown Action = "BUY_DOWN"
	ActionWait    Action = "WAIT"
)

// ParseAction normalizes s and reports whether it names a known action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuyUp, ActionBuyDown, ActionWait:
		return a, true
	default:
		return ActionWait, false
	}
}

// IsBuy reports whether the action places an order.
func (a Action) IsBuy() bool {
	return a == ActionBuyUp || a == ActionBuyDown
}

// Decision is the oracle's recommendation with a confidence in [0,1].
type Decision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// WaitDecision is the safe fallback whenever the oracle cannot answer.
func WaitDecision(reason string) Decision {
	return Decision{Action: ActionWait, Confidence: 0, Reasoning: reason}
}
