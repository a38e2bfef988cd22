// Package approval implements the authorization gate: GREEN intents pass
// without interaction, YELLOW and RED intents wait for an operator yes/no.
package approval

import (
	"context"

	"github.com/gzhole/netmon/internal/intent"
)

// State of one intent in the authorization state machine.
type State string

const (
	StateProposed            State = "PROPOSED"
	StateAutoAuthorized      State = "AUTO_AUTHORIZED"
	StatePendingConfirmation State = "PENDING_CONFIRMATION"
	StateAuthorized          State = "AUTHORIZED"
	StateRejected            State = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAutoAuthorized || s == StateAuthorized || s == StateRejected
}

// Allowed reports whether downstream stages may execute.
func (s State) Allowed() bool {
	return s == StateAutoAuthorized || s == StateAuthorized
}

type Result struct {
	Approved   bool
	UserAction string
}

// Prompt is what the operator is shown before deciding.
type Prompt struct {
	Action  string
	Target  string
	Value   string
	Risk    string
	Message string
}

// Confirmer blocks until the operator answers. Returning an error, or any
// answer that is not an approval, rejects the intent.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (Result, error)
}

// Decision is the gate's terminal outcome plus the path taken to reach it.
type Decision struct {
	State      State
	UserAction string
	Trace      []State
}

// Gate drives one intent at a time from Proposed to a terminal state.
type Gate struct {
	confirmer Confirmer
}

func NewGate(c Confirmer) *Gate {
	return &Gate{confirmer: c}
}

// Authorize returns a terminal decision for in. Only non-GREEN intents reach
// the confirmer; an unrecognised risk level is treated like RED.
func (g *Gate) Authorize(ctx context.Context, in intent.Intent) Decision {
	d := Decision{Trace: []State{StateProposed}}
	finish := func(s State, action string) Decision {
		d.State = s
		d.UserAction = action
		d.Trace = append(d.Trace, s)
		return d
	}

	if in.RiskLevel == intent.RiskGreen {
		return finish(StateAutoAuthorized, "auto_green")
	}

	d.Trace = append(d.Trace, StatePendingConfirmation)
	if g.confirmer == nil {
		return finish(StateRejected, "no_confirmer")
	}
	if err := ctx.Err(); err != nil {
		return finish(StateRejected, "cancelled")
	}

	res, err := g.confirmer.Confirm(ctx, Prompt{
		Action:  string(in.Action),
		Target:  in.TargetOrNone(),
		Value:   in.ValueOrNone(),
		Risk:    string(in.RiskLevel),
		Message: in.Message,
	})
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return finish(StateRejected, "cancelled")
		}
		return finish(StateRejected, "error_reading_input")
	case res.Approved:
		return finish(StateAuthorized, res.UserAction)
	default:
		return finish(StateRejected, res.UserAction)
	}
}
