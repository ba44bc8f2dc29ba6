// Package credit wraps the credit-risk collaborator. Given client + amount
// it answers allow, soft-block (manual approval, "alcada") or hard-block
// ("bloqueio_total").
package credit

import (
	"context"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomePendingApproval Outcome = "pendingApproval"
	OutcomeBlocked         Outcome = "blocked"
)

// Action mirrors the collaborator's wire vocabulary.
type Action string

const (
	ActionNone     Action = "none"
	ActionAlcada   Action = "alcada"
	ActionBloqueio Action = "bloqueio_total"
)

// Decision is transient; it is never persisted.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Action  Action  `json:"action"`
	Message string  `json:"message,omitempty"`
}

type Evaluator interface {
	Evaluate(ctx context.Context, tenant, clientID string, amount decimal.Decimal) (Decision, error)
}

// FromAction maps the collaborator's {blocked, action} pair onto an outcome.
func FromAction(blocked bool, action Action, message string) Decision {
	d := Decision{Action: action, Message: message}
	switch {
	case blocked || action == ActionBloqueio:
		d.Outcome = OutcomeBlocked
	case action == ActionAlcada:
		d.Outcome = OutcomePendingApproval
	default:
		d.Outcome = OutcomeAllowed
	}
	return d
}
