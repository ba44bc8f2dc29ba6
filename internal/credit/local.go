package credit

import (
	"context"

	"github.com/shopspring/decimal"
)

// ClientCredit supplies the client's credit standing; the orders store
// implements it.
type ClientCredit interface {
	ClientCredit(ctx context.Context, tenant, clientID string) (limit decimal.Decimal, blocked bool, err error)
}

// LimitEvaluator is the in-process fallback used when no external evaluator
// is configured: hard-block flagged clients, send orders above the client's
// credit limit to manual approval, allow the rest.
type LimitEvaluator struct {
	Clients ClientCredit
}

func (e *LimitEvaluator) Evaluate(ctx context.Context, tenant, clientID string, amount decimal.Decimal) (Decision, error) {
	limit, blocked, err := e.Clients.ClientCredit(ctx, tenant, clientID)
	if err != nil {
		return Decision{}, err
	}
	switch {
	case blocked:
		return FromAction(true, ActionBloqueio, "client is blocked"), nil
	case limit.IsPositive() && amount.GreaterThan(limit):
		return FromAction(false, ActionAlcada, "amount exceeds credit limit"), nil
	default:
		return FromAction(false, ActionNone, ""), nil
	}
}
