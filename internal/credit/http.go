package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// HTTPEvaluator calls a remote credit-risk service. Note the engine invokes
// this while holding product row locks, so the client timeout is the upper
// bound on how long those locks can be pinned by a slow evaluator.
type HTTPEvaluator struct {
	client *resty.Client
}

type evaluateRequest struct {
	TenantID string `json:"tenant_id"`
	ClientID string `json:"client_id"`
	Amount   string `json:"amount"`
}

type evaluateResponse struct {
	Blocked bool   `json:"blocked"`
	Action  Action `json:"action"`
	Message string `json:"message"`
}

func NewHTTPEvaluator(baseURL string, timeout time.Duration) *HTTPEvaluator {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	return &HTTPEvaluator{client: c}
}

func (e *HTTPEvaluator) Evaluate(ctx context.Context, tenant, clientID string, amount decimal.Decimal) (Decision, error) {
	var out evaluateResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(evaluateRequest{TenantID: tenant, ClientID: clientID, Amount: amount.String()}).
		SetResult(&out).
		Post("/evaluate")
	if err != nil {
		return Decision{}, fmt.Errorf("credit service: %w", err)
	}
	if resp.IsError() {
		return Decision{}, fmt.Errorf("credit service: status %d", resp.StatusCode())
	}
	return FromAction(out.Blocked, out.Action, out.Message), nil
}
