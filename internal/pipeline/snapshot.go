package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/redisx"
)

type StageMetrics struct {
	Stage       Stage           `json:"stage"`
	Label       string          `json:"label"`
	Color       string          `json:"color"`
	Probability int             `json:"probability"`
	Count       int             `json:"count"`
	TotalValue  decimal.Decimal `json:"total_value"`
	AvgValue    decimal.Decimal `json:"avg_value"`
	AvgAgeDays  float64         `json:"avg_age_days"`
}

type Opportunity struct {
	OrderID  string          `json:"order_id"`
	Number   string          `json:"number"`
	ClientID string          `json:"client_id"`
	Stage    Stage           `json:"stage"`
	Value    decimal.Decimal `json:"value"`
}

type Activity struct {
	OrderID   string        `json:"order_id"`
	Number    string        `json:"number"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Snapshot struct {
	TenantID string         `json:"tenant_id"`
	TakenAt  time.Time      `json:"taken_at"`
	Stages   []StageMetrics `json:"stages"`

	// Overall numbers; canceled orders are excluded from open totals.
	OpenCount           int             `json:"open_count"`
	OpenTotal           decimal.Decimal `json:"open_total"`
	WeightedProbability float64         `json:"weighted_probability"`
	TopOpportunities    []Opportunity   `json:"top_opportunities"`
	RecentActivity      []Activity      `json:"recent_activity"`
}

// Lister is satisfied by the order engine.
type Lister interface {
	ListOrders(ctx context.Context, tenant string) ([]orders.Order, error)
}

type Service struct {
	Orders Lister
	Redis  *redis.Client
	TopN   int
	Log    *zap.Logger
}

// Snapshot serves the funnel from a short-lived redis cache; pure
// aggregation on miss.
func (s *Service) Snapshot(ctx context.Context, tenant string) (*Snapshot, error) {
	key := fmt.Sprintf(redisx.KeyPipelineSnapshot, tenant)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var snap Snapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
		}
	}

	os, err := s.Orders.ListOrders(ctx, tenant)
	if err != nil {
		return nil, err
	}
	snap := Build(tenant, os, time.Now().UTC(), s.TopN)

	if s.Redis != nil {
		if b, err := json.Marshal(snap); err == nil {
			if err := s.Redis.Set(ctx, key, b, redisx.TTLPipelineSnapshot).Err(); err != nil {
				s.Log.Warn("pipeline cache write failed", zap.Error(err))
			}
		}
	}
	return snap, nil
}

// Build computes the funnel over committed orders.
func Build(tenant string, os []orders.Order, now time.Time, topN int) *Snapshot {
	if topN <= 0 {
		topN = 5
	}
	type acc struct {
		count int
		total decimal.Decimal
		age   float64
	}
	accs := map[Stage]*acc{}
	for _, st := range stageOrder {
		accs[st] = &acc{total: decimal.Zero}
	}

	snap := &Snapshot{
		TenantID:  tenant,
		TakenAt:   now,
		OpenTotal: decimal.Zero,
	}

	weighted := decimal.Zero
	var opps []Opportunity
	for i := range os {
		o := &os[i]
		st := StageFor(o.Status)
		a := accs[st]
		a.count++
		a.total = a.total.Add(o.Total)
		a.age += now.Sub(o.CreatedAt).Hours() / 24

		snap.RecentActivity = append(snap.RecentActivity, Activity{
			OrderID: o.ID, Number: o.Number, Status: o.Status, UpdatedAt: o.UpdatedAt,
		})

		if o.Status == orders.StatusCanceled {
			continue
		}
		snap.OpenCount++
		snap.OpenTotal = snap.OpenTotal.Add(o.Total)
		weighted = weighted.Add(o.Total.Mul(decimal.NewFromInt(int64(InfoFor(st).Probability))))
		opps = append(opps, Opportunity{
			OrderID: o.ID, Number: o.Number, ClientID: o.ClientID, Stage: st, Value: o.Total,
		})
	}

	for _, st := range stageOrder {
		a := accs[st]
		m := StageMetrics{
			Stage:       st,
			Label:       InfoFor(st).Label,
			Color:       InfoFor(st).Color,
			Probability: InfoFor(st).Probability,
			Count:       a.count,
			TotalValue:  a.total,
			AvgValue:    decimal.Zero,
		}
		if a.count > 0 {
			m.AvgValue = a.total.Div(decimal.NewFromInt(int64(a.count))).Round(2)
			m.AvgAgeDays = a.age / float64(a.count)
		}
		snap.Stages = append(snap.Stages, m)
	}

	if snap.OpenTotal.IsPositive() {
		p, _ := weighted.Div(snap.OpenTotal).Float64()
		snap.WeightedProbability = p
	}

	sort.Slice(opps, func(i, j int) bool { return opps[i].Value.GreaterThan(opps[j].Value) })
	if len(opps) > topN {
		opps = opps[:topN]
	}
	snap.TopOpportunities = opps

	sort.Slice(snap.RecentActivity, func(i, j int) bool {
		return snap.RecentActivity[i].UpdatedAt.After(snap.RecentActivity[j].UpdatedAt)
	})
	if len(snap.RecentActivity) > 10 {
		snap.RecentActivity = snap.RecentActivity[:10]
	}
	return snap
}
