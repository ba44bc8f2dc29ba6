// Package pipeline aggregates committed orders into sales-funnel metrics.
// Read-only: no locking, safe under arbitrary concurrency.
package pipeline

import (
	"github.com/brisaerp/order-engine/internal/orders"
)

type Stage string

const (
	StageProspecting  Stage = "prospecting"
	StageNegotiation  Stage = "negotiation"
	StageProposalSent Stage = "proposal_sent"
	StageWon          Stage = "won"
	StageLost         Stage = "lost"
)

type StageInfo struct {
	Label       string `json:"label"`
	Probability int    `json:"probability"` // fixed win-probability weight, percent
	Color       string `json:"color"`
}

// stageOrder fixes the display order of the five funnel stages.
var stageOrder = []Stage{StageProspecting, StageNegotiation, StageProposalSent, StageWon, StageLost}

var stageInfos = map[Stage]StageInfo{
	StageProspecting:  {Label: "Prospecting", Probability: 10, Color: "#9CA3AF"},
	StageNegotiation:  {Label: "Negotiation", Probability: 40, Color: "#3B82F6"},
	StageProposalSent: {Label: "Proposal sent", Probability: 70, Color: "#F59E0B"},
	StageWon:          {Label: "Won", Probability: 100, Color: "#10B981"},
	StageLost:         {Label: "Lost", Probability: 0, Color: "#EF4444"},
}

var statusStage = map[orders.Status]Stage{
	orders.StatusPending:    StageProspecting,
	orders.StatusProcessing: StageNegotiation,
	orders.StatusShipped:    StageProposalSent,
	orders.StatusDelivered:  StageWon,
	orders.StatusCanceled:   StageLost,
}

// StageFor maps an order status onto its funnel stage.
func StageFor(s orders.Status) Stage { return statusStage[s] }

func InfoFor(s Stage) StageInfo { return stageInfos[s] }
