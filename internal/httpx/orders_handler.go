package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/fiscal"
	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/pipeline"
	"github.com/brisaerp/order-engine/internal/stock"
)

// Renderer is the PDF-export collaborator; rendering itself is outside this
// service.
type Renderer interface {
	RenderOrder(ctx context.Context, o *orders.Order) ([]byte, error)
}

type OrdersHandler struct {
	Engine   *orders.Engine
	Fiscal   *fiscal.Issuer
	Pipeline *pipeline.Service
	Renderer Renderer // optional
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/status", h.changeStatus)
		r.Post("/{id}/credit-release", h.creditRelease)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/pdf", h.exportPDF)
		r.Get("/{id}/invoice", h.getInvoice)
	})
	r.Post("/invoices/{id}/cancel", h.cancelInvoice)
	r.Get("/pipeline", h.pipelineSnapshot)
}

// orderResponse augments the aggregate with the computed commission fields.
type orderResponse struct {
	*orders.Order
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalNet        decimal.Decimal `json:"total_net"`
	// RequiresApproval flags the soft-block sub-state for the caller; a
	// gated create is a success, not an error.
	RequiresApproval bool `json:"requires_approval"`
}

func toResponse(o *orders.Order) orderResponse {
	return orderResponse{
		Order:            o,
		TotalCommission:  o.TotalCommission(),
		TotalNet:         o.TotalNet(),
		RequiresApproval: o.CreditGate == orders.GateAwaitingApproval,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// tenant extracts the authenticated tenant id. Authentication itself is
// handled upstream; an absent header is a bad request.
func tenant(r *http.Request) string { return r.Header.Get("X-Tenant-ID") }

func (h *OrdersHandler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case orders.NotFound(err),
		errors.Is(err, stock.ErrProductNotFound),
		errors.Is(err, fiscal.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case orders.BadRequest(err),
		errors.Is(err, stock.ErrInsufficient),
		errors.Is(err, stock.ErrInvalidQty),
		errors.Is(err, fiscal.ErrAlreadyCanceled):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	tn := tenant(r)
	if tn == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant"})
		return
	}
	var in orders.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, tn, in)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(o))
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	tn := tenant(r)
	if tn == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant"})
		return
	}
	os, err := h.Engine.ListOrders(r.Context(), tn)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	out := make([]orderResponse, 0, len(os))
	for i := range os {
		out = append(out, toResponse(&os[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.GetOrder(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *OrdersHandler) update(w http.ResponseWriter, r *http.Request) {
	var in orders.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.UpdateOrder(r.Context(), tenant(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

type changeStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.ChangeStatus(r.Context(), tenant(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

type creditReleaseReq struct {
	Approved bool   `json:"approved"`
	Approver string `json:"approver"`
	Reason   string `json:"reason"`
}

func (h *OrdersHandler) creditRelease(w http.ResponseWriter, r *http.Request) {
	var req creditReleaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.ReleaseCreditGate(r.Context(), tenant(r), chi.URLParam(r, "id"),
		req.Approved, req.Approver, req.Reason)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o))
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteOrder(r.Context(), tenant(r), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.Renderer == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "pdf renderer not configured"})
		return
	}
	o, err := h.Engine.GetOrder(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	b, err := h.Renderer.RenderOrder(r.Context(), o)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Fiscal.GetByOrder(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *OrdersHandler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Fiscal.CancelInvoice(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *OrdersHandler) pipelineSnapshot(w http.ResponseWriter, r *http.Request) {
	tn := tenant(r)
	if tn == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant"})
		return
	}
	snap, err := h.Pipeline.Snapshot(r.Context(), tn)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
