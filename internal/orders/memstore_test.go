package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/brisaerp/order-engine/internal/stock"
)

// memStore is an in-memory Store used by the engine tests. The store mutex
// is held for the whole InTx closure, which mirrors how exclusive row locks
// serialize competing transactions; failed closures roll back to a snapshot.
type memStore struct {
	mu        sync.Mutex
	clients   map[string]*Client
	products  map[string]*stock.Product
	orders    map[string]*Order
	movements []stock.Movement
	initial   map[string]int // product id -> stock at seed time
	openInv   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		clients:  map[string]*Client{},
		products: map[string]*stock.Product{},
		orders:   map[string]*Order{},
		initial:  map[string]int{},
		openInv:  map[string]bool{},
	}
}

func key(tenant, id string) string { return tenant + "|" + id }

func (s *memStore) seedClient(c Client) { s.clients[key(c.TenantID, c.ID)] = &c }

func (s *memStore) seedProduct(p stock.Product) {
	s.products[key(p.TenantID, p.ID)] = &p
	s.initial[key(p.TenantID, p.ID)] = p.Stock
}

func (s *memStore) stockOf(tenant, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[key(tenant, id)].Stock
}

// ledgerBalance recomputes a product's stock from the movement log; tests
// compare it against the counter to assert the ledger invariant.
func (s *memStore) ledgerBalance(tenant, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.initial[key(tenant, id)]
	for _, m := range s.movements {
		if m.TenantID != tenant || m.ProductID != id {
			continue
		}
		switch m.Type {
		case stock.MovementOut:
			n -= m.Qty
		default:
			n += m.Qty
		}
	}
	return n
}

func (s *memStore) movementsFor(reference string) []stock.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.Movement
	for _, m := range s.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) snapshot() *memStore {
	cp := newMemStore()
	for k, v := range s.clients {
		c := *v
		cp.clients[k] = &c
	}
	for k, v := range s.products {
		p := *v
		cp.products[k] = &p
	}
	for k, v := range s.orders {
		o := *v
		o.Lines = append([]Line(nil), v.Lines...)
		cp.orders[k] = &o
	}
	cp.movements = append([]stock.Movement(nil), s.movements...)
	for k, v := range s.initial {
		cp.initial[k] = v
	}
	for k, v := range s.openInv {
		cp.openInv[k] = v
	}
	return cp
}

func (s *memStore) restore(snap *memStore) {
	s.clients = snap.clients
	s.products = snap.products
	s.orders = snap.orders
	s.movements = snap.movements
	s.initial = snap.initial
	s.openInv = snap.openInv
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, tenant, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key(tenant, id)]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (s *memStore) ListOrders(ctx context.Context, tenant string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.TenantID == tenant {
			cp := *o
			cp.Lines = append([]Line(nil), o.Lines...)
			out = append(out, cp)
		}
	}
	return out, nil
}

type memTx struct{ s *memStore }

func (t *memTx) Stock() stock.Ledger { return (*memLedger)(t) }

func (t *memTx) GetClient(ctx context.Context, tenant, id string) (*Client, error) {
	c, ok := t.s.clients[key(tenant, id)]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", ErrClientNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (t *memTx) LastOrderNumber(ctx context.Context, tenant string) (string, error) {
	last := ""
	for _, o := range t.s.orders {
		if o.TenantID == tenant && numberGreater(o.Number, last) {
			last = o.Number
		}
	}
	return last, nil
}

// Shared prefix, so the longer number is the larger one.
func numberGreater(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	t.s.orders[key(o.TenantID, o.ID)] = &cp
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, tenant, id string) (*Order, error) {
	o, ok := t.s.orders[key(tenant, id)]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *Order) error {
	if _, ok := t.s.orders[key(o.TenantID, o.ID)]; !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, o.ID)
	}
	return t.InsertOrder(ctx, o)
}

func (t *memTx) DeleteOrder(ctx context.Context, tenant, id string) error {
	if _, ok := t.s.orders[key(tenant, id)]; !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	delete(t.s.orders, key(tenant, id))
	return nil
}

func (t *memTx) HasOpenInvoice(ctx context.Context, tenant, orderID string) (bool, error) {
	return t.s.openInv[key(tenant, orderID)], nil
}

// memLedger implements stock.Ledger inside a memTx.
type memLedger memTx

func (l *memLedger) Lock(ctx context.Context, tenant, productID string) (*stock.Product, error) {
	p, ok := l.s.products[key(tenant, productID)]
	if !ok {
		return nil, stock.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *memLedger) CheckAvailability(ctx context.Context, tenant, productID string, qty int) (bool, error) {
	p, ok := l.s.products[key(tenant, productID)]
	if !ok {
		return false, stock.ErrProductNotFound
	}
	return p.Stock >= qty, nil
}

func (l *memLedger) Decrement(ctx context.Context, tenant, productID string, qty int, reference string) (int, error) {
	if qty <= 0 {
		return 0, stock.ErrInvalidQty
	}
	p, ok := l.s.products[key(tenant, productID)]
	if !ok {
		return 0, stock.ErrProductNotFound
	}
	if p.Stock < qty {
		return p.Stock, fmt.Errorf("%w: product %s has %d, need %d", stock.ErrInsufficient, productID, p.Stock, qty)
	}
	p.Stock -= qty
	return p.Stock, l.RecordMovement(ctx, stock.Movement{
		TenantID: tenant, ProductID: productID, Type: stock.MovementOut, Qty: qty, Reference: reference,
	})
}

func (l *memLedger) Increment(ctx context.Context, tenant, productID string, qty int, typ stock.MovementType, reference string) error {
	if qty <= 0 {
		return stock.ErrInvalidQty
	}
	p, ok := l.s.products[key(tenant, productID)]
	if !ok {
		return stock.ErrProductNotFound
	}
	p.Stock += qty
	return l.RecordMovement(ctx, stock.Movement{
		TenantID: tenant, ProductID: productID, Type: typ, Qty: qty, Reference: reference,
	})
}

func (l *memLedger) RecordMovement(ctx context.Context, m stock.Movement) error {
	l.s.movements = append(l.s.movements, m)
	return nil
}
