package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// OrderRepo is an in-memory port.OrderRepository.
type OrderRepo struct {
	mu         sync.RWMutex
	nextID     int64
	nextLineID int64
	orders     map[int64]domain.Order
}

var _ port.OrderRepository = (*OrderRepo)(nil)

// NewOrderRepo creates an OrderRepo whose first order gets firstID.
func NewOrderRepo(firstID int64) *OrderRepo {
	if firstID < 1 {
		firstID = 1
	}
	return &OrderRepo{nextID: firstID - 1, orders: make(map[int64]domain.Order)}
}

func (r *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	for i := range order.Details {
		r.nextLineID++
		order.Details[i].ID = r.nextLineID
		order.Details[i].OrderID = order.ID
	}
	r.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (r *OrderRepo) List(ctx context.Context, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		o.Details = nil
		out = append(out, o)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyOrder(o domain.Order) domain.Order {
	o.Details = append([]domain.OrderLine(nil), o.Details...)
	return o
}
