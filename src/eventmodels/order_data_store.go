package eventmodels

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// OrderUpdateEvent records a single observed field transition on a tracked
// order. Creating the event and applying the update in the same method keeps
// the two from drifting apart.
type OrderUpdateEvent struct {
	OrderID int64
	Field   string
	Old     interface{}
	New     interface{}
}

// OrderDataStore tracks every broker order ever observed by this process,
// keyed by broker order id. Orders are never deleted; they are retained for
// audit. Writes from the event router and the reconciliation worker can race
// on the same id, so the store is mutex-guarded and terminal statuses are
// sticky: a live fill arriving while a sync pass inspects the same order can
// never regress it back to a non-terminal status.
type OrderDataStore struct {
	mu     sync.RWMutex
	orders map[int64]*BrokerOrder
}

func NewOrderDataStore() *OrderDataStore {
	return &OrderDataStore{
		orders: make(map[int64]*BrokerOrder),
	}
}

// GetOrAdd returns the tracked order for the given id, inserting it if this
// is the first observation. The second return value is true when the order
// was newly added.
func (s *OrderDataStore) GetOrAdd(order *BrokerOrder) (*BrokerOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[order.ID]; ok {
		return existing, false
	}

	s.orders[order.ID] = order
	log.Debugf("OrderDataStore.GetOrAdd: added order with ID: %d", order.ID)

	return order, true
}

func (s *OrderDataStore) Get(orderID int64) (*BrokerOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	return order, ok
}

// Update applies the newly observed order state onto the tracked order and
// returns the field transitions it produced. Status moves respect terminal
// stickiness, and the role is immutable once set.
func (s *OrderDataStore) Update(order *BrokerOrder) []*OrderUpdateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.ID]
	if !ok {
		return nil
	}

	var updates []*OrderUpdateEvent

	if existing.Status != order.Status && order.Status != OrderStatusUnknown {
		if existing.Status.IsTerminal() {
			log.Debugf("OrderDataStore.Update: order %d is terminal (%s), ignoring status %s", order.ID, existing.Status, order.Status)
		} else {
			updates = append(updates, &OrderUpdateEvent{
				OrderID: order.ID,
				Field:   "status",
				Old:     existing.Status,
				New:     order.Status,
			})

			existing.Status = order.Status
			if order.Reason != "" {
				existing.Reason = order.Reason
			}
		}
	}

	if order.FillPrice != 0 && existing.FillPrice != order.FillPrice {
		updates = append(updates, &OrderUpdateEvent{
			OrderID: order.ID,
			Field:   "fillPrice",
			Old:     existing.FillPrice,
			New:     order.FillPrice,
		})

		existing.FillPrice = order.FillPrice
	}

	if order.FilledQuantity != 0 && existing.FilledQuantity != order.FilledQuantity {
		updates = append(updates, &OrderUpdateEvent{
			OrderID: order.ID,
			Field:   "filledQuantity",
			Old:     existing.FilledQuantity,
			New:     order.FilledQuantity,
		})

		existing.FilledQuantity = order.FilledQuantity
	}

	if existing.Role == "" && order.Role != "" {
		existing.Role = order.Role
	}

	if existing.StrategyID == nil && order.StrategyID != nil {
		existing.StrategyID = order.StrategyID
	}

	return updates
}

// SetRole assigns the inferred leg role. The role is immutable once set.
func (s *OrderDataStore) SetRole(orderID int64, role OrderRole) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[orderID]; ok && order.Role == "" {
		order.Role = role
	}
}

// WorkingOrders returns a snapshot of all non-terminal orders for the given
// account.
func (s *OrderDataStore) WorkingOrders(accountID int64) []*BrokerOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var working []*BrokerOrder
	for _, order := range s.orders {
		if order.AccountID == accountID && !order.Status.IsTerminal() {
			working = append(working, order)
		}
	}

	return working
}

// All returns a snapshot of every tracked order.
func (s *OrderDataStore) All() []*BrokerOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*BrokerOrder, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}

	return orders
}

func (s *OrderDataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.orders)
}
