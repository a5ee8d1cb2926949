package eventmodels

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// CorrelationStore maps logical trading signals to the broker-native order
// and strategy ids that were placed for them, including transitive mappings
// for bracket/strategy legs discovered after placement. It is shared state
// written by the order gateway and the event router and read by the
// reconciliation worker, so every access is mutex-guarded. Mappings are
// created at placement and pruned only once every referenced order and
// strategy is terminal.
type CorrelationStore struct {
	mu sync.RWMutex

	signalByOrder    map[int64]string
	signalByStrategy map[int64]string

	ordersBySignal     map[string]map[int64]struct{}
	strategiesBySignal map[string]map[int64]struct{}

	strategies map[int64]*OrderStrategy
}

func NewCorrelationStore() *CorrelationStore {
	return &CorrelationStore{
		signalByOrder:      make(map[int64]string),
		signalByStrategy:   make(map[int64]string),
		ordersBySignal:     make(map[string]map[int64]struct{}),
		strategiesBySignal: make(map[string]map[int64]struct{}),
		strategies:         make(map[int64]*OrderStrategy),
	}
}

// RecordOrderPlacement maps a newly placed order back to its originating
// signal. A request without a signal id records nothing.
func (s *CorrelationStore) RecordOrderPlacement(signalID string, orderID int64) {
	if signalID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mapOrderLocked(signalID, orderID)
}

// RecordStrategyPlacement maps a newly placed order strategy to its signal
// and opens the strategy record with an empty child set.
func (s *CorrelationStore) RecordStrategyPlacement(signalID string, strategy *OrderStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategies[strategy.ID] = strategy

	if signalID == "" {
		return
	}

	s.signalByStrategy[strategy.ID] = signalID
	if s.strategiesBySignal[signalID] == nil {
		s.strategiesBySignal[signalID] = make(map[int64]struct{})
	}
	s.strategiesBySignal[signalID][strategy.ID] = struct{}{}
}

// RecordChildDiscovery adds a discovered leg to its strategy's child set and
// creates a transitive signal mapping so fills on the leg still resolve to
// the originating signal.
func (s *CorrelationStore) RecordChildDiscovery(strategyID, childOrderID int64, role OrderRole) {
	s.mu.Lock()
	defer s.mu.Unlock()

	strategy, ok := s.strategies[strategyID]
	if !ok {
		log.Debugf("CorrelationStore.RecordChildDiscovery: unknown strategy %d for child order %d", strategyID, childOrderID)
		return
	}

	strategy.ChildOrderIDs[childOrderID] = role

	if signalID, ok := s.signalByStrategy[strategyID]; ok {
		s.mapOrderLocked(signalID, childOrderID)
	}
}

func (s *CorrelationStore) mapOrderLocked(signalID string, orderID int64) {
	s.signalByOrder[orderID] = signalID
	if s.ordersBySignal[signalID] == nil {
		s.ordersBySignal[signalID] = make(map[int64]struct{})
	}
	s.ordersBySignal[signalID][orderID] = struct{}{}
}

// ResolveSignal returns the signal id an order maps to, directly or
// transitively through its strategy.
func (s *CorrelationStore) ResolveSignal(orderID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signalID, ok := s.signalByOrder[orderID]
	return signalID, ok
}

// PruneTerminal removes the forward and reverse mappings for a terminal
// order. It is idempotent and safe to call repeatedly.
func (s *CorrelationStore) PruneTerminal(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	signalID, ok := s.signalByOrder[orderID]
	if !ok {
		return
	}

	delete(s.signalByOrder, orderID)

	if orders, ok := s.ordersBySignal[signalID]; ok {
		delete(orders, orderID)
		if len(orders) == 0 {
			delete(s.ordersBySignal, signalID)
		}
	}

	log.Debugf("CorrelationStore.PruneTerminal: removed mapping for order %d (signal %s)", orderID, signalID)
}

// PruneStrategy removes the mapping for a terminal strategy and drops it from
// active tracking, returning the record so orphan cleanup can inspect its
// child set. Idempotent.
func (s *CorrelationStore) PruneStrategy(strategyID int64) *OrderStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()

	strategy := s.strategies[strategyID]
	delete(s.strategies, strategyID)

	signalID, ok := s.signalByStrategy[strategyID]
	if !ok {
		return strategy
	}

	delete(s.signalByStrategy, strategyID)

	if strategies, ok := s.strategiesBySignal[signalID]; ok {
		delete(strategies, strategyID)
		if len(strategies) == 0 {
			delete(s.strategiesBySignal, signalID)
		}
	}

	return strategy
}

// SetStrategyStatus applies a status transition to a tracked strategy under
// the store lock and returns its signal id. The record is shared with
// concurrent readers, so callers must never write the field directly.
func (s *CorrelationStore) SetStrategyStatus(strategyID int64, status StrategyStatus) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	strategy, ok := s.strategies[strategyID]
	if !ok {
		return "", false
	}

	strategy.Status = status

	return strategy.SignalID, true
}

// ActiveStrategy returns the tracked strategy record for the given id.
func (s *CorrelationStore) ActiveStrategy(strategyID int64) (*OrderStrategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strategy, ok := s.strategies[strategyID]
	return strategy, ok
}

// ActiveStrategies returns a snapshot of all non-terminal strategy records.
func (s *CorrelationStore) ActiveStrategies() []*OrderStrategy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strategies := make([]*OrderStrategy, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		strategies = append(strategies, strategy)
	}

	return strategies
}

// MappedOrderIDs returns a snapshot of every order id with a live signal
// mapping. The reconciliation worker uses it to prune entries for orders that
// have gone terminal.
func (s *CorrelationStore) MappedOrderIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.signalByOrder))
	for id := range s.signalByOrder {
		ids = append(ids, id)
	}

	return ids
}
