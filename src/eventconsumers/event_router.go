package eventconsumers

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
	"github.com/oakmont-systems/futures-engine/src/eventservices"
)

// targetInferenceWindow is how long after a strategy placement a bare limit
// order is assumed to be its take-profit leg. The broker does not tag leg
// roles, so this is explicitly best-effort.
const targetInferenceWindow = 60 * time.Second

type strategyPlacement struct {
	strategyID int64
	placedAt   time.Time
	hasTarget  bool
}

// InferOrderRole guesses which leg a discovered order is. Stop-type orders
// and orders carrying a stop price are stops; a plain limit order arriving
// inside the inference window of a strategy placement that still lacks a
// target is its target; everything else is an entry. Kept as a standalone
// classifier so a broker with authoritative parent/child linkage can replace
// it wholesale.
func InferOrderRole(order *eventmodels.BrokerOrder, recent *strategyPlacement, now time.Time) eventmodels.OrderRole {
	if order.OrderType.IsStopType() || order.StopPrice != 0 {
		return eventmodels.OrderRoleStop
	}

	if order.OrderType == eventmodels.OrderTypeLimit && recent != nil && !recent.hasTarget && now.Sub(recent.placedAt) < targetInferenceWindow {
		return eventmodels.OrderRoleTarget
	}

	return eventmodels.OrderRoleEntry
}

// Classify maps a normalized broker push event to the canonical topic it
// will surface on.
func Classify(event *eventmodels.BrokerEvent) eventmodels.EventName {
	switch event.EntityType {
	case eventmodels.EntityTypeOrder:
		if event.Order == nil {
			return ""
		}

		order, err := event.Order.ToBrokerOrder()
		if err != nil {
			return ""
		}

		switch order.Status {
		case eventmodels.OrderStatusWorking:
			return eventmodels.OrderWorkingEventName
		case eventmodels.OrderStatusFilled:
			return eventmodels.OrderFilledEventName
		case eventmodels.OrderStatusCancelled, eventmodels.OrderStatusRejected:
			return eventmodels.OrderCancelledEventName
		default:
			return eventmodels.OrderPlacedEventName
		}
	case eventmodels.EntityTypeFill:
		return eventmodels.OrderFilledEventName
	case eventmodels.EntityTypePosition:
		if event.Position != nil && event.Position.ToPosition().IsFlat() {
			return eventmodels.PositionClosedEventName
		}
		return eventmodels.PositionUpdateEventName
	case eventmodels.EntityTypeOrderStrategy:
		return eventmodels.StrategyStatusChangedEventName
	case eventmodels.EntityTypeCashBalance:
		return eventmodels.AccountUpdateEventName
	default:
		return ""
	}
}

// EventRouter is the single consumer of the protocol client's ordered event
// channel. It normalizes push events into canonical domain events, infers
// leg roles, drives fill-to-position-closed detection and hands terminal
// strategy transitions to the reconciliation worker.
type EventRouter struct {
	wg           *sync.WaitGroup
	client       *brokerclient.Client
	orders       *eventmodels.OrderDataStore
	correlations *eventmodels.CorrelationStore
	reconciler   *ReconciliationWorker

	positionCheckDelay time.Duration

	mu             sync.Mutex
	lastStrategies map[int64]*strategyPlacement

	now func() time.Time
}

func NewEventRouter(wg *sync.WaitGroup, client *brokerclient.Client, orders *eventmodels.OrderDataStore, correlations *eventmodels.CorrelationStore, reconciler *ReconciliationWorker) *EventRouter {
	return &EventRouter{
		wg:                 wg,
		client:             client,
		orders:             orders,
		correlations:       correlations,
		reconciler:         reconciler,
		positionCheckDelay: 2 * time.Second,
		lastStrategies:     make(map[int64]*strategyPlacement),
		now:                time.Now,
	}
}

func (r *EventRouter) Start(ctx context.Context) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-ctx.Done():
				r.drain()
				log.Info("stopping EventRouter consumer")
				return
			case event, ok := <-r.client.Events():
				if !ok {
					log.Info("EventRouter: event channel closed")
					return
				}

				r.handleEvent(ctx, event)
			}
		}
	}()
}

// drain processes whatever is already buffered on the channel so in-flight
// events are handled rather than silently dropped at shutdown.
func (r *EventRouter) drain() {
	for {
		select {
		case event, ok := <-r.client.Events():
			if !ok {
				return
			}
			r.handleEvent(context.Background(), event)
		default:
			return
		}
	}
}

func (r *EventRouter) handleEvent(ctx context.Context, event *eventmodels.BrokerEvent) {
	switch event.EntityType {
	case eventmodels.EntityTypeOrder:
		r.handleOrder(event.Order)
	case eventmodels.EntityTypeFill:
		r.handleFill(event.Fill)
	case eventmodels.EntityTypePosition:
		r.handlePosition(event.Position)
	case eventmodels.EntityTypeOrderStrategy:
		r.handleStrategy(ctx, event.Strategy)
	case eventmodels.EntityTypeCashBalance:
		eventpubsub.PublishEvent("EventRouter", eventmodels.AccountUpdateEventName, event.Balance.ToAccountUpdateEvent())
	default:
		log.Warnf("EventRouter.handleEvent: ignoring unknown entity type %q", event.EntityType)
	}
}

func (r *EventRouter) recentStrategy(accountID int64) *strategyPlacement {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastStrategies[accountID]
}

func (r *EventRouter) handleOrder(dto *eventmodels.BrokerOrderDTO) {
	order, err := dto.ToBrokerOrder()
	if err != nil {
		log.Errorf("EventRouter.handleOrder: failed to convert order DTO: %v", err)
		return
	}

	tracked, created := r.orders.GetOrAdd(order)
	if created {
		recent := r.recentStrategy(order.AccountID)
		role := InferOrderRole(order, recent, r.now())
		r.orders.SetRole(order.ID, role)

		if role == eventmodels.OrderRoleTarget && recent != nil {
			r.mu.Lock()
			recent.hasTarget = true
			r.mu.Unlock()

			r.correlations.RecordChildDiscovery(recent.strategyID, order.ID, role)
		}

		if order.StrategyID != nil {
			r.correlations.RecordChildDiscovery(*order.StrategyID, order.ID, role)
		}

		signalID, _ := r.correlations.ResolveSignal(order.ID)

		eventpubsub.PublishEvent("EventRouter", eventmodels.OrderPlacedEventName, &eventmodels.OrderPlacedEvent{
			OrderID:       order.ID,
			AccountID:     order.AccountID,
			Symbol:        order.Symbol,
			Action:        order.Action,
			Quantity:      order.Quantity,
			OrderType:     order.OrderType,
			Status:        order.Status,
			SignalID:      signalID,
			OrderRole:     role,
			ParentOrderID: order.StrategyID,
		})

		if order.Status.IsTerminal() {
			r.applyTerminal(tracked, order.Status, order.Reason, order.FillPrice, order.FilledQuantity)
		}

		return
	}

	updates := r.orders.Update(order)
	for _, update := range updates {
		if update.Field != "status" {
			continue
		}

		switch update.New {
		case eventmodels.OrderStatusWorking:
			eventpubsub.PublishEvent("EventRouter", eventmodels.OrderWorkingEventName, &eventmodels.OrderPlacedEvent{
				OrderID:   tracked.ID,
				AccountID: tracked.AccountID,
				Symbol:    tracked.Symbol,
				Action:    tracked.Action,
				Quantity:  tracked.Quantity,
				OrderType: tracked.OrderType,
				Status:    eventmodels.OrderStatusWorking,
			})
		case eventmodels.OrderStatusFilled:
			r.applyTerminal(tracked, eventmodels.OrderStatusFilled, "", tracked.FillPrice, tracked.FilledQuantity)
		case eventmodels.OrderStatusCancelled, eventmodels.OrderStatusRejected:
			r.applyTerminal(tracked, update.New.(eventmodels.OrderStatus), tracked.Reason, 0, 0)
		}
	}
}

// applyTerminal publishes the terminal event for an order and prunes its
// signal mapping. Fills also schedule the deferred position re-check.
func (r *EventRouter) applyTerminal(order *eventmodels.BrokerOrder, status eventmodels.OrderStatus, reason string, fillPrice float64, fillQty int) {
	switch status {
	case eventmodels.OrderStatusFilled:
		signalID, _ := r.correlations.ResolveSignal(order.ID)

		eventpubsub.PublishEvent("EventRouter", eventmodels.OrderFilledEventName, &eventmodels.OrderFilledEvent{
			OrderID:   order.ID,
			FillPrice: fillPrice,
			Quantity:  fillQty,
			SignalID:  signalID,
		})

		r.schedulePositionCheck(order.AccountID, order.ContractID, order.Symbol)
	case eventmodels.OrderStatusCancelled, eventmodels.OrderStatusRejected:
		if reason == "" {
			reason = string(status)
		}

		eventpubsub.PublishEvent("EventRouter", eventmodels.OrderCancelledEventName, &eventmodels.OrderCancelledEvent{
			OrderID: order.ID,
			Reason:  reason,
		})
	}

	r.correlations.PruneTerminal(order.ID)
}

func (r *EventRouter) handleFill(dto *eventmodels.FillDTO) {
	fill, err := dto.ToFill()
	if err != nil {
		log.Errorf("EventRouter.handleFill: failed to convert fill DTO: %v", err)
		return
	}

	tracked, ok := r.orders.Get(fill.OrderID)
	if !ok {
		// Fill for an order we never saw placed; announce it anyway. The
		// signal lookup must not fail when no mapping exists.
		signalID, _ := r.correlations.ResolveSignal(fill.OrderID)

		eventpubsub.PublishEvent("EventRouter", eventmodels.OrderFilledEventName, &eventmodels.OrderFilledEvent{
			OrderID:   fill.OrderID,
			FillPrice: fill.Price,
			Quantity:  fill.Quantity,
			SignalID:  signalID,
		})

		r.correlations.PruneTerminal(fill.OrderID)
		return
	}

	updates := r.orders.Update(&eventmodels.BrokerOrder{
		ID:             fill.OrderID,
		Status:         eventmodels.OrderStatusFilled,
		FillPrice:      fill.Price,
		FilledQuantity: fill.Quantity,
	})

	for _, update := range updates {
		if update.Field == "status" {
			r.applyTerminal(tracked, eventmodels.OrderStatusFilled, "", fill.Price, fill.Quantity)
			return
		}
	}
}

// schedulePositionCheck re-checks the position on a contract after a short
// delay, giving the broker ledger time to settle, and emits PositionClosed
// if the account is flat. This is a deferred task, not a blocking wait.
func (r *EventRouter) schedulePositionCheck(accountID, contractID int64, symbol string) {
	if accountID == 0 {
		log.Debugf("EventRouter.schedulePositionCheck: no account for contract %d, skipping", contractID)
		return
	}

	time.AfterFunc(r.positionCheckDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		positions, err := eventservices.FetchPositions(ctx, r.client, accountID)
		if err != nil {
			log.Errorf("EventRouter.schedulePositionCheck: failed to fetch positions: %v", err)
			return
		}

		for _, position := range positions {
			if position.ContractID == contractID && !position.IsFlat() {
				return
			}
		}

		eventpubsub.PublishEvent("EventRouter", eventmodels.PositionClosedEventName, &eventmodels.PositionClosedEvent{
			AccountID:  accountID,
			ContractID: contractID,
			Symbol:     symbol,
		})
	})
}

func (r *EventRouter) handlePosition(dto *eventmodels.PositionDTO) {
	position := dto.ToPosition()

	if position.IsFlat() {
		eventpubsub.PublishEvent("EventRouter", eventmodels.PositionClosedEventName, &eventmodels.PositionClosedEvent{
			AccountID:  position.AccountID,
			ContractID: position.ContractID,
			Symbol:     position.Symbol,
		})

		return
	}

	eventpubsub.PublishEvent("EventRouter", eventmodels.PositionUpdateEventName, &eventmodels.PositionUpdateEvent{
		AccountID:   position.AccountID,
		ContractID:  position.ContractID,
		Symbol:      position.Symbol,
		NetQuantity: position.NetQuantity,
		AvgPrice:    position.AvgPrice,
	})
}

// TrackStrategyPlacement arms the target-role inference window for an
// account after a strategy placement.
func (r *EventRouter) TrackStrategyPlacement(accountID, strategyID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastStrategies[accountID] = &strategyPlacement{
		strategyID: strategyID,
		placedAt:   r.now(),
	}
}

func (r *EventRouter) handleStrategy(ctx context.Context, dto *eventmodels.OrderStrategyDTO) {
	status := dto.NormalizedStatus()
	if status == "" {
		log.Warnf("EventRouter.handleStrategy: unknown strategy status %q", dto.Status)
		return
	}

	signalID, tracked := r.correlations.SetStrategyStatus(dto.ID, status)
	if !tracked && !status.IsTerminal() {
		strategy := eventmodels.NewOrderStrategy(dto.ID, dto.AccountID, dto.Symbol, dto.ContractID, "", r.now())
		r.correlations.RecordStrategyPlacement("", strategy)
		r.TrackStrategyPlacement(dto.AccountID, dto.ID)

		signalID, _ = r.correlations.SetStrategyStatus(dto.ID, status)
	}

	eventpubsub.PublishEvent("EventRouter", eventmodels.StrategyStatusChangedEventName, &eventmodels.StrategyStatusChangedEvent{
		StrategyID: dto.ID,
		AccountID:  dto.AccountID,
		Status:     status,
		SignalID:   signalID,
	})

	if !status.IsTerminal() {
		return
	}

	record := r.correlations.PruneStrategy(dto.ID)
	if record == nil {
		record = eventmodels.NewOrderStrategy(dto.ID, dto.AccountID, dto.Symbol, dto.ContractID, "", r.now())
	}
	record.Status = status

	if err := r.reconciler.OrphanCleanup(ctx, record); err != nil {
		log.Errorf("EventRouter.handleStrategy: orphan cleanup for strategy %d failed: %v", dto.ID, err)
	}
}
