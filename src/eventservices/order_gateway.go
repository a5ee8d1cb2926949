package eventservices

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
)

// OrderGateway places simple, bracket and strategy orders, and cancels or
// modifies existing ones. Every placement validates locally before any
// network call, records the signal correlation, and publishes the canonical
// placement event. Broker rejections are published as order-rejected events
// carrying the human-readable reason.
type OrderGateway struct {
	client       *brokerclient.Client
	resolver     *ContractResolver
	orders       *eventmodels.OrderDataStore
	correlations *eventmodels.CorrelationStore
}

func NewOrderGateway(client *brokerclient.Client, resolver *ContractResolver, orders *eventmodels.OrderDataStore, correlations *eventmodels.CorrelationStore) *OrderGateway {
	return &OrderGateway{
		client:       client,
		resolver:     resolver,
		orders:       orders,
		correlations: correlations,
	}
}

func (g *OrderGateway) publishRejection(req *eventmodels.OrderRequest, err error) {
	var placementErr *eventmodels.PlacementError
	if errors.As(err, &placementErr) {
		eventpubsub.PublishEvent("OrderGateway", eventmodels.OrderCancelledEventName, &eventmodels.OrderCancelledEvent{
			Reason: placementErr.Error(),
		})

		log.Warnf("OrderGateway: broker rejected %s %d %s: %v", req.Action, req.Quantity, req.Symbol, placementErr)
	}
}

func (g *OrderGateway) recordPlacement(req *eventmodels.OrderRequest, contract *eventmodels.Contract, orderID int64, role eventmodels.OrderRole, parentOrderID *int64, orderType eventmodels.OrderType, action eventmodels.OrderAction, price *float64, stopPrice *float64) {
	order := &eventmodels.BrokerOrder{
		ID:         orderID,
		AccountID:  req.AccountID,
		ContractID: contract.ID,
		Symbol:     contract.Symbol,
		Action:     action,
		OrderType:  orderType,
		Quantity:   req.Quantity,
		Status:     eventmodels.OrderStatusWorking,
		Role:       role,
		SignalID:   req.SignalID,
		CreateDate: time.Now(),
	}

	if price != nil {
		order.Price = *price
	}
	if stopPrice != nil {
		order.StopPrice = *stopPrice
	}

	g.orders.GetOrAdd(order)
	g.correlations.RecordOrderPlacement(req.SignalID, orderID)

	eventpubsub.PublishEvent("OrderGateway", eventmodels.OrderPlacedEventName, &eventmodels.OrderPlacedEvent{
		OrderID:       orderID,
		AccountID:     req.AccountID,
		Symbol:        contract.Symbol,
		Action:        action,
		Quantity:      req.Quantity,
		OrderType:     orderType,
		Price:         price,
		Status:        eventmodels.OrderStatusWorking,
		SignalID:      req.SignalID,
		ParentOrderID: parentOrderID,
		OrderRole:     role,
	})
}

// PlaceSimpleOrder places a standalone order and returns the broker order id.
func (g *OrderGateway) PlaceSimpleOrder(ctx context.Context, req *eventmodels.OrderRequest) (int64, error) {
	tracer := otel.GetTracerProvider().Tracer("OrderGateway")
	ctx, span := tracer.Start(ctx, "PlaceSimpleOrder", trace.WithAttributes(attribute.String("symbol", req.Symbol)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return 0, err
	}

	contract, err := g.resolver.Resolve(ctx, req.Symbol)
	if err != nil {
		return 0, fmt.Errorf("OrderGateway:PlaceSimpleOrder(): failed to resolve contract: %w", err)
	}

	orderID, err := PlaceOrder(ctx, g.client, placeOrderRequestDTO{
		AccountID:   req.AccountID,
		Action:      string(req.Action),
		Symbol:      contract.Symbol,
		OrderQty:    req.Quantity,
		OrderType:   string(req.OrderType),
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		IsAutomated: true,
	})
	if err != nil {
		g.publishRejection(req, err)
		return 0, fmt.Errorf("OrderGateway:PlaceSimpleOrder(): %w", err)
	}

	g.recordPlacement(req, contract, orderID, eventmodels.OrderRoleStandalone, nil, req.OrderType, req.Action, req.Price, req.StopPrice)

	log.WithContext(ctx).Infof("OrderGateway.PlaceSimpleOrder: placed order %d (%s %d %s)", orderID, req.Action, req.Quantity, contract.Symbol)

	return orderID, nil
}

// checkBracketDirection sanity-checks the exit legs against the entry price.
// A violation is logged but the order is still placed: signal producers
// occasionally err and the trade must not silently vanish.
func checkBracketDirection(req *eventmodels.OrderRequest) {
	if req.Price == nil {
		return
	}

	entry := *req.Price

	if req.Action == eventmodels.OrderActionBuy {
		if req.StopPrice != nil && *req.StopPrice >= entry {
			log.Warnf("OrderGateway: long entry at %.2f has stop %.2f at or above entry; placing anyway", entry, *req.StopPrice)
		}
		if req.TakeProfit != nil && *req.TakeProfit <= entry {
			log.Warnf("OrderGateway: long entry at %.2f has target %.2f at or below entry; placing anyway", entry, *req.TakeProfit)
		}

		return
	}

	if req.StopPrice != nil && *req.StopPrice <= entry {
		log.Warnf("OrderGateway: short entry at %.2f has stop %.2f at or below entry; placing anyway", entry, *req.StopPrice)
	}
	if req.TakeProfit != nil && *req.TakeProfit >= entry {
		log.Warnf("OrderGateway: short entry at %.2f has target %.2f at or above entry; placing anyway", entry, *req.TakeProfit)
	}
}

// PlaceBracketOrder places an entry order with stop-loss and/or take-profit
// exit legs. The exit-leg side is the opposite of the entry side.
func (g *OrderGateway) PlaceBracketOrder(ctx context.Context, req *eventmodels.OrderRequest) (*eventmodels.BracketOrderResult, error) {
	tracer := otel.GetTracerProvider().Tracer("OrderGateway")
	ctx, span := tracer.Start(ctx, "PlaceBracketOrder", trace.WithAttributes(attribute.String("symbol", req.Symbol)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !req.IsBracket() {
		return nil, &eventmodels.ValidationError{Field: "stopPrice", Reason: "bracket requires a stop or take-profit leg"}
	}

	checkBracketDirection(req)

	contract, err := g.resolver.Resolve(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("OrderGateway:PlaceBracketOrder(): failed to resolve contract: %w", err)
	}

	exitAction := string(req.Action.Opposite())

	dto := placeOSORequestDTO{
		placeOrderRequestDTO: placeOrderRequestDTO{
			AccountID:   req.AccountID,
			Action:      string(req.Action),
			Symbol:      contract.Symbol,
			OrderQty:    req.Quantity,
			OrderType:   string(req.OrderType),
			Price:       req.Price,
			IsAutomated: true,
		},
	}

	if req.StopPrice != nil {
		dto.Bracket1 = &bracketLegDTO{
			Action:    exitAction,
			OrderType: string(eventmodels.OrderTypeStop),
			StopPrice: req.StopPrice,
		}
	}

	if req.TakeProfit != nil {
		dto.Bracket2 = &bracketLegDTO{
			Action:    exitAction,
			OrderType: string(eventmodels.OrderTypeLimit),
			Price:     req.TakeProfit,
		}
	}

	res, err := PlaceBracket(ctx, g.client, dto)
	if err != nil {
		g.publishRejection(req, err)
		return nil, fmt.Errorf("OrderGateway:PlaceBracketOrder(): %w", err)
	}

	g.recordPlacement(req, contract, res.OrderID, eventmodels.OrderRoleEntry, nil, req.OrderType, req.Action, req.Price, nil)

	result := &eventmodels.BracketOrderResult{OrderID: res.OrderID}

	if res.Bracket1ID != nil && req.StopPrice != nil {
		result.StopLegOrderID = res.Bracket1ID
		g.recordPlacement(req, contract, *res.Bracket1ID, eventmodels.OrderRoleStop, &res.OrderID, eventmodels.OrderTypeStop, req.Action.Opposite(), nil, req.StopPrice)
	}

	if res.Bracket2ID != nil && req.TakeProfit != nil {
		result.TargetLegOrderID = res.Bracket2ID
		g.recordPlacement(req, contract, *res.Bracket2ID, eventmodels.OrderRoleTarget, &res.OrderID, eventmodels.OrderTypeLimit, req.Action.Opposite(), req.TakeProfit, nil)
	}

	log.WithContext(ctx).Infof("OrderGateway.PlaceBracketOrder: placed bracket entry %d on %s", res.OrderID, contract.Symbol)

	return result, nil
}

// PlaceStrategyOrder issues one grouped trailing-stop placement and returns
// the strategy id. Child order ids are not assumed to come back
// synchronously; discovering them is the event router's and reconciliation
// worker's job.
func (g *OrderGateway) PlaceStrategyOrder(ctx context.Context, req *eventmodels.OrderRequest) (int64, error) {
	tracer := otel.GetTracerProvider().Tracer("OrderGateway")
	ctx, span := tracer.Start(ctx, "PlaceStrategyOrder", trace.WithAttributes(attribute.String("symbol", req.Symbol)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return 0, err
	}

	if !req.IsTrailingStrategy() {
		return 0, &eventmodels.ValidationError{Field: "trailing_trigger", Reason: "trailing strategy requires trigger and offset"}
	}

	contract, err := g.resolver.Resolve(ctx, req.Symbol)
	if err != nil {
		return 0, fmt.Errorf("OrderGateway:PlaceStrategyOrder(): failed to resolve contract: %w", err)
	}

	strategyID, err := StartOrderStrategy(ctx, g.client, req.AccountID, contract.Symbol, req.Action, req.Quantity, *req.TrailingTrigger, *req.TrailingOffset)
	if err != nil {
		g.publishRejection(req, err)
		return 0, fmt.Errorf("OrderGateway:PlaceStrategyOrder(): %w", err)
	}

	strategy := eventmodels.NewOrderStrategy(strategyID, req.AccountID, contract.Symbol, contract.ID, req.SignalID, time.Now())
	g.correlations.RecordStrategyPlacement(req.SignalID, strategy)

	eventpubsub.PublishEvent("OrderGateway", eventmodels.StrategyStatusChangedEventName, &eventmodels.StrategyStatusChangedEvent{
		StrategyID: strategyID,
		AccountID:  req.AccountID,
		Status:     eventmodels.StrategyStatusPlaced,
		SignalID:   req.SignalID,
	})

	log.WithContext(ctx).Infof("OrderGateway.PlaceStrategyOrder: placed strategy %d on %s", strategyID, contract.Symbol)

	return strategyID, nil
}

// CancelOrder is idempotent: cancelling an order already known to be
// terminal returns success without a network call.
func (g *OrderGateway) CancelOrder(ctx context.Context, orderID int64) error {
	if order, ok := g.orders.Get(orderID); ok && order.Status.IsTerminal() {
		log.Debugf("OrderGateway.CancelOrder: order %d already %s, nothing to do", orderID, order.Status)
		return nil
	}

	if err := CancelOrder(ctx, g.client, orderID); err != nil {
		return fmt.Errorf("OrderGateway:CancelOrder(): %w", err)
	}

	return nil
}

// ModifyOrder changes a working order's price and quantity. Bracket and
// strategy legs cannot be modified in place; the broker requires
// cancel + recreate for those.
func (g *OrderGateway) ModifyOrder(ctx context.Context, orderID int64, price float64, quantity int) error {
	if order, ok := g.orders.Get(orderID); ok {
		if order.Role == eventmodels.OrderRoleStop || order.Role == eventmodels.OrderRoleTarget || order.StrategyID != nil {
			return &eventmodels.ModifyNotSupportedError{OrderID: orderID}
		}
	}

	if err := ModifyOrder(ctx, g.client, orderID, price, quantity); err != nil {
		return fmt.Errorf("OrderGateway:ModifyOrder(): %w", err)
	}

	return nil
}
