package eventservices

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

type placeOrderRequestDTO struct {
	AccountID   int64    `json:"accountId"`
	Action      string   `json:"action"`
	Symbol      string   `json:"symbol"`
	OrderQty    int      `json:"orderQty"`
	OrderType   string   `json:"orderType"`
	Price       *float64 `json:"price,omitempty"`
	StopPrice   *float64 `json:"stopPrice,omitempty"`
	IsAutomated bool     `json:"isAutomated"`
}

type bracketLegDTO struct {
	Action    string   `json:"action"`
	OrderType string   `json:"orderType"`
	Price     *float64 `json:"price,omitempty"`
	StopPrice *float64 `json:"stopPrice,omitempty"`
}

type placeOSORequestDTO struct {
	placeOrderRequestDTO
	Bracket1 *bracketLegDTO `json:"bracket1,omitempty"`
	Bracket2 *bracketLegDTO `json:"bracket2,omitempty"`
}

type placeOrderResponseDTO struct {
	OrderID       int64   `json:"orderId"`
	Bracket1ID    *int64  `json:"bracket1Id"`
	Bracket2ID    *int64  `json:"bracket2Id"`
	FailureReason *string `json:"failureReason"`
	FailureText   *string `json:"failureText"`
}

func (dto *placeOrderResponseDTO) failure() error {
	if dto.FailureReason == nil {
		return nil
	}

	placementErr := &eventmodels.PlacementError{Reason: *dto.FailureReason}
	if dto.FailureText != nil {
		placementErr.Text = *dto.FailureText
	}

	return placementErr
}

// PlaceOrder submits a single order and returns the broker order id.
func PlaceOrder(ctx context.Context, client *brokerclient.Client, dto placeOrderRequestDTO) (int64, error) {
	var res placeOrderResponseDTO
	if err := client.Post(ctx, "/order/placeorder", dto, &res); err != nil {
		return 0, fmt.Errorf("PlaceOrder: request failed: %w", err)
	}

	if err := res.failure(); err != nil {
		return 0, err
	}

	return res.OrderID, nil
}

// PlaceBracket submits an entry order with attached exit legs. Leg ids are
// echoed back only by newer gateways; absent ids are discovered later via
// push events and reconciliation.
func PlaceBracket(ctx context.Context, client *brokerclient.Client, dto placeOSORequestDTO) (*placeOrderResponseDTO, error) {
	var res placeOrderResponseDTO
	if err := client.Post(ctx, "/order/placeoso", dto, &res); err != nil {
		return nil, fmt.Errorf("PlaceBracket: request failed: %w", err)
	}

	if err := res.failure(); err != nil {
		return nil, err
	}

	return &res, nil
}

type startOrderStrategyRequestDTO struct {
	AccountID int64  `json:"accountId"`
	Symbol    string `json:"symbol"`
	Action    string `json:"action"`
	Params    string `json:"params"`
}

type orderStrategyResponseDTO struct {
	OrderStrategy *eventmodels.OrderStrategyDTO `json:"orderStrategy"`
	FailureReason *string                       `json:"failureReason"`
	FailureText   *string                       `json:"failureText"`
}

type trailingStrategyParams struct {
	EntryQuantity   int     `json:"entryQuantity"`
	TriggerDistance float64 `json:"triggerDistance"`
	TrailDistance   float64 `json:"trailDistance"`
}

// StartOrderStrategy submits a grouped trailing-stop placement and returns
// the strategy id. Child order ids do not come back synchronously.
func StartOrderStrategy(ctx context.Context, client *brokerclient.Client, accountID int64, symbol string, action eventmodels.OrderAction, quantity int, triggerDistance, trailDistance float64) (int64, error) {
	params, err := json.Marshal(trailingStrategyParams{
		EntryQuantity:   quantity,
		TriggerDistance: triggerDistance,
		TrailDistance:   trailDistance,
	})
	if err != nil {
		return 0, fmt.Errorf("StartOrderStrategy: failed to marshal params: %w", err)
	}

	dto := startOrderStrategyRequestDTO{
		AccountID: accountID,
		Symbol:    symbol,
		Action:    string(action),
		Params:    string(params),
	}

	var res orderStrategyResponseDTO
	if err := client.Post(ctx, "/orderstrategy/startorderstrategy", dto, &res); err != nil {
		return 0, fmt.Errorf("StartOrderStrategy: request failed: %w", err)
	}

	if res.FailureReason != nil {
		placementErr := &eventmodels.PlacementError{Reason: *res.FailureReason}
		if res.FailureText != nil {
			placementErr.Text = *res.FailureText
		}

		return 0, placementErr
	}

	if res.OrderStrategy == nil {
		return 0, fmt.Errorf("StartOrderStrategy: response carried no strategy")
	}

	return res.OrderStrategy.ID, nil
}

type cancelOrderRequestDTO struct {
	OrderID int64 `json:"orderId"`
}

// Broker failure reasons that mean the order is already terminal. A cancel
// that races a fill or another cancel is not an error.
var terminalCancelReasons = map[string]bool{
	"AlreadyCanceled": true,
	"AlreadyFilled":   true,
	"Completed":       true,
	"Rejected":        true,
}

// CancelOrder asks the broker to cancel an order. Cancelling an order the
// broker already considers terminal returns success.
func CancelOrder(ctx context.Context, client *brokerclient.Client, orderID int64) error {
	var res placeOrderResponseDTO
	if err := client.Post(ctx, "/order/cancelorder", cancelOrderRequestDTO{OrderID: orderID}, &res); err != nil {
		return fmt.Errorf("CancelOrder: request failed: %w", err)
	}

	if res.FailureReason != nil {
		if terminalCancelReasons[*res.FailureReason] {
			log.Debugf("CancelOrder: order %d already terminal (%s)", orderID, *res.FailureReason)
			return nil
		}

		return res.failure()
	}

	return nil
}

type modifyOrderRequestDTO struct {
	OrderID  int64   `json:"orderId"`
	Price    float64 `json:"price"`
	OrderQty int     `json:"orderQty"`
}

// ModifyOrder changes the price and quantity of a working order.
func ModifyOrder(ctx context.Context, client *brokerclient.Client, orderID int64, price float64, quantity int) error {
	var res placeOrderResponseDTO
	if err := client.Post(ctx, "/order/modifyorder", modifyOrderRequestDTO{OrderID: orderID, Price: price, OrderQty: quantity}, &res); err != nil {
		return fmt.Errorf("ModifyOrder: request failed: %w", err)
	}

	return res.failure()
}
