package eventmodels

import (
	"fmt"
	"strings"
	"time"
)

// BrokerOrderDTO mirrors the broker's order wire shape. The broker is not
// consistent about field names across endpoints (ordStatus vs orderStatus,
// qty vs orderQty, avgPx vs avgPrice, contractId vs instrumentId), so the DTO
// accepts all spellings and ToBrokerOrder normalizes into the canonical
// schema. Nothing outside this file should ever look at raw wire fields.
type BrokerOrderDTO struct {
	ID              int64    `json:"id"`
	OrderID         int64    `json:"orderId"`
	AccountID       int64    `json:"accountId"`
	ContractID      int64    `json:"contractId"`
	InstrumentID    int64    `json:"instrumentId"`
	Symbol          string   `json:"symbol"`
	Action          string   `json:"action"`
	OrdStatus       string   `json:"ordStatus"`
	OrderStatus     string   `json:"orderStatus"`
	OrderType       string   `json:"orderType"`
	Qty             *int     `json:"qty"`
	OrderQty        *int     `json:"orderQty"`
	Price           *float64 `json:"price"`
	StopPrice       *float64 `json:"stopPrice"`
	AvgPx           *float64 `json:"avgPx"`
	AvgPrice        *float64 `json:"avgPrice"`
	CumQty          *int     `json:"cumQty"`
	OcoID           *int64   `json:"ocoId"`
	ParentID        *int64   `json:"parentId"`
	OrderStrategyID *int64   `json:"orderStrategyId"`
	FailureReason   *string  `json:"failureReason"`
	FailureText     *string  `json:"failureText"`
	Timestamp       string   `json:"timestamp"`
	TransactTime    string   `json:"transactTime"`
}

func (dto *BrokerOrderDTO) orderID() int64 {
	if dto.ID != 0 {
		return dto.ID
	}

	return dto.OrderID
}

func normalizeOrderStatus(raw string) OrderStatus {
	switch strings.ToLower(raw) {
	case "working", "accepted", "open":
		return OrderStatusWorking
	case "pending", "pendingnew", "pending new", "suspended":
		return OrderStatusPending
	case "filled", "completed":
		return OrderStatusFilled
	case "canceled", "cancelled", "expired":
		return OrderStatusCancelled
	case "rejected":
		return OrderStatusRejected
	default:
		return OrderStatusUnknown
	}
}

func parseWireTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339, raw)
}

// ToBrokerOrder converts the wire shape into the canonical internal order.
func (dto *BrokerOrderDTO) ToBrokerOrder() (*BrokerOrder, error) {
	id := dto.orderID()
	if id == 0 {
		return nil, fmt.Errorf("BrokerOrderDTO:ToBrokerOrder(): missing order id")
	}

	createDate, err := parseWireTime(dto.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("BrokerOrderDTO:ToBrokerOrder(): failed to parse timestamp: %w", err)
	}

	transactionDate, err := parseWireTime(dto.TransactTime)
	if err != nil {
		return nil, fmt.Errorf("BrokerOrderDTO:ToBrokerOrder(): failed to parse transact time: %w", err)
	}

	status := normalizeOrderStatus(dto.OrdStatus)
	if status == OrderStatusUnknown {
		status = normalizeOrderStatus(dto.OrderStatus)
	}

	qty := 0
	if dto.Qty != nil {
		qty = *dto.Qty
	} else if dto.OrderQty != nil {
		qty = *dto.OrderQty
	}

	contractID := dto.ContractID
	if contractID == 0 {
		contractID = dto.InstrumentID
	}

	var price, stopPrice float64
	if dto.Price != nil {
		price = *dto.Price
	}
	if dto.StopPrice != nil {
		stopPrice = *dto.StopPrice
	}

	var fillPrice float64
	if dto.AvgPx != nil {
		fillPrice = *dto.AvgPx
	} else if dto.AvgPrice != nil {
		fillPrice = *dto.AvgPrice
	}

	filledQty := 0
	if dto.CumQty != nil {
		filledQty = *dto.CumQty
	}

	var reason string
	if dto.FailureText != nil {
		reason = *dto.FailureText
	} else if dto.FailureReason != nil {
		reason = *dto.FailureReason
	}

	return &BrokerOrder{
		ID:              id,
		AccountID:       dto.AccountID,
		ContractID:      contractID,
		Symbol:          dto.Symbol,
		Action:          OrderAction(dto.Action),
		OrderType:       OrderType(dto.OrderType),
		Quantity:        qty,
		Price:           price,
		StopPrice:       stopPrice,
		Status:          status,
		StrategyID:      dto.OrderStrategyID,
		FilledQuantity:  filledQty,
		FillPrice:       fillPrice,
		Reason:          reason,
		CreateDate:      createDate,
		TransactionDate: transactionDate,
	}, nil
}
