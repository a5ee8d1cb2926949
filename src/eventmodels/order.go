package eventmodels

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusUnknown   OrderStatus = "Unknown"
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusWorking   OrderStatus = "Working"
	OrderStatusFilled    OrderStatus = "Filled"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusRejected  OrderStatus = "Rejected"
)

// IsTerminal reports whether no further status transitions can occur.
// Terminal statuses are sticky: once set they are never overwritten back to a
// non-terminal status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

type OrderAction string

const (
	OrderActionBuy  OrderAction = "Buy"
	OrderActionSell OrderAction = "Sell"
)

// Opposite returns the exit-leg side for a given entry side.
func (a OrderAction) Opposite() OrderAction {
	if a == OrderActionBuy {
		return OrderActionSell
	}

	return OrderActionBuy
}

type OrderType string

const (
	OrderTypeMarket       OrderType = "Market"
	OrderTypeLimit        OrderType = "Limit"
	OrderTypeStop         OrderType = "Stop"
	OrderTypeStopLimit    OrderType = "StopLimit"
	OrderTypeTrailingStop OrderType = "TrailingStop"
)

// IsStopType reports whether the order type is protective (stop-style).
func (t OrderType) IsStopType() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit || t == OrderTypeTrailingStop
}

type OrderRole string

const (
	OrderRoleEntry      OrderRole = "entry"
	OrderRoleStop       OrderRole = "stop"
	OrderRoleTarget     OrderRole = "target"
	OrderRoleStandalone OrderRole = "standalone"
)

// BrokerOrder is the canonical internal view of a broker order, normalized
// from whichever wire shape the broker used. One BrokerOrder exists per
// broker order id.
type BrokerOrder struct {
	ID              int64
	AccountID       int64
	ContractID      int64
	Symbol          string
	Action          OrderAction
	OrderType       OrderType
	Quantity        int
	Price           float64
	StopPrice       float64
	Status          OrderStatus
	Role            OrderRole
	StrategyID      *int64
	FilledQuantity  int
	FillPrice       float64
	Reason          string
	SignalID        string
	CreateDate      time.Time
	TransactionDate time.Time
}

func (o BrokerOrder) String() string {
	return fmt.Sprintf("ID (%d), Symbol: %s, Action: %s, Type: %s, Qty: %d, Status: %s, Role: %s, AvgFillPrice: %.2f",
		o.ID, o.Symbol, o.Action, o.OrderType, o.Quantity, o.Status, o.Role, o.FillPrice)
}
