package eventmodels

import "encoding/json"

type EventName string

const (
	TradeSignalEventName           EventName = "TradeSignalEvent"
	OrderPlacedEventName           EventName = "OrderPlacedEvent"
	OrderWorkingEventName          EventName = "OrderWorkingEvent"
	OrderFilledEventName           EventName = "OrderFilledEvent"
	OrderCancelledEventName        EventName = "OrderCancelledEvent"
	PositionUpdateEventName        EventName = "PositionUpdateEvent"
	PositionClosedEventName        EventName = "PositionClosedEvent"
	AccountUpdateEventName         EventName = "AccountUpdateEvent"
	StrategyStatusChangedEventName EventName = "StrategyStatusChangedEvent"
	SyncRequestEventName           EventName = "SyncRequestEvent"
	SyncCompletedEventName         EventName = "SyncCompletedEvent"
)

// TradeSignalEvent is the opaque instruction from the signal producer,
// carrying the order request it wants executed.
type TradeSignalEvent struct {
	Request OrderRequest `json:"request"`
}

type OrderPlacedEvent struct {
	OrderID       int64       `json:"orderId"`
	AccountID     int64       `json:"accountId"`
	Symbol        string      `json:"symbol"`
	Action        OrderAction `json:"action"`
	Quantity      int         `json:"quantity"`
	OrderType     OrderType   `json:"orderType"`
	Price         *float64    `json:"price,omitempty"`
	Status        OrderStatus `json:"status"`
	SignalID      string      `json:"signalId,omitempty"`
	ParentOrderID *int64      `json:"parentOrderId,omitempty"`
	OrderRole     OrderRole   `json:"orderRole,omitempty"`
}

type OrderFilledEvent struct {
	OrderID   int64   `json:"orderId"`
	FillPrice float64 `json:"fillPrice"`
	Quantity  int     `json:"quantity"`
	SignalID  string  `json:"signalId,omitempty"`
}

type OrderCancelledEvent struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason"`
}

type PositionUpdateEvent struct {
	AccountID   int64   `json:"accountId"`
	ContractID  int64   `json:"contractId"`
	Symbol      string  `json:"symbol"`
	NetQuantity int     `json:"netQuantity"`
	AvgPrice    float64 `json:"avgPrice"`
}

type PositionClosedEvent struct {
	AccountID  int64  `json:"accountId"`
	ContractID int64  `json:"contractId"`
	Symbol     string `json:"symbol"`
}

type AccountUpdateEvent struct {
	AccountID     int64   `json:"accountId"`
	Balance       float64 `json:"balance"`
	RealizedPnL   float64 `json:"realizedPnL"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
}

type StrategyStatusChangedEvent struct {
	StrategyID int64          `json:"strategyId"`
	AccountID  int64          `json:"accountId"`
	Status     StrategyStatus `json:"status"`
	SignalID   string         `json:"signalId,omitempty"`
}

// SyncRequestEvent asks the reconciliation worker for an on-demand full sync.
type SyncRequestEvent struct {
	DryRun bool   `json:"dryRun"`
	Reason string `json:"reason"`
}

// SyncCompletedEvent publishes the authoritative set of working order ids
// after a full sync. Any locally tracked working order absent from the set is
// known stale.
type SyncCompletedEvent struct {
	AccountID            int64   `json:"accountId"`
	ValidWorkingOrderIDs []int64 `json:"validWorkingOrderIds"`
}

// Broker push entity types, normalized at the protocol boundary.
const (
	EntityTypeOrder         = "order"
	EntityTypeFill          = "fill"
	EntityTypePosition      = "position"
	EntityTypeOrderStrategy = "orderStrategy"
	EntityTypeCashBalance   = "cashBalance"
)

// BrokerEvent is one normalized push event off the websocket session,
// consumed in arrival order by the event router. Exactly one of the entity
// pointers is set, matching EntityType.
type BrokerEvent struct {
	EntityType string
	EventType  string
	Order      *BrokerOrderDTO
	Fill       *FillDTO
	Position   *PositionDTO
	Strategy   *OrderStrategyDTO
	Balance    *CashBalanceDTO
	Raw        json.RawMessage
}
