package eventmodels

// OrderRequest is the inbound instruction from a signal producer. The
// producer itself is opaque to this engine; the request is everything we
// know about its intent.
type OrderRequest struct {
	AccountID       int64       `json:"accountId"`
	Action          OrderAction `json:"action"`
	Symbol          string      `json:"symbol"`
	Quantity        int         `json:"quantity"`
	OrderType       OrderType   `json:"orderType"`
	Price           *float64    `json:"price,omitempty"`
	StopPrice       *float64    `json:"stopPrice,omitempty"`
	TakeProfit      *float64    `json:"takeProfit,omitempty"`
	TrailingTrigger *float64    `json:"trailing_trigger,omitempty"`
	TrailingOffset  *float64    `json:"trailing_offset,omitempty"`
	SignalID        string      `json:"signalId,omitempty"`
}

// Validate rejects a malformed request before any network call is made.
func (r *OrderRequest) Validate() error {
	if r.AccountID == 0 {
		return &ValidationError{Field: "accountId", Reason: "must be set"}
	}

	if r.Action != OrderActionBuy && r.Action != OrderActionSell {
		return &ValidationError{Field: "action", Reason: "must be Buy or Sell"}
	}

	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must be set"}
	}

	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	switch r.OrderType {
	case OrderTypeLimit, OrderTypeStopLimit:
		if r.Price == nil {
			return &ValidationError{Field: "price", Reason: "required for limit orders"}
		}
	case OrderTypeStop:
		if r.StopPrice == nil {
			return &ValidationError{Field: "stopPrice", Reason: "required for stop orders"}
		}
	}

	return nil
}

// IsBracket reports whether the request carries exit legs.
func (r *OrderRequest) IsBracket() bool {
	return r.StopPrice != nil || r.TakeProfit != nil
}

// IsTrailingStrategy reports whether the request asks for a broker-grouped
// trailing stop strategy.
func (r *OrderRequest) IsTrailingStrategy() bool {
	return r.TrailingTrigger != nil && r.TrailingOffset != nil
}

// BracketOrderResult carries the ids returned by a bracket placement. Leg
// ids are nil when the broker does not echo them synchronously; they are
// discovered later via push events and reconciliation.
type BracketOrderResult struct {
	OrderID          int64  `json:"orderId"`
	StopLegOrderID   *int64 `json:"stopLegOrderId,omitempty"`
	TargetLegOrderID *int64 `json:"targetLegOrderId,omitempty"`
}
