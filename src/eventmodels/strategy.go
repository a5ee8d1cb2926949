package eventmodels

import (
	"fmt"
	"time"
)

type StrategyStatus string

const (
	StrategyStatusPlaced        StrategyStatus = "Placed"
	StrategyStatusFinished      StrategyStatus = "Finished"
	StrategyStatusInterrupted   StrategyStatus = "Interrupted"
	StrategyStatusFailed        StrategyStatus = "Failed"
	StrategyStatusCancelled     StrategyStatus = "Cancelled"
	StrategyStatusStoppedByUser StrategyStatus = "StoppedByUser"
)

// IsTerminal reports whether the strategy has reached a final status. Every
// status but Placed is terminal.
func (s StrategyStatus) IsTerminal() bool {
	return s != StrategyStatusPlaced && s != ""
}

// OrderStrategy tracks a broker-grouped set of orders (entry plus trailing
// stop, for example) with its own lifecycle. Child order ids are not returned
// synchronously at placement; they are discovered later through push events
// and reconciliation.
type OrderStrategy struct {
	ID            int64
	AccountID     int64
	Symbol        string
	ContractID    int64
	SignalID      string
	Status        StrategyStatus
	ChildOrderIDs map[int64]OrderRole
	CreatedAt     time.Time
}

func NewOrderStrategy(id, accountID int64, symbol string, contractID int64, signalID string, createdAt time.Time) *OrderStrategy {
	return &OrderStrategy{
		ID:            id,
		AccountID:     accountID,
		Symbol:        symbol,
		ContractID:    contractID,
		SignalID:      signalID,
		Status:        StrategyStatusPlaced,
		ChildOrderIDs: make(map[int64]OrderRole),
		CreatedAt:     createdAt,
	}
}

func (s *OrderStrategy) String() string {
	return fmt.Sprintf("ID (%d), Account: %d, Symbol: %s, Status: %s, Children: %d",
		s.ID, s.AccountID, s.Symbol, s.Status, len(s.ChildOrderIDs))
}

// OrderStrategyDTO mirrors the broker's order strategy wire shape.
type OrderStrategyDTO struct {
	ID         int64  `json:"id"`
	AccountID  int64  `json:"accountId"`
	ContractID int64  `json:"contractId"`
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
}

func normalizeStrategyStatus(raw string) StrategyStatus {
	switch raw {
	case "ActiveStrategy", "Placed":
		return StrategyStatusPlaced
	case "ExecutionFinished", "Finished":
		return StrategyStatusFinished
	case "ExecutionInterrupted", "Interrupted":
		return StrategyStatusInterrupted
	case "ExecutionFailed", "Failed":
		return StrategyStatusFailed
	case "Canceled", "Cancelled":
		return StrategyStatusCancelled
	case "StoppedByUser":
		return StrategyStatusStoppedByUser
	default:
		return ""
	}
}

func (dto *OrderStrategyDTO) NormalizedStatus() StrategyStatus {
	return normalizeStrategyStatus(dto.Status)
}
