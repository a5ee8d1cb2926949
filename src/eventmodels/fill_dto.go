package eventmodels

import (
	"fmt"
	"time"
)

// Fill is one execution against an order.
type Fill struct {
	ID         int64
	OrderID    int64
	ContractID int64
	Action     OrderAction
	Quantity   int
	Price      float64
	Timestamp  time.Time
}

// SignedQuantity is positive for buys and negative for sells, matching the
// sign convention of Position.NetQuantity.
func (f Fill) SignedQuantity() int {
	if f.Action == OrderActionSell {
		return -f.Quantity
	}

	return f.Quantity
}

type FillDTO struct {
	ID         int64   `json:"id"`
	OrderID    int64   `json:"orderId"`
	ContractID int64   `json:"contractId"`
	Action     string  `json:"action"`
	Qty        int     `json:"qty"`
	Price      float64 `json:"price"`
	Timestamp  string  `json:"timestamp"`
}

func (dto *FillDTO) ToFill() (*Fill, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("FillDTO:ToFill(): failed to parse timestamp: %w", err)
	}

	return &Fill{
		ID:         dto.ID,
		OrderID:    dto.OrderID,
		ContractID: dto.ContractID,
		Action:     OrderAction(dto.Action),
		Quantity:   dto.Qty,
		Price:      dto.Price,
		Timestamp:  timestamp,
	}, nil
}
