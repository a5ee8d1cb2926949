package eventmodels

// PositionDTO mirrors the broker's position wire shape. Net quantity comes
// back as netPos, the average price as netPrice.
type PositionDTO struct {
	AccountID  int64    `json:"accountId"`
	ContractID int64    `json:"contractId"`
	Symbol     string   `json:"symbol"`
	NetPos     int      `json:"netPos"`
	NetPrice   *float64 `json:"netPrice"`
}

func (dto *PositionDTO) ToPosition() *Position {
	var avgPrice float64
	if dto.NetPrice != nil {
		avgPrice = *dto.NetPrice
	}

	return &Position{
		AccountID:   dto.AccountID,
		ContractID:  dto.ContractID,
		Symbol:      dto.Symbol,
		NetQuantity: dto.NetPos,
		AvgPrice:    avgPrice,
	}
}
