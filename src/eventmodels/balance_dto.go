package eventmodels

// CashBalanceDTO mirrors the broker's cash balance wire shape.
type CashBalanceDTO struct {
	AccountID     int64    `json:"accountId"`
	Amount        float64  `json:"amount"`
	RealizedPnL   *float64 `json:"realizedPnL"`
	UnrealizedPnL *float64 `json:"openPnL"`
}

func (dto *CashBalanceDTO) ToAccountUpdateEvent() *AccountUpdateEvent {
	var realized, unrealized float64
	if dto.RealizedPnL != nil {
		realized = *dto.RealizedPnL
	}
	if dto.UnrealizedPnL != nil {
		unrealized = *dto.UnrealizedPnL
	}

	return &AccountUpdateEvent{
		AccountID:     dto.AccountID,
		Balance:       dto.Amount,
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
	}
}
