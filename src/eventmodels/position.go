package eventmodels

import "fmt"

// Position is the net holding on one contract for one account. NetQuantity
// is signed: positive for long, negative for short.
type Position struct {
	AccountID   int64
	ContractID  int64
	Symbol      string
	NetQuantity int
	AvgPrice    float64
}

// IsFlat reports whether there is no open exposure on the contract.
func (p Position) IsFlat() bool {
	return p.NetQuantity == 0
}

func (p Position) String() string {
	return fmt.Sprintf("Account: %d, Contract: %d (%s), NetQty: %d, AvgPrice: %.2f",
		p.AccountID, p.ContractID, p.Symbol, p.NetQuantity, p.AvgPrice)
}
