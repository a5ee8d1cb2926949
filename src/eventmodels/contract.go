package eventmodels

import (
	"fmt"
	"time"
)

// Contract is a resolved futures instrument. Expiration is nil for contracts
// the broker reports without a maturity date.
type Contract struct {
	ID         int64
	Symbol     string
	RootSymbol string
	Expiration *time.Time
	ResolvedAt time.Time
}

func (c Contract) String() string {
	exp := "none"
	if c.Expiration != nil {
		exp = c.Expiration.Format("2006-01-02")
	}

	return fmt.Sprintf("ID (%d), Symbol: %s, Root: %s, Expiration: %s", c.ID, c.Symbol, c.RootSymbol, exp)
}
