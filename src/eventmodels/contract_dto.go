package eventmodels

import (
	"fmt"
	"time"
)

type ContractDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ExpirationDate string `json:"expirationDate"`
}

// ToContract converts the wire shape, resolving the root symbol the lookup
// was made for.
func (dto *ContractDTO) ToContract(rootSymbol string, resolvedAt time.Time) (*Contract, error) {
	if dto.ID == 0 {
		return nil, fmt.Errorf("ContractDTO:ToContract(): missing contract id")
	}

	var expiration *time.Time
	if dto.ExpirationDate != "" {
		exp, err := time.Parse(time.RFC3339, dto.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("ContractDTO:ToContract(): failed to parse expiration date: %w", err)
		}

		expiration = &exp
	}

	return &Contract{
		ID:         dto.ID,
		Symbol:     dto.Name,
		RootSymbol: rootSymbol,
		Expiration: expiration,
		ResolvedAt: resolvedAt,
	}, nil
}
