package eventmodels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func TestOrderRequest_Validate(t *testing.T) {
	valid := func() *OrderRequest {
		return &OrderRequest{
			AccountID: 10,
			Action:    OrderActionBuy,
			Symbol:    "ES",
			Quantity:  1,
			OrderType: OrderTypeMarket,
		}
	}

	t.Run("valid market order passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	testCases := []struct {
		name    string
		mutate  func(r *OrderRequest)
		field   string
	}{
		{
			name:   "missing account",
			mutate: func(r *OrderRequest) { r.AccountID = 0 },
			field:  "accountId",
		},
		{
			name:   "bad action",
			mutate: func(r *OrderRequest) { r.Action = "Hold" },
			field:  "action",
		},
		{
			name:   "missing symbol",
			mutate: func(r *OrderRequest) { r.Symbol = "" },
			field:  "symbol",
		},
		{
			name:   "zero quantity",
			mutate: func(r *OrderRequest) { r.Quantity = 0 },
			field:  "quantity",
		},
		{
			name:   "negative quantity",
			mutate: func(r *OrderRequest) { r.Quantity = -2 },
			field:  "quantity",
		},
		{
			name:   "limit without price",
			mutate: func(r *OrderRequest) { r.OrderType = OrderTypeLimit },
			field:  "price",
		},
		{
			name:   "stop limit without price",
			mutate: func(r *OrderRequest) { r.OrderType = OrderTypeStopLimit },
			field:  "price",
		},
		{
			name: "stop without stop price",
			mutate: func(r *OrderRequest) {
				r.OrderType = OrderTypeStop
				r.StopPrice = nil
			},
			field: "stopPrice",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			req := valid()
			tc.mutate(req)

			// act
			err := req.Validate()

			// assert
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestOrderRequest_Shape(t *testing.T) {
	t.Run("exit legs make a bracket", func(t *testing.T) {
		req := &OrderRequest{StopPrice: float64Ptr(4500)}
		assert.True(t, req.IsBracket())

		req = &OrderRequest{TakeProfit: float64Ptr(4600)}
		assert.True(t, req.IsBracket())

		assert.False(t, (&OrderRequest{}).IsBracket())
	})

	t.Run("trailing strategy needs both parameters", func(t *testing.T) {
		req := &OrderRequest{TrailingTrigger: float64Ptr(10), TrailingOffset: float64Ptr(5)}
		assert.True(t, req.IsTrailingStrategy())

		req = &OrderRequest{TrailingTrigger: float64Ptr(10)}
		assert.False(t, req.IsTrailingStrategy())
	})
}
