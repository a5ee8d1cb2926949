package eventmodels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderDataStore_GetOrAdd(t *testing.T) {
	t.Run("adds an unseen order", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		order := &BrokerOrder{ID: 1, AccountID: 10, Status: OrderStatusWorking}

		// act
		tracked, created := store.GetOrAdd(order)

		// assert
		assert.True(t, created)
		assert.Same(t, order, tracked)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("returns the existing order on a repeat observation", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		first := &BrokerOrder{ID: 1, Status: OrderStatusWorking}
		store.GetOrAdd(first)

		// act
		tracked, created := store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusFilled})

		// assert
		assert.False(t, created)
		assert.Same(t, first, tracked)
		assert.Equal(t, OrderStatusWorking, tracked.Status)
	})
}

func TestOrderDataStore_Update(t *testing.T) {
	t.Run("emits a status transition", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusPending})

		// act
		updates := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// assert
		require.Len(t, updates, 1)
		assert.Equal(t, "status", updates[0].Field)
		assert.Equal(t, OrderStatusPending, updates[0].Old)
		assert.Equal(t, OrderStatusWorking, updates[0].New)
	})

	t.Run("terminal status is sticky", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusFilled})

		// act: a stale sync pass reports the order as still working
		updates := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// assert
		assert.Empty(t, updates)
		tracked, ok := store.Get(1)
		require.True(t, ok)
		assert.Equal(t, OrderStatusFilled, tracked.Status)
	})

	t.Run("same status emits nothing", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// act
		updates := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// assert
		assert.Empty(t, updates)
	})

	t.Run("unknown incoming status never overwrites", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// act
		updates := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusUnknown})

		// assert
		assert.Empty(t, updates)
		tracked, _ := store.Get(1)
		assert.Equal(t, OrderStatusWorking, tracked.Status)
	})

	t.Run("fill fields only transition once per value", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusWorking})

		// act
		first := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusFilled, FilledQuantity: 2, FillPrice: 4500.25})
		second := store.Update(&BrokerOrder{ID: 1, Status: OrderStatusFilled, FilledQuantity: 2, FillPrice: 4500.25})

		// assert
		assert.Len(t, first, 3)
		assert.Empty(t, second)
	})

	t.Run("role is immutable once set", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()
		store.GetOrAdd(&BrokerOrder{ID: 1, Status: OrderStatusWorking})
		store.SetRole(1, OrderRoleStop)

		// act
		store.SetRole(1, OrderRoleTarget)
		store.Update(&BrokerOrder{ID: 1, Status: OrderStatusWorking, Role: OrderRoleEntry})

		// assert
		tracked, _ := store.Get(1)
		assert.Equal(t, OrderRoleStop, tracked.Role)
	})

	t.Run("untracked order is a no-op", func(t *testing.T) {
		// arrange
		store := NewOrderDataStore()

		// act
		updates := store.Update(&BrokerOrder{ID: 99, Status: OrderStatusFilled})

		// assert
		assert.Nil(t, updates)
		assert.Equal(t, 0, store.Len())
	})
}

func TestOrderDataStore_WorkingOrders(t *testing.T) {
	// arrange
	store := NewOrderDataStore()
	store.GetOrAdd(&BrokerOrder{ID: 1, AccountID: 10, Status: OrderStatusWorking})
	store.GetOrAdd(&BrokerOrder{ID: 2, AccountID: 10, Status: OrderStatusFilled})
	store.GetOrAdd(&BrokerOrder{ID: 3, AccountID: 10, Status: OrderStatusPending})
	store.GetOrAdd(&BrokerOrder{ID: 4, AccountID: 20, Status: OrderStatusWorking})

	// act
	working := store.WorkingOrders(10)

	// assert
	require.Len(t, working, 2)
	for _, order := range working {
		assert.Equal(t, int64(10), order.AccountID)
		assert.False(t, order.Status.IsTerminal())
	}
}
