package eventservices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
)

// fakeBroker serves the contract and order endpoints and counts hits per path.
type fakeBroker struct {
	mu      sync.Mutex
	hits    map[string]int
	handler map[string]http.HandlerFunc
	server  *httptest.Server
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()

	fb := &fakeBroker{
		hits:    make(map[string]int),
		handler: make(map[string]http.HandlerFunc),
	}

	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.hits[r.URL.Path]++
		h, ok := fb.handler[r.URL.Path]
		fb.mu.Unlock()

		if !ok {
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		h(w, r)
	}))
	t.Cleanup(fb.server.Close)

	fb.handler["/contract/suggest"] = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]eventmodels.ContractDTO{
			{ID: 12345, Name: "ESU4", ExpirationDate: time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)},
		})
	}

	return fb
}

func (fb *fakeBroker) on(path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handler[path] = h
}

func (fb *fakeBroker) hitCount(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[path]
}

func newTestGateway(t *testing.T, fb *fakeBroker) (*OrderGateway, *eventmodels.OrderDataStore, *eventmodels.CorrelationStore) {
	t.Helper()

	eventpubsub.Init()

	client := brokerclient.NewClient(fb.server.URL, "", brokerclient.Credentials{})
	resolver := NewContractResolver(client, DefaultContractCacheTTL)
	orders := eventmodels.NewOrderDataStore()
	correlations := eventmodels.NewCorrelationStore()

	return NewOrderGateway(client, resolver, orders, correlations), orders, correlations
}

func int64Ptr(v int64) *int64 {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestOrderGateway_PlaceBracketOrder(t *testing.T) {
	t.Run("maps every echoed leg to the originating signal", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		fb.on("/order/placeoso", func(w http.ResponseWriter, r *http.Request) {
			var dto map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&dto))
			assert.Equal(t, "Buy", dto["action"])
			assert.Equal(t, "Sell", dto["bracket1"].(map[string]interface{})["action"])
			assert.Equal(t, "Sell", dto["bracket2"].(map[string]interface{})["action"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderId": 101, "bracket1Id": 102, "bracket2Id": 103,
			})
		})

		gateway, orders, correlations := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID:  10,
			Action:     eventmodels.OrderActionBuy,
			Symbol:     "ES",
			Quantity:   2,
			OrderType:  eventmodels.OrderTypeLimit,
			Price:      floatPtr(4500),
			StopPrice:  floatPtr(4490),
			TakeProfit: floatPtr(4520),
			SignalID:   "sig-1",
		}

		// act
		result, err := gateway.PlaceBracketOrder(context.Background(), req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(101), result.OrderID)
		require.NotNil(t, result.StopLegOrderID)
		require.NotNil(t, result.TargetLegOrderID)

		for _, orderID := range []int64{101, 102, 103} {
			signalID, ok := correlations.ResolveSignal(orderID)
			require.True(t, ok, "order %d", orderID)
			assert.Equal(t, "sig-1", signalID)
		}

		entry, _ := orders.Get(101)
		assert.Equal(t, eventmodels.OrderRoleEntry, entry.Role)

		stop, _ := orders.Get(102)
		assert.Equal(t, eventmodels.OrderRoleStop, stop.Role)
		assert.Equal(t, eventmodels.OrderActionSell, stop.Action)

		target, _ := orders.Get(103)
		assert.Equal(t, eventmodels.OrderRoleTarget, target.Role)
	})

	t.Run("wrong-side stop is still placed", func(t *testing.T) {
		// arrange: long entry at 100 with stop above entry
		fb := newFakeBroker(t)
		fb.on("/order/placeoso", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"orderId": 201})
		})

		gateway, _, _ := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID: 10,
			Action:    eventmodels.OrderActionBuy,
			Symbol:    "ES",
			Quantity:  1,
			OrderType: eventmodels.OrderTypeLimit,
			Price:     floatPtr(100),
			StopPrice: floatPtr(105),
		}

		// act
		result, err := gateway.PlaceBracketOrder(context.Background(), req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(201), result.OrderID)
		assert.Equal(t, 1, fb.hitCount("/order/placeoso"))
	})

	t.Run("request without exit legs is rejected locally", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, _, _ := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID: 10,
			Action:    eventmodels.OrderActionBuy,
			Symbol:    "ES",
			Quantity:  1,
			OrderType: eventmodels.OrderTypeMarket,
		}

		// act
		_, err := gateway.PlaceBracketOrder(context.Background(), req)

		// assert
		var validationErr *eventmodels.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, 0, fb.hitCount("/order/placeoso"))
	})
}

func TestOrderGateway_PlaceSimpleOrder(t *testing.T) {
	t.Run("broker rejection surfaces as a placement error", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		fb.on("/order/placeorder", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"failureReason": "RiskCheckFailed",
				"failureText":   "position limit exceeded",
			})
		})

		gateway, orders, _ := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID: 10,
			Action:    eventmodels.OrderActionBuy,
			Symbol:    "ES",
			Quantity:  1,
			OrderType: eventmodels.OrderTypeMarket,
			SignalID:  "sig-9",
		}

		// act
		_, err := gateway.PlaceSimpleOrder(context.Background(), req)

		// assert
		var placementErr *eventmodels.PlacementError
		require.ErrorAs(t, err, &placementErr)
		assert.Equal(t, "RiskCheckFailed", placementErr.Reason)
		assert.Contains(t, placementErr.Error(), "position limit exceeded")
		assert.Equal(t, 0, orders.Len())
	})

	t.Run("invalid request never reaches the network", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, _, _ := newTestGateway(t, fb)

		// act
		_, err := gateway.PlaceSimpleOrder(context.Background(), &eventmodels.OrderRequest{})

		// assert
		var validationErr *eventmodels.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, 0, fb.hitCount("/contract/suggest"))
	})
}

func TestOrderGateway_PlaceStrategyOrder(t *testing.T) {
	t.Run("records the strategy correlation", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		fb.on("/orderstrategy/startorderstrategy", func(w http.ResponseWriter, r *http.Request) {
			var dto map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&dto))

			var params map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(dto["params"].(string)), &params))
			assert.Equal(t, float64(2), params["entryQuantity"])
			assert.Equal(t, float64(10), params["triggerDistance"])
			assert.Equal(t, float64(5), params["trailDistance"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderStrategy": map[string]interface{}{"id": 77, "accountId": 10},
			})
		})

		gateway, _, correlations := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID:       10,
			Action:          eventmodels.OrderActionBuy,
			Symbol:          "ES",
			Quantity:        2,
			OrderType:       eventmodels.OrderTypeMarket,
			TrailingTrigger: floatPtr(10),
			TrailingOffset:  floatPtr(5),
			SignalID:        "sig-1",
		}

		// act
		strategyID, err := gateway.PlaceStrategyOrder(context.Background(), req)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(77), strategyID)

		strategy, ok := correlations.ActiveStrategy(77)
		require.True(t, ok)
		assert.Equal(t, "sig-1", strategy.SignalID)
		assert.Empty(t, strategy.ChildOrderIDs)

		// children discovered later resolve transitively
		correlations.RecordChildDiscovery(77, 301, eventmodels.OrderRoleEntry)
		signalID, ok := correlations.ResolveSignal(301)
		require.True(t, ok)
		assert.Equal(t, "sig-1", signalID)
	})

	t.Run("missing trailing parameters are rejected locally", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, _, _ := newTestGateway(t, fb)

		req := &eventmodels.OrderRequest{
			AccountID:       10,
			Action:          eventmodels.OrderActionSell,
			Symbol:          "ES",
			Quantity:        1,
			OrderType:       eventmodels.OrderTypeMarket,
			TrailingTrigger: floatPtr(10),
		}

		// act
		_, err := gateway.PlaceStrategyOrder(context.Background(), req)

		// assert
		var validationErr *eventmodels.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestOrderGateway_CancelOrder(t *testing.T) {
	t.Run("locally terminal order cancels without a network call", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, orders, _ := newTestGateway(t, fb)
		orders.GetOrAdd(&eventmodels.BrokerOrder{ID: 100, Status: eventmodels.OrderStatusFilled})

		// act
		err := gateway.CancelOrder(context.Background(), 100)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 0, fb.hitCount("/order/cancelorder"))
	})

	t.Run("broker-side terminal order still reports success", func(t *testing.T) {
		// arrange: locally working, but the broker already filled it
		fb := newFakeBroker(t)
		fb.on("/order/cancelorder", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"failureReason": "AlreadyFilled"})
		})

		gateway, orders, _ := newTestGateway(t, fb)
		orders.GetOrAdd(&eventmodels.BrokerOrder{ID: 100, Status: eventmodels.OrderStatusWorking})

		// act
		err := gateway.CancelOrder(context.Background(), 100)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 1, fb.hitCount("/order/cancelorder"))
	})

	t.Run("real cancel failure is an error", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		fb.on("/order/cancelorder", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"failureReason": "UnknownOrder"})
		})

		gateway, _, _ := newTestGateway(t, fb)

		// act
		err := gateway.CancelOrder(context.Background(), 999)

		// assert
		assert.Error(t, err)
	})
}

func TestOrderGateway_ModifyOrder(t *testing.T) {
	t.Run("bracket leg cannot be modified in place", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, orders, _ := newTestGateway(t, fb)
		orders.GetOrAdd(&eventmodels.BrokerOrder{ID: 102, Status: eventmodels.OrderStatusWorking, Role: eventmodels.OrderRoleStop})

		// act
		err := gateway.ModifyOrder(context.Background(), 102, 4485, 2)

		// assert
		var notSupported *eventmodels.ModifyNotSupportedError
		require.ErrorAs(t, err, &notSupported)
		assert.Equal(t, int64(102), notSupported.OrderID)
		assert.Equal(t, 0, fb.hitCount("/order/modifyorder"))
	})

	t.Run("strategy child cannot be modified in place", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		gateway, orders, _ := newTestGateway(t, fb)
		orders.GetOrAdd(&eventmodels.BrokerOrder{ID: 301, Status: eventmodels.OrderStatusWorking, StrategyID: int64Ptr(77)})

		// act
		err := gateway.ModifyOrder(context.Background(), 301, 4485, 2)

		// assert
		var notSupported *eventmodels.ModifyNotSupportedError
		assert.ErrorAs(t, err, &notSupported)
	})

	t.Run("standalone order is modified", func(t *testing.T) {
		// arrange
		fb := newFakeBroker(t)
		fb.on("/order/modifyorder", func(w http.ResponseWriter, r *http.Request) {
			var dto map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&dto))
			assert.Equal(t, float64(100), dto["orderId"])
			assert.Equal(t, 4485.5, dto["price"])

			json.NewEncoder(w).Encode(map[string]interface{}{"orderId": 100})
		})

		gateway, orders, _ := newTestGateway(t, fb)
		orders.GetOrAdd(&eventmodels.BrokerOrder{ID: 100, Status: eventmodels.OrderStatusWorking, Role: eventmodels.OrderRoleStandalone})

		// act
		err := gateway.ModifyOrder(context.Background(), 100, 4485.5, 2)

		// assert
		require.NoError(t, err)
		assert.Equal(t, 1, fb.hitCount("/order/modifyorder"))
	})
}
