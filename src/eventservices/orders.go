package eventservices

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// FetchOrders pulls the authoritative order list for an account and
// normalizes it into canonical orders. A malformed row is logged and skipped
// so one bad record cannot fail the whole pull.
func FetchOrders(ctx context.Context, client *brokerclient.Client, accountID int64) ([]*eventmodels.BrokerOrder, error) {
	params := url.Values{}
	params.Add("accountId", strconv.FormatInt(accountID, 10))

	var dtos []eventmodels.BrokerOrderDTO
	if err := client.Get(ctx, "/order/list", params, &dtos); err != nil {
		return nil, fmt.Errorf("FetchOrders: failed to fetch orders: %w", err)
	}

	var orders []*eventmodels.BrokerOrder
	for i := range dtos {
		order, err := dtos[i].ToBrokerOrder()
		if err != nil {
			log.Errorf("FetchOrders: failed to convert order DTO: %v", err)
			continue
		}

		if order.AccountID == 0 {
			order.AccountID = accountID
		}

		orders = append(orders, order)
	}

	return orders, nil
}

// FetchFills pulls the execution history for an account.
func FetchFills(ctx context.Context, client *brokerclient.Client, accountID int64) ([]*eventmodels.Fill, error) {
	params := url.Values{}
	params.Add("accountId", strconv.FormatInt(accountID, 10))

	var dtos []eventmodels.FillDTO
	if err := client.Get(ctx, "/fill/list", params, &dtos); err != nil {
		return nil, fmt.Errorf("FetchFills: failed to fetch fills: %w", err)
	}

	var fills []*eventmodels.Fill
	for i := range dtos {
		fill, err := dtos[i].ToFill()
		if err != nil {
			log.Errorf("FetchFills: failed to convert fill DTO: %v", err)
			continue
		}

		fills = append(fills, fill)
	}

	return fills, nil
}

// FetchOrderDependents asks the broker for the orders declared dependent on
// a master order. Older gateways do not expose the endpoint; callers should
// fall back to the degraded orphan scan on error.
func FetchOrderDependents(ctx context.Context, client *brokerclient.Client, masterOrderID int64) ([]*eventmodels.BrokerOrder, error) {
	params := url.Values{}
	params.Add("masterid", strconv.FormatInt(masterOrderID, 10))

	var dtos []eventmodels.BrokerOrderDTO
	if err := client.Get(ctx, "/order/dependents", params, &dtos); err != nil {
		return nil, fmt.Errorf("FetchOrderDependents: failed to fetch dependents: %w", err)
	}

	var orders []*eventmodels.BrokerOrder
	for i := range dtos {
		order, err := dtos[i].ToBrokerOrder()
		if err != nil {
			log.Errorf("FetchOrderDependents: failed to convert order DTO: %v", err)
			continue
		}

		orders = append(orders, order)
	}

	return orders, nil
}
