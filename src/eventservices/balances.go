package eventservices

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// FetchCashBalances pulls the cash balance snapshot for an account.
func FetchCashBalances(ctx context.Context, client *brokerclient.Client, accountID int64) ([]eventmodels.CashBalanceDTO, error) {
	params := url.Values{}
	params.Add("accountId", strconv.FormatInt(accountID, 10))

	var dtos []eventmodels.CashBalanceDTO
	if err := client.Get(ctx, "/cashbalance/list", params, &dtos); err != nil {
		return nil, fmt.Errorf("FetchCashBalances: failed to fetch balances: %w", err)
	}

	return dtos, nil
}
