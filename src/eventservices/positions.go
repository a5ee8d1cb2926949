package eventservices

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// FetchPositions pulls the authoritative position list for an account.
func FetchPositions(ctx context.Context, client *brokerclient.Client, accountID int64) ([]*eventmodels.Position, error) {
	params := url.Values{}
	params.Add("accountId", strconv.FormatInt(accountID, 10))

	var dtos []eventmodels.PositionDTO
	if err := client.Get(ctx, "/position/list", params, &dtos); err != nil {
		return nil, fmt.Errorf("FetchPositions: failed to fetch positions: %w", err)
	}

	positions := make([]*eventmodels.Position, 0, len(dtos))
	for i := range dtos {
		positions = append(positions, dtos[i].ToPosition())
	}

	return positions, nil
}
