package eventservices

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// DefaultContractCacheTTL is how long a resolved front-month contract stays
// valid before the resolver asks the broker again.
const DefaultContractCacheTTL = 24 * time.Hour

func FetchContractSuggestions(ctx context.Context, client *brokerclient.Client, rootSymbol string) ([]eventmodels.ContractDTO, error) {
	params := url.Values{}
	params.Add("t", rootSymbol)
	params.Add("l", strconv.Itoa(10))

	var contracts []eventmodels.ContractDTO
	if err := client.Get(ctx, "/contract/suggest", params, &contracts); err != nil {
		return nil, fmt.Errorf("FetchContractSuggestions: failed to fetch suggestions: %w", err)
	}

	return contracts, nil
}

func FetchContractByName(ctx context.Context, client *brokerclient.Client, name string) ([]eventmodels.ContractDTO, error) {
	params := url.Values{}
	params.Add("name", name)

	var contracts []eventmodels.ContractDTO
	if err := client.Get(ctx, "/contract/find", params, &contracts); err != nil {
		return nil, fmt.Errorf("FetchContractByName: failed to find contract: %w", err)
	}

	return contracts, nil
}

// ContractResolver resolves a root symbol to its current front-month
// contract, caching results by root symbol with a TTL. A cached entry older
// than the TTL is treated as a miss.
type ContractResolver struct {
	mu     sync.Mutex
	client *brokerclient.Client
	cache  map[string]*eventmodels.Contract
	ttl    time.Duration
	now    func() time.Time
}

func NewContractResolver(client *brokerclient.Client, ttl time.Duration) *ContractResolver {
	return &ContractResolver{
		client: client,
		cache:  make(map[string]*eventmodels.Contract),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Resolve returns the front-month contract for a root symbol.
func (r *ContractResolver) Resolve(ctx context.Context, rootSymbol string) (*eventmodels.Contract, error) {
	now := r.now()

	r.mu.Lock()
	if cached, ok := r.cache[rootSymbol]; ok && now.Sub(cached.ResolvedAt) < r.ttl {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	candidates, err := FetchContractSuggestions(ctx, r.client, rootSymbol)
	if err != nil {
		return nil, fmt.Errorf("ContractResolver:Resolve(): %w", err)
	}

	if len(candidates) == 0 {
		log.Debugf("ContractResolver.Resolve: no suggestions for %s, falling back to find by name", rootSymbol)

		candidates, err = FetchContractByName(ctx, r.client, rootSymbol)
		if err != nil {
			return nil, fmt.Errorf("ContractResolver:Resolve(): %w", err)
		}
	}

	contract, err := pickFrontMonth(rootSymbol, candidates, now)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[rootSymbol] = contract
	r.mu.Unlock()

	log.Infof("ContractResolver.Resolve: resolved %s to %s", rootSymbol, contract)

	return contract, nil
}

// pickFrontMonth filters candidates to those that have not expired and picks
// the one with the nearest future expiration. Contracts without an
// expiration are eligible but only chosen when no dated contract qualifies.
func pickFrontMonth(rootSymbol string, candidates []eventmodels.ContractDTO, now time.Time) (*eventmodels.Contract, error) {
	var frontMonth *eventmodels.Contract
	var undated *eventmodels.Contract

	for i := range candidates {
		contract, err := candidates[i].ToContract(rootSymbol, now)
		if err != nil {
			log.Warnf("pickFrontMonth: skipping candidate: %v", err)
			continue
		}

		if contract.Expiration == nil {
			if undated == nil {
				undated = contract
			}
			continue
		}

		if !contract.Expiration.After(now) {
			continue
		}

		if frontMonth == nil || contract.Expiration.Before(*frontMonth.Expiration) {
			frontMonth = contract
		}
	}

	if frontMonth != nil {
		return frontMonth, nil
	}

	if undated != nil {
		return undated, nil
	}

	return nil, &eventmodels.ContractNotFoundError{Symbol: rootSymbol}
}
