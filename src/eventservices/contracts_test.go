package eventservices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

func TestPickFrontMonth(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	dated := func(id int64, name string, exp time.Time) eventmodels.ContractDTO {
		return eventmodels.ContractDTO{ID: id, Name: name, ExpirationDate: exp.Format(time.RFC3339)}
	}

	t.Run("picks the nearest unexpired expiration", func(t *testing.T) {
		// arrange
		candidates := []eventmodels.ContractDTO{
			dated(1, "ESU4", now.Add(10*24*time.Hour)),
			dated(2, "ESM4", now.Add(-24*time.Hour)),
			dated(3, "ESZ4", now.Add(45*24*time.Hour)),
		}

		// act
		contract, err := pickFrontMonth("ES", candidates, now)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(1), contract.ID)
		assert.Equal(t, "ESU4", contract.Symbol)
		assert.Equal(t, "ES", contract.RootSymbol)
	})

	t.Run("undated contract only wins when no dated one qualifies", func(t *testing.T) {
		// arrange
		candidates := []eventmodels.ContractDTO{
			dated(1, "ESM4", now.Add(-24*time.Hour)),
			{ID: 2, Name: "ES"},
		}

		// act
		contract, err := pickFrontMonth("ES", candidates, now)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(2), contract.ID)
	})

	t.Run("all candidates expired", func(t *testing.T) {
		// arrange
		candidates := []eventmodels.ContractDTO{
			dated(1, "ESM4", now.Add(-24*time.Hour)),
		}

		// act
		_, err := pickFrontMonth("ES", candidates, now)

		// assert
		var notFound *eventmodels.ContractNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ES", notFound.Symbol)
	})

	t.Run("malformed candidates are skipped", func(t *testing.T) {
		// arrange: first candidate has no id, second has a bad date
		candidates := []eventmodels.ContractDTO{
			{Name: "ESU4", ExpirationDate: now.Add(24 * time.Hour).Format(time.RFC3339)},
			{ID: 2, Name: "ESZ4", ExpirationDate: "tomorrow"},
			dated(3, "ESH5", now.Add(90*24*time.Hour)),
		}

		// act
		contract, err := pickFrontMonth("ES", candidates, now)

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(3), contract.ID)
	})
}

func TestContractResolver_Resolve(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	newSuggestServer := func(t *testing.T, hits *int) *httptest.Server {
		t.Helper()

		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/contract/suggest", r.URL.Path)
			*hits++

			json.NewEncoder(w).Encode([]eventmodels.ContractDTO{
				{ID: 12345, Name: "ESU4", ExpirationDate: now.Add(30 * 24 * time.Hour).Format(time.RFC3339)},
			})
		}))
	}

	t.Run("caches by root symbol within the ttl", func(t *testing.T) {
		// arrange
		hits := 0
		server := newSuggestServer(t, &hits)
		defer server.Close()

		resolver := NewContractResolver(brokerclient.NewClient(server.URL, "", brokerclient.Credentials{}), DefaultContractCacheTTL)
		resolver.now = func() time.Time { return now }

		// act
		first, err := resolver.Resolve(context.Background(), "ES")
		require.NoError(t, err)
		second, err := resolver.Resolve(context.Background(), "ES")
		require.NoError(t, err)

		// assert
		assert.Equal(t, 1, hits)
		assert.Same(t, first, second)
	})

	t.Run("expired cache entry triggers a new lookup", func(t *testing.T) {
		// arrange
		hits := 0
		server := newSuggestServer(t, &hits)
		defer server.Close()

		clock := now
		resolver := NewContractResolver(brokerclient.NewClient(server.URL, "", brokerclient.Credentials{}), DefaultContractCacheTTL)
		resolver.now = func() time.Time { return clock }

		_, err := resolver.Resolve(context.Background(), "ES")
		require.NoError(t, err)

		// act: a day passes
		clock = clock.Add(DefaultContractCacheTTL + time.Minute)
		_, err = resolver.Resolve(context.Background(), "ES")
		require.NoError(t, err)

		// assert
		assert.Equal(t, 2, hits)
	})

	t.Run("falls back to find by name when suggest is empty", func(t *testing.T) {
		// arrange
		findHits := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/contract/suggest":
				json.NewEncoder(w).Encode([]eventmodels.ContractDTO{})
			case "/contract/find":
				findHits++
				assert.Equal(t, "NQ", r.URL.Query().Get("name"))
				json.NewEncoder(w).Encode([]eventmodels.ContractDTO{
					{ID: 678, Name: "NQU4", ExpirationDate: now.Add(20 * 24 * time.Hour).Format(time.RFC3339)},
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		resolver := NewContractResolver(brokerclient.NewClient(server.URL, "", brokerclient.Credentials{}), DefaultContractCacheTTL)
		resolver.now = func() time.Time { return now }

		// act
		contract, err := resolver.Resolve(context.Background(), "NQ")

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(678), contract.ID)
		assert.Equal(t, 1, findHits)
	})
}
