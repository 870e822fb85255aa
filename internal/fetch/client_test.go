package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/defi-portfolio-engine/internal/config"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLendingClient_FetchQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[
			{"symbol":"USDC","supply_apy":4.2,"total_supplied":1000000},
			{"symbol":"DAI","supply_apy":3.8,"total_supplied":500000}
		]}`))
	}))
	defer srv.Close()

	cfg := config.Config{
		LendingAPIURL: srv.URL,
		APIKeys:       map[string]string{"lending": "test-key"},
	}

	quotes, err := NewLendingClient(cfg).FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, model.ProtocolLending, quotes[0].Protocol)
	assert.Equal(t, "lending:USDC", quotes[0].Source)
	assert.Equal(t, 4.2, quotes[0].APY)
	assert.Equal(t, 1000000.0, quotes[0].TVL)
	assert.NotZero(t, quotes[0].CollectedAt)
}

func TestLendingClient_EmptyMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets":[]}`))
	}))
	defer srv.Close()

	_, err := NewLendingClient(config.Config{LendingAPIURL: srv.URL}).
		FetchQuotes(context.Background())
	assert.Error(t, err)
}

func TestLendingClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewLendingClient(config.Config{LendingAPIURL: srv.URL}).
		FetchQuotes(context.Background())
	assert.Error(t, err)
}

func TestLiquidityPoolClient_FetchQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Write([]byte(`{"data":{"pools":[
			{"id":"0xabc","feeApy":11.5,"totalValueLockedUSD":250000}
		]}}`))
	}))
	defer srv.Close()

	cfg := config.Config{LiquidityAPIURL: srv.URL}
	quotes, err := NewLiquidityPoolClient(cfg).FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	assert.Equal(t, model.ProtocolLiquidityPool, quotes[0].Protocol)
	assert.Equal(t, "pool:0xabc", quotes[0].Source)
	assert.Equal(t, 11.5, quotes[0].APY)
}

func TestFarmClient_FetchQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vaults":[
			{"address":"0xdef","net_apy":28.0,"tvl":75000}
		]}`))
	}))
	defer srv.Close()

	quotes, err := NewFarmClient(config.Config{FarmAPIURL: srv.URL}).
		FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	assert.Equal(t, model.ProtocolYieldFarm, quotes[0].Protocol)
	assert.Equal(t, "farm:0xdef", quotes[0].Source)
	assert.Equal(t, 28.0, quotes[0].APY)
	assert.Equal(t, 75000.0, quotes[0].TVL)
}

func TestPriceClient_NativeTokenUSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"ethereum":{"usd":3150.42}}`))
	}))
	defer srv.Close()

	price, err := NewPriceClient(config.Config{PriceAPIURL: srv.URL}).
		NativeTokenUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3150.42, price)
}

func TestPriceClient_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewPriceClient(config.Config{PriceAPIURL: srv.URL}).
		NativeTokenUSD(context.Background())
	assert.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	providers := NewProviders(config.Config{})
	assert.Len(t, providers, 3, "one client per protocol bucket")
}
