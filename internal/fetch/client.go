// Package fetch provides API clients for the per-protocol market-data
// providers the allocation engine consumes APYs from.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/defi-portfolio-engine/internal/config"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// Provider defines the interface that all market-data clients implement
type Provider interface {
	// FetchQuotes retrieves current APY quotes from one data source
	FetchQuotes(ctx context.Context) ([]model.APYQuote, error)
}

// NewProviders creates the standard set of market-data clients, one per
// protocol bucket.
func NewProviders(cfg config.Config) []Provider {
	return []Provider{
		NewLendingClient(cfg),
		NewLiquidityPoolClient(cfg),
		NewFarmClient(cfg),
	}
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// getAPIKey retrieves an API key for a specific provider from configuration
func getAPIKey(cfg config.Config, provider string) string {
	if k, ok := cfg.APIKeys[provider]; ok {
		return k
	}
	return ""
}
