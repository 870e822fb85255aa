package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/defi-portfolio-engine/internal/config"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// LiquidityPoolClient fetches fee APY for the AMM pools the vault provides
// liquidity to. The pool data service speaks GraphQL.
type LiquidityPoolClient struct {
	cfg config.Config
}

// NewLiquidityPoolClient creates a new pool data client
func NewLiquidityPoolClient(cfg config.Config) *LiquidityPoolClient {
	return &LiquidityPoolClient{cfg: cfg}
}

// FetchQuotes retrieves current pool fee APYs.
func (c *LiquidityPoolClient) FetchQuotes(ctx context.Context) ([]model.APYQuote, error) {
	client := newRetryClient()

	graphqlQuery := `{"query":"{ pools { id feeApy totalValueLockedUSD } }"}`
	req, err := retryablehttp.NewRequest(http.MethodPost, c.cfg.LiquidityAPIURL, []byte(graphqlQuery))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if k := getAPIKey(c.cfg, "liquidity"); k != "" {
		req.Header.Set("Authorization", k)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response struct {
		Data struct {
			Pools []struct {
				ID                  string  `json:"id"`
				FeeAPY              float64 `json:"feeApy"`
				TotalValueLockedUSD float64 `json:"totalValueLockedUSD"`
			} `json:"pools"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	if len(response.Data.Pools) == 0 {
		return nil, fmt.Errorf("no pools returned from liquidity API")
	}

	quotes := make([]model.APYQuote, 0, len(response.Data.Pools))
	for _, p := range response.Data.Pools {
		quotes = append(quotes, model.APYQuote{
			Protocol:    model.ProtocolLiquidityPool,
			Source:      "pool:" + p.ID,
			APY:         p.FeeAPY,
			TVL:         p.TotalValueLockedUSD,
			CollectedAt: time.Now().Unix(),
		})
	}

	return quotes, nil
}
