package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yourorg/defi-portfolio-engine/internal/config"
)

// PriceClient fetches the native-token/USD price. The analytics math itself
// operates in a single consistent unit; the price is only used by callers
// converting values for display.
type PriceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPriceClient creates a new token price client
func NewPriceClient(cfg config.Config) *PriceClient {
	return &PriceClient{
		baseURL:    cfg.PriceAPIURL,
		httpClient: StandardClient(newRetryClient()),
	}
}

// NativeTokenUSD returns the current native-token price in USD.
func (c *PriceClient) NativeTokenUSD(ctx context.Context) (float64, error) {
	url := c.baseURL + "?ids=ethereum&vs_currencies=usd"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API error: status %d", resp.StatusCode)
	}

	var response map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("error decoding response: %w", err)
	}

	price, ok := response["ethereum"]
	if !ok || price.USD <= 0 {
		return 0, fmt.Errorf("no usable price in response")
	}
	return price.USD, nil
}
