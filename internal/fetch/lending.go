package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/defi-portfolio-engine/internal/config"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/sirupsen/logrus"
)

// LendingClient fetches supply-side APY from the lending market's API.
type LendingClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewLendingClient creates a new lending market API client
func NewLendingClient(cfg config.Config) *LendingClient {
	return &LendingClient{
		baseURL:    cfg.LendingAPIURL,
		httpClient: StandardClient(newRetryClient()),
		apiKey:     getAPIKey(cfg, "lending"),
	}
}

// FetchQuotes retrieves the current lending supply APY.
func (c *LendingClient) FetchQuotes(ctx context.Context) ([]model.APYQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching lending market data: %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching lending data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lending API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Markets []struct {
			Symbol    string  `json:"symbol"`
			SupplyAPY float64 `json:"supply_apy"`
			TotalSupplied float64 `json:"total_supplied"`
		} `json:"markets"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	if len(response.Markets) == 0 {
		return nil, fmt.Errorf("no markets returned from lending API")
	}

	quotes := make([]model.APYQuote, 0, len(response.Markets))
	for _, m := range response.Markets {
		quotes = append(quotes, model.APYQuote{
			Protocol:    model.ProtocolLending,
			Source:      "lending:" + m.Symbol,
			APY:         m.SupplyAPY,
			TVL:         m.TotalSupplied,
			CollectedAt: time.Now().Unix(),
		})
	}

	logrus.Debugf("Received %d lending market quotes", len(quotes))
	return quotes, nil
}
