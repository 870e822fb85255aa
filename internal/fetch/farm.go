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

// FarmClient fetches net APY for the incentivized farming vaults.
type FarmClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewFarmClient creates a new farming vault API client
func NewFarmClient(cfg config.Config) *FarmClient {
	return &FarmClient{
		baseURL:    cfg.FarmAPIURL,
		httpClient: StandardClient(newRetryClient()),
		apiKey:     getAPIKey(cfg, "farm"),
	}
}

// FetchQuotes retrieves current net APYs for the farming vaults.
func (c *FarmClient) FetchQuotes(ctx context.Context) ([]model.APYQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching farm vault data: %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching farm data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("farm API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Vaults []struct {
			Address string  `json:"address"`
			NetAPY  float64 `json:"net_apy"`
			TVL     float64 `json:"tvl"`
		} `json:"vaults"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	if len(response.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults returned from farm API")
	}

	quotes := make([]model.APYQuote, 0, len(response.Vaults))
	for _, v := range response.Vaults {
		quotes = append(quotes, model.APYQuote{
			Protocol:    model.ProtocolYieldFarm,
			Source:      "farm:" + v.Address,
			APY:         v.NetAPY,
			TVL:         v.TVL,
			CollectedAt: time.Now().Unix(),
		})
	}

	logrus.Debugf("Received %d farm vault quotes", len(quotes))
	return quotes, nil
}
