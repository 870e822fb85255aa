// Package export pushes rebalance alerts to an external webhook so operators
// can act on drift without polling the API.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/sirupsen/logrus"
)

// AlertExporter batches rebalance recommendations and ships them to a
// webhook, either when the batch fills or on a fixed interval.
type AlertExporter struct {
	url    string
	apiKey string

	httpClient *http.Client

	mu    sync.Mutex
	batch []alert

	batchSize int
	interval  time.Duration

	cancel context.CancelFunc
}

// alert is the wire shape for one exported recommendation.
type alert struct {
	UserID         string                        `json:"user_id"`
	Recommendation model.RebalanceRecommendation `json:"recommendation"`
	RaisedAt       int64                         `json:"raised_at"`
}

// NewAlertExporter starts an exporter shipping to the given webhook URL.
// Returns nil when no URL is configured; callers treat a nil exporter as
// disabled.
func NewAlertExporter(url, apiKey string, batchSize int, interval time.Duration) *AlertExporter {
	if url == "" {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = time.Minute
	}

	e := &AlertExporter{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		batch:      make([]alert, 0, batchSize),
		batchSize:  batchSize,
		interval:   interval,
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.loop(ctx)

	logrus.Info("Rebalance alert exporter initialized")
	return e
}

// Add queues one recommendation for export. Only recommendations that
// actually suggest rebalancing are worth alerting on.
func (e *AlertExporter) Add(userID string, rec model.RebalanceRecommendation) {
	if e == nil || !rec.ShouldRebalance {
		return
	}

	e.mu.Lock()
	e.batch = append(e.batch, alert{
		UserID:         userID,
		Recommendation: rec,
		RaisedAt:       time.Now().Unix(),
	})
	full := len(e.batch) >= e.batchSize
	e.mu.Unlock()

	if full {
		go e.flush()
	}
}

// Stop halts the periodic export loop and flushes what remains.
func (e *AlertExporter) Stop() {
	if e == nil {
		return
	}
	e.cancel()
	e.flush()
}

// loop exports on a fixed interval until cancelled.
func (e *AlertExporter) loop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flush()
		}
	}
}

// flush ships the current batch, if any.
func (e *AlertExporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.batch
	e.batch = make([]alert, 0, e.batchSize)
	e.mu.Unlock()

	if err := e.post(batch); err != nil {
		logrus.Warnf("Failed to export %d rebalance alerts: %v", len(batch), err)
		return
	}
	logrus.Debugf("Exported %d rebalance alerts", len(batch))
}

// post sends one batch to the webhook.
func (e *AlertExporter) post(batch []alert) error {
	body, err := json.Marshal(map[string]interface{}{
		"alerts":      batch,
		"exported_at": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
