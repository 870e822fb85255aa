// Package circuitbreaker protects the allocation path against implausible
// market data: runaway APY quotes, feeds that swing too hard between polls,
// or too few sources reporting.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, quotes are rejected
	StateHalfOpen              // Testing if feeds have recovered
)

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Maximum plausible APY in percent (e.g. 200 for 200%)
	MaxAPY float64 `json:"max_apy"`

	// Maximum relative change of the blended APY between consecutive
	// checks (e.g. 0.5 for 50%)
	MaxAPYChange float64 `json:"max_apy_change"`

	// Minimum number of distinct sources required per check
	MinSources int `json:"min_sources"`
}

// CircuitBreaker implements the circuit breaker pattern over APY quote
// batches. When tripped, callers can fall back to LastGoodQuotes; the engines
// themselves never fall back, that responsibility lives here at the boundary.
type CircuitBreaker struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time

	// Duration before auto-reset attempt
	resetDelay time.Duration

	mu sync.RWMutex

	// Most recent quote batch that passed all checks
	lastGood []model.APYQuote

	// Blended APY of the previous passing batch, for change detection
	lastBlendedAPY float64

	// Consecutive successes required to close from half-open
	successCount     int
	successThreshold int

	onTripCallback func(reason string, quotes []model.APYQuote)
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful checks needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string, quotes []model.APYQuote)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Check evaluates a quote batch against the thresholds. If the circuit is
// open it rejects the batch outright; if the batch violates a threshold it
// trips the circuit and returns an error.
func (cb *CircuitBreaker) Check(quotes []model.APYQuote) error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: market data protection engaged")
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(quotes) == 0 {
		return errors.New("no quotes provided to circuit breaker")
	}

	if n := countSources(quotes); n < cb.thresholds.MinSources {
		reason := fmt.Sprintf("insufficient source count: got %d, need %d",
			n, cb.thresholds.MinSources)
		cb.trip(reason, quotes)
		return errors.New(reason)
	}

	for _, q := range quotes {
		if q.APY > cb.thresholds.MaxAPY {
			reason := fmt.Sprintf("APY exceeds maximum threshold: %s %.2f%% > %.2f%%",
				q.Source, q.APY, cb.thresholds.MaxAPY)
			cb.trip(reason, quotes)
			return errors.New(reason)
		}
	}

	blended := blendedAPY(quotes)
	if cb.lastBlendedAPY > 0 && cb.thresholds.MaxAPYChange > 0 {
		changeRatio := math.Abs(blended-cb.lastBlendedAPY) / cb.lastBlendedAPY
		if changeRatio > cb.thresholds.MaxAPYChange {
			reason := fmt.Sprintf("blended APY moved too fast: %.2f%% (threshold: %.2f%%)",
				changeRatio*100, cb.thresholds.MaxAPYChange*100)
			cb.trip(reason, quotes)
			return errors.New(reason)
		}
	}

	logrus.Debug("Circuit breaker checks passed")

	cb.lastGood = append([]model.APYQuote(nil), quotes...)
	cb.lastBlendedAPY = blended

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: market data has recovered")
		}
	}

	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGoodQuotes returns a copy of the most recent quote batch that passed
// all checks, or nil if none has yet.
func (cb *CircuitBreaker) LastGoodQuotes() []model.APYQuote {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if len(cb.lastGood) == 0 {
		return nil
	}
	return append([]model.APYQuote(nil), cb.lastGood...)
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing feed recovery")
	}
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason string, quotes []model.APYQuote) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason, quotes)
	}
}

// countSources counts distinct quote sources in a batch
func countSources(quotes []model.APYQuote) int {
	seen := map[string]bool{}
	for _, q := range quotes {
		if q.Source != "" {
			seen[q.Source] = true
		}
	}
	return len(seen)
}

// blendedAPY is the TVL-weighted average APY of a batch, with unit weight
// for quotes that do not report TVL
func blendedAPY(quotes []model.APYQuote) float64 {
	var weighted, weights float64
	for _, q := range quotes {
		w := q.TVL
		if w <= 0 {
			w = 1
		}
		weighted += q.APY * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}
