// Package aggregate reduces multi-source APY quotes to one APY per protocol.
// Several strategies are available since upstream feeds differ in reliability:
// TVL-weighted averaging for healthy feeds, median and trimmed mean when
// sources disagree or outliers are expected.
package aggregate

import (
	"sort"

	"github.com/yourorg/defi-portfolio-engine/internal/model"
)

// ByMode dispatches to the aggregation strategy named in configuration.
// Unknown modes fall back to weighted aggregation.
func ByMode(mode string, quotes []model.APYQuote) (model.ProtocolAPYs, error) {
	switch mode {
	case "median":
		return Median(quotes)
	case "trimmed":
		return TrimmedMean(quotes, 0.1)
	default:
		return Weighted(quotes)
	}
}

// Weighted computes the TVL-weighted average APY per protocol, with unit
// weight for quotes that do not report TVL. Every protocol bucket must be
// covered by at least one quote.
func Weighted(quotes []model.APYQuote) (model.ProtocolAPYs, error) {
	var weighted, weights [model.NumProtocols]float64

	for _, q := range quotes {
		if !inRange(q.Protocol) || q.APY < 0 {
			continue
		}
		w := q.TVL
		if w <= 0 {
			w = 1
		}
		weighted[q.Protocol] += q.APY * w
		weights[q.Protocol] += w
	}

	if err := requireCoverage(weights); err != nil {
		return model.ProtocolAPYs{}, err
	}

	return model.ProtocolAPYs{
		Lending:       weighted[model.ProtocolLending] / weights[model.ProtocolLending],
		LiquidityPool: weighted[model.ProtocolLiquidityPool] / weights[model.ProtocolLiquidityPool],
		YieldFarm:     weighted[model.ProtocolYieldFarm] / weights[model.ProtocolYieldFarm],
	}, nil
}

// Median computes the per-protocol median APY, robust against outliers from
// unreliable sources.
func Median(quotes []model.APYQuote) (model.ProtocolAPYs, error) {
	groups := groupAPYs(quotes)

	var out [model.NumProtocols]float64
	var coverage [model.NumProtocols]float64
	for p, values := range groups {
		if len(values) == 0 {
			continue
		}
		coverage[p] = 1
		out[p] = median(values)
	}

	if err := requireCoverage(coverage); err != nil {
		return model.ProtocolAPYs{}, err
	}

	return model.ProtocolAPYs{
		Lending:       out[model.ProtocolLending],
		LiquidityPool: out[model.ProtocolLiquidityPool],
		YieldFarm:     out[model.ProtocolYieldFarm],
	}, nil
}

// TrimmedMean drops the given fraction of highest and lowest APYs per
// protocol before averaging. Falls back to the plain mean for buckets too
// small to trim.
func TrimmedMean(quotes []model.APYQuote, trimPercent float64) (model.ProtocolAPYs, error) {
	if trimPercent < 0 || trimPercent >= 0.5 {
		return Weighted(quotes)
	}

	groups := groupAPYs(quotes)

	var out [model.NumProtocols]float64
	var coverage [model.NumProtocols]float64
	for p, values := range groups {
		if len(values) == 0 {
			continue
		}
		coverage[p] = 1

		sort.Float64s(values)
		trim := int(float64(len(values)) * trimPercent)
		if len(values)-2*trim < 1 {
			trim = 0
		}
		out[p] = mean(values[trim : len(values)-trim])
	}

	if err := requireCoverage(coverage); err != nil {
		return model.ProtocolAPYs{}, err
	}

	return model.ProtocolAPYs{
		Lending:       out[model.ProtocolLending],
		LiquidityPool: out[model.ProtocolLiquidityPool],
		YieldFarm:     out[model.ProtocolYieldFarm],
	}, nil
}

// groupAPYs buckets non-negative APY values by protocol
func groupAPYs(quotes []model.APYQuote) [model.NumProtocols][]float64 {
	var groups [model.NumProtocols][]float64
	for _, q := range quotes {
		if !inRange(q.Protocol) || q.APY < 0 {
			continue
		}
		groups[q.Protocol] = append(groups[q.Protocol], q.APY)
	}
	return groups
}

// requireCoverage errors when any protocol bucket received no usable quote
func requireCoverage(weights [model.NumProtocols]float64) error {
	for p := 0; p < model.NumProtocols; p++ {
		if weights[p] == 0 {
			return model.NewValidationError(
				"quotes", "no usable APY quote for protocol %s", model.Protocol(p))
		}
	}
	return nil
}

func inRange(p model.Protocol) bool {
	return p >= 0 && p < model.NumProtocols
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
