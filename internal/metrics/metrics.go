// Package metrics computes performance and risk statistics from the equity
// curve of a finished backtest run. All functions operate on per-bar simple
// returns and are pure: same inputs, same outputs.
package metrics

import (
	"math"

	"quantlab/internal/domain"
)

// TradingDaysPerYear is the annualization factor for daily bar series.
const TradingDaysPerYear = 252

// Summary aggregates every statistic computed for one equity curve.
type Summary struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	NumPeriods       int     `json:"num_periods"`
}

// Returns converts an equity curve into per-bar simple returns. A curve of
// n points yields n-1 returns.
func Returns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, curve[i].Equity/prev-1)
	}
	return rets
}

// Compute derives the full statistic set from per-bar returns, annualized
// with periodsPerYear (pass TradingDaysPerYear for daily bars). The
// risk-free rate is assumed zero.
func Compute(returns []float64, periodsPerYear int) Summary {
	return Summary{
		TotalReturn:      TotalReturn(returns),
		AnnualizedReturn: AnnualizedReturn(returns, periodsPerYear),
		Volatility:       Volatility(returns, periodsPerYear),
		SharpeRatio:      SharpeRatio(returns, periodsPerYear),
		SortinoRatio:     SortinoRatio(returns, periodsPerYear),
		MaxDrawdown:      MaxDrawdown(returns),
		CalmarRatio:      CalmarRatio(returns, periodsPerYear),
		WinRate:          WinRate(returns),
		ProfitFactor:     ProfitFactor(returns),
		NumPeriods:       len(returns),
	}
}

// TotalReturn compounds the per-period returns into one overall return.
func TotalReturn(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	return total - 1
}

// AnnualizedReturn is the geometric annual-rate equivalent of the series.
func AnnualizedReturn(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 || periodsPerYear <= 0 {
		return 0
	}
	years := float64(len(returns)) / float64(periodsPerYear)
	return math.Pow(1+TotalReturn(returns), 1/years) - 1
}

// Volatility is the annualized sample standard deviation of returns.
func Volatility(returns []float64, periodsPerYear int) float64 {
	return stddev(returns) * math.Sqrt(float64(periodsPerYear))
}

// SharpeRatio is the annualized mean return per unit of total volatility,
// zero when the series has no variance.
func SharpeRatio(returns []float64, periodsPerYear int) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(float64(periodsPerYear)) * mean(returns) / sd
}

// SortinoRatio is the annualized mean return per unit of downside
// volatility. A series with no losing periods scores zero rather than
// infinity.
func SortinoRatio(returns []float64, periodsPerYear int) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	sd := stddev(downside)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(float64(periodsPerYear)) * mean(returns) / sd
}

// MaxDrawdown is the largest peak-to-trough loss of the compounded series,
// reported as a non-positive fraction.
func MaxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (cumulative - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// CalmarRatio relates annualized return to the magnitude of the maximum
// drawdown; zero when there was no drawdown. The annual return here uses
// the arithmetic mean compounded over a year, matching the usual Calmar
// convention.
func CalmarRatio(returns []float64, periodsPerYear int) float64 {
	maxDD := MaxDrawdown(returns)
	if maxDD == 0 {
		return 0
	}
	annual := math.Pow(1+mean(returns), float64(periodsPerYear)) - 1
	return annual / math.Abs(maxDD)
}

// WinRate is the share of non-zero periods that were positive.
func WinRate(returns []float64) float64 {
	var wins, active int
	for _, r := range returns {
		if r > 0 {
			wins++
		}
		if r != 0 {
			active++
		}
	}
	if active == 0 {
		return 0
	}
	return float64(wins) / float64(active)
}

// ProfitFactor is gross profit divided by gross loss. All-gain series
// report +Inf; a flat series reports zero.
func ProfitFactor(returns []float64) float64 {
	var profit, loss float64
	for _, r := range returns {
		if r > 0 {
			profit += r
		} else {
			loss -= r
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator). Series
// shorter than two elements have no dispersion and return zero.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
