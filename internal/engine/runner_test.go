package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"quantlab/internal/domain"
)

// barSeries builds one daily bar per close price, starting 2024-01-02.
func barSeries(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = testBar(t0.AddDate(0, 0, i), c)
	}
	return bars
}

func holdSignals(bars []domain.Bar) []domain.Signal {
	sigs := make([]domain.Signal, len(bars))
	for i, b := range bars {
		sigs[i] = domain.Signal{Timestamp: b.Timestamp, Action: domain.ActionHold}
	}
	return sigs
}

func TestRunProducesOneEquityPointPerBar(t *testing.T) {
	bars := barSeries(100, 101, 102, 103, 104)
	sigs := holdSignals(bars)
	sigs[1].Action = domain.ActionBuy
	sigs[3].Action = domain.ActionSell

	r := NewRunner(RunConfig{InitialCapital: 10000})
	result, err := r.Run(bars, sigs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(result.EquityCurve); got != len(bars) {
		t.Errorf("equity curve has %d points, want %d", got, len(bars))
	}
	for i, pt := range result.EquityCurve {
		if !pt.Timestamp.Equal(bars[i].Timestamp) {
			t.Errorf("equity point %d at %v, want %v", i, pt.Timestamp, bars[i].Timestamp)
		}
	}
}

func TestRunAllHoldEquityIsFlat(t *testing.T) {
	bars := barSeries(100, 150, 50, 125)
	r := NewRunner(RunConfig{InitialCapital: 10000})
	result, err := r.Run(bars, holdSignals(bars))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("all-hold run produced %d trades", len(result.Trades))
	}
	for i, pt := range result.EquityCurve {
		if pt.Equity != 10000 {
			t.Errorf("equity[%d] = %v, want 10000", i, pt.Equity)
		}
	}
	if result.FinalEquity != 10000 {
		t.Errorf("FinalEquity = %v, want 10000", result.FinalEquity)
	}
}

func TestRunCountsRejectedSignals(t *testing.T) {
	bars := barSeries(100, 100, 100)
	sigs := holdSignals(bars)
	sigs[0].Action = domain.ActionSell // nothing held yet
	sigs[1].Action = domain.ActionBuy
	sigs[1].Quantity = 1 // unaffordable at $100 with $50

	r := NewRunner(RunConfig{InitialCapital: 50})
	result, err := r.Run(bars, sigs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NoFillPosition != 1 {
		t.Errorf("NoFillPosition = %d, want 1", result.NoFillPosition)
	}
	if result.NoFillCash != 1 {
		t.Errorf("NoFillCash = %d, want 1", result.NoFillCash)
	}
	if len(result.Trades) != 0 {
		t.Errorf("rejected signals produced %d trades", len(result.Trades))
	}
}

func TestRunLiquidateAtEndClosesPosition(t *testing.T) {
	bars := barSeries(100, 110, 120)
	sigs := holdSignals(bars)
	sigs[0].Action = domain.ActionBuy

	r := NewRunner(RunConfig{InitialCapital: 10000, LiquidateAtEnd: true})
	result, err := r.Run(bars, sigs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 100 shares bought at $100, liquidated at $120.
	if got := len(result.Trades); got != 2 {
		t.Fatalf("got %d trades, want 2 (entry + liquidation)", got)
	}
	last := result.Trades[len(result.Trades)-1]
	if last.Side != domain.SideSell || last.Quantity != 100 || last.Price != 120 {
		t.Errorf("liquidation trade = %+v, want sell 100 @ 120", last)
	}
	if !last.Timestamp.Equal(bars[2].Timestamp) {
		t.Errorf("liquidation at %v, want last bar %v", last.Timestamp, bars[2].Timestamp)
	}
	if result.FinalEquity != 12000 {
		t.Errorf("FinalEquity = %v, want 12000", result.FinalEquity)
	}
	// Liquidation never adds an extra equity point.
	if got := len(result.EquityCurve); got != len(bars) {
		t.Errorf("equity curve has %d points, want %d", got, len(bars))
	}
}

func TestRunWithoutLiquidationKeepsPosition(t *testing.T) {
	bars := barSeries(100, 110, 120)
	sigs := holdSignals(bars)
	sigs[0].Action = domain.ActionBuy

	r := NewRunner(RunConfig{InitialCapital: 10000})
	result, err := r.Run(bars, sigs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(result.Trades); got != 1 {
		t.Errorf("got %d trades, want 1", got)
	}
	// Open position still marked at the last close.
	if result.FinalEquity != 12000 {
		t.Errorf("FinalEquity = %v, want 12000", result.FinalEquity)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	bars := barSeries(100, 98, 103, 107, 101, 99, 104, 110)
	sigs := holdSignals(bars)
	sigs[1].Action = domain.ActionBuy
	sigs[4].Action = domain.ActionSell
	sigs[5].Action = domain.ActionBuy

	cfg := RunConfig{
		InitialCapital: 25000,
		Exec: ExecConfig{
			CommissionPct: 0.001,
			SlippagePct:   0.0005,
		},
		LiquidateAtEnd: true,
	}
	a, err := NewRunner(cfg).Run(bars, sigs)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := NewRunner(cfg).Run(bars, sigs)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different results")
	}
}

func TestRunRejectsMisalignedSignals(t *testing.T) {
	bars := barSeries(100, 101, 102)

	r := NewRunner(RunConfig{InitialCapital: 10000})
	if _, err := r.Run(bars, holdSignals(bars)[:2]); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("short signal slice: err = %v, want ErrConfig", err)
	}

	shifted := holdSignals(bars)
	shifted[1].Timestamp = shifted[1].Timestamp.Add(time.Hour)
	if _, err := r.Run(bars, shifted); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("timestamp mismatch: err = %v, want ErrConfig", err)
	}
}

func TestRunRejectsBadBars(t *testing.T) {
	r := NewRunner(RunConfig{InitialCapital: 10000})

	if _, err := r.Run(nil, nil); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Errorf("empty bars: err = %v, want ErrDataIntegrity", err)
	}

	bars := barSeries(100, 101, 102)
	bars[1], bars[2] = bars[2], bars[1] // out of order
	if _, err := r.Run(bars, holdSignals(bars)); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Errorf("out-of-order bars: err = %v, want ErrDataIntegrity", err)
	}
}

func TestRunCashNeverNegative(t *testing.T) {
	// Hammer buys on every bar with tight cash; whole-share flooring plus
	// commission must keep the balance at or above zero throughout.
	bars := barSeries(33.37, 41.02, 28.99, 55.10, 47.73)
	sigs := holdSignals(bars)
	for i := range sigs {
		sigs[i].Action = domain.ActionBuy
	}

	r := NewRunner(RunConfig{
		InitialCapital: 137,
		Exec:           ExecConfig{CommissionPct: 0.0025, SlippagePct: 0.001},
	})
	result, err := r.Run(bars, sigs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, pt := range result.EquityCurve {
		if pt.Cash < 0 {
			t.Errorf("cash[%d] = %v, went negative", i, pt.Cash)
		}
	}
}
