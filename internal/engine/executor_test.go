package engine

import (
	"testing"
	"time"

	"quantlab/internal/domain"
	"quantlab/internal/portfolio"
)

func testBar(ts time.Time, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    "TEST",
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
	}
}

func mustPortfolio(t *testing.T, cash float64) *portfolio.Portfolio {
	t.Helper()
	p, err := portfolio.New(cash)
	if err != nil {
		t.Fatalf("portfolio.New: %v", err)
	}
	return p
}

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestBuyCostsPrincipalPlusCommission(t *testing.T) {
	// 100 shares at $100, commission 0.1%, no slippage:
	// $10,000 principal + $10 commission = $10,010 out of cash.
	p := mustPortfolio(t, 100000)
	exec := NewExecutor(ExecConfig{CommissionPct: 0.001})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy, Quantity: 100,
	})
	if outcome != domain.OutcomeFilled {
		t.Fatalf("outcome = %q, want filled", outcome)
	}
	if trade.Quantity != 100 {
		t.Errorf("Quantity = %d, want 100", trade.Quantity)
	}
	if trade.Commission != 10 {
		t.Errorf("Commission = %v, want 10", trade.Commission)
	}
	if got := p.Cash(); got != 89990 {
		t.Errorf("Cash = %v, want 89990", got)
	}
	if got := p.Position().Quantity; got != 100 {
		t.Errorf("Position = %d shares, want 100", got)
	}
}

func TestSlippageAdjustsEffectivePrice(t *testing.T) {
	exec := NewExecutor(ExecConfig{SlippagePct: 0.01})
	bar := testBar(t0, 100)

	p := mustPortfolio(t, 100000)
	buy, _ := exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionBuy, Quantity: 10})
	if buy.Price != 101 {
		t.Errorf("buy Price = %v, want 101", buy.Price)
	}

	sell, _ := exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionSell, Quantity: 10})
	if sell.Price != 99 {
		t.Errorf("sell Price = %v, want 99", sell.Price)
	}
}

func TestSellAllZeroesPosition(t *testing.T) {
	p := mustPortfolio(t, 100000)
	exec := NewExecutor(ExecConfig{CommissionPct: 0.001})
	bar := testBar(t0, 50)

	exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionBuy, Quantity: 200})
	cashBefore := p.Cash()

	// Unsized sell closes the whole position.
	trade, outcome := exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionSell})
	if outcome != domain.OutcomeFilled {
		t.Fatalf("outcome = %q, want filled", outcome)
	}
	if trade.Quantity != 200 {
		t.Errorf("sold %d shares, want 200", trade.Quantity)
	}
	if p.HasPosition() {
		t.Error("position not zeroed by sell-all")
	}
	wantCash := cashBefore + 200*50.0 - trade.Commission
	if got := p.Cash(); got != wantCash {
		t.Errorf("Cash = %v, want %v", got, wantCash)
	}
}

func TestRoundTripWithoutFrictionsIsExact(t *testing.T) {
	p := mustPortfolio(t, 100000)
	exec := NewExecutor(ExecConfig{})
	bar := testBar(t0, 137.25)

	exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionBuy, Quantity: 300})
	exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionSell, Quantity: 300})

	if got := p.Cash(); got != 100000 {
		t.Errorf("Cash after round trip = %v, want exactly 100000", got)
	}
}

func TestBuyPartialFillCapsAtAffordable(t *testing.T) {
	// $1,000 of cash at $100/share affords 10 shares; request 50.
	p := mustPortfolio(t, 1000)
	exec := NewExecutor(ExecConfig{})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy, Quantity: 50,
	})
	if outcome != domain.OutcomePartialFill {
		t.Fatalf("outcome = %q, want partial_fill", outcome)
	}
	if trade.Quantity != 10 {
		t.Errorf("filled %d shares, want 10", trade.Quantity)
	}
	if p.Cash() < 0 {
		t.Errorf("Cash went negative: %v", p.Cash())
	}
}

func TestBuyPartialFillNeverFractional(t *testing.T) {
	// Commission makes 10 shares unaffordable: floor to 9, never 9.99.
	p := mustPortfolio(t, 1000)
	exec := NewExecutor(ExecConfig{CommissionPct: 0.01})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy, Quantity: 10,
	})
	if outcome != domain.OutcomePartialFill {
		t.Fatalf("outcome = %q, want partial_fill", outcome)
	}
	if trade.Quantity != 9 {
		t.Errorf("filled %d shares, want 9", trade.Quantity)
	}
	if p.Cash() < 0 {
		t.Errorf("Cash went negative: %v", p.Cash())
	}
}

func TestBuyFractionalRequestTruncates(t *testing.T) {
	p := mustPortfolio(t, 100000)
	exec := NewExecutor(ExecConfig{})

	trade, _ := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy, Quantity: 7.9,
	})
	if trade.Quantity != 7 {
		t.Errorf("filled %d shares, want 7 (truncated toward zero)", trade.Quantity)
	}
}

func TestBuyNoFillWhenBroke(t *testing.T) {
	p := mustPortfolio(t, 50)
	exec := NewExecutor(ExecConfig{})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy, Quantity: 1,
	})
	if trade != nil {
		t.Fatal("trade executed with insufficient cash")
	}
	if outcome != domain.OutcomeNoFillCash {
		t.Errorf("outcome = %q, want no_fill_insufficient_cash", outcome)
	}
	if got := p.Cash(); got != 50 {
		t.Errorf("Cash = %v, want untouched 50", got)
	}
}

func TestSellNoFillWithoutPosition(t *testing.T) {
	p := mustPortfolio(t, 1000)
	exec := NewExecutor(ExecConfig{})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionSell, Quantity: 5,
	})
	if trade != nil {
		t.Fatal("sell executed with no position")
	}
	if outcome != domain.OutcomeNoFillPosition {
		t.Errorf("outcome = %q, want no_fill_no_position", outcome)
	}
}

func TestSellCappedAtHeldShares(t *testing.T) {
	p := mustPortfolio(t, 10000)
	exec := NewExecutor(ExecConfig{})
	bar := testBar(t0, 10)

	exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionBuy, Quantity: 100})
	trade, outcome := exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionSell, Quantity: 500})
	if trade.Quantity != 100 {
		t.Errorf("sold %d shares, want 100 (all held)", trade.Quantity)
	}
	if outcome != domain.OutcomePartialFill {
		t.Errorf("outcome = %q, want partial_fill", outcome)
	}
}

func TestPositionSizePctLimitsBudget(t *testing.T) {
	// Half the cash may be deployed: $10,000 × 0.5 at $100 → 50 shares.
	p := mustPortfolio(t, 10000)
	exec := NewExecutor(ExecConfig{PositionSizePct: 0.5})

	trade, _ := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionBuy,
	})
	if trade.Quantity != 50 {
		t.Errorf("filled %d shares, want 50", trade.Quantity)
	}
}

func TestReferencePriceField(t *testing.T) {
	bar := domain.Bar{
		Symbol:    "TEST",
		Timestamp: t0,
		Open:      90,
		High:      110,
		Low:       80,
		Close:     100,
	}

	p := mustPortfolio(t, 100000)
	exec := NewExecutor(ExecConfig{ReferencePrice: domain.PriceOpen})
	trade, _ := exec.Apply(p, bar, domain.Signal{Timestamp: t0, Action: domain.ActionBuy, Quantity: 1})
	if trade.Price != 90 {
		t.Errorf("fill Price = %v, want 90 (open)", trade.Price)
	}
}

func TestHoldAlwaysMarksToMarket(t *testing.T) {
	p := mustPortfolio(t, 1000)
	exec := NewExecutor(ExecConfig{})

	trade, outcome := exec.Apply(p, testBar(t0, 100), domain.Signal{
		Timestamp: t0, Action: domain.ActionHold,
	})
	if trade != nil {
		t.Fatal("hold produced a trade")
	}
	if outcome != domain.OutcomeHold {
		t.Errorf("outcome = %q, want hold", outcome)
	}
	if len(p.EquityCurve()) != 1 {
		t.Errorf("equity curve has %d entries, want 1", len(p.EquityCurve()))
	}
}
