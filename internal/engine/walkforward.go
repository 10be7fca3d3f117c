package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"quantlab/internal/domain"
	"quantlab/internal/strategy"
)

// Window is one walk-forward train/test partition, expressed as half-open
// index ranges into the bar series: train [TrainStart, TrainEnd), test
// [TestStart, TestEnd). TrainEnd == TestStart, so the test segment begins
// exactly where training ends and never feeds information backwards.
type Window struct {
	Index      int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// Windows derives the walk-forward partitions for n bars. Train starts at
// index 0 and advances by step each window. A window is emitted only while
// a full test segment fits strictly inside the data; the trailing window
// that would consume the series exactly to (or past) its end is discarded
// so every returned result covers a comparably sized segment.
func Windows(n, train, test, step int) ([]Window, error) {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: window sizes must be positive (train=%d test=%d step=%d)",
			domain.ErrConfig, train, test, step)
	}

	var windows []Window
	for start := 0; start+train+test < n; start += step {
		windows = append(windows, Window{
			Index:      len(windows),
			TrainStart: start,
			TrainEnd:   start + train,
			TestStart:  start + train,
			TestEnd:    start + train + test,
		})
	}
	return windows, nil
}

// WalkForwardConfig configures walk-forward evaluation.
type WalkForwardConfig struct {
	Run        RunConfig
	TrainSize  int
	TestSize   int
	StepSize   int
	MaxWorkers int // concurrent windows; <= 0 means sequential
}

// WalkForward partitions a bar series into successive train/test windows,
// fits a fresh strategy instance per window, backtests it out-of-sample,
// and aggregates the results in window order.
type WalkForward struct {
	cfg WalkForwardConfig
	log *slog.Logger
}

// NewWalkForward creates a WalkForward controller. A nil logger falls back
// to slog.Default.
func NewWalkForward(cfg WalkForwardConfig, log *slog.Logger) *WalkForward {
	if log == nil {
		log = slog.Default()
	}
	return &WalkForward{cfg: cfg, log: log.With("component", "walk-forward")}
}

// Run evaluates the strategy produced by factory across every window and
// returns one BacktestResult per window, ordered chronologically. Too few
// bars for even one window yields an empty slice and no error. Windows run
// concurrently up to MaxWorkers; each owns a fresh strategy instance and
// portfolio, so no state crosses window boundaries.
func (wf *WalkForward) Run(ctx context.Context, bars []domain.Bar, factory strategy.Factory) ([]*domain.BacktestResult, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	windows, err := Windows(len(bars), wf.cfg.TrainSize, wf.cfg.TestSize, wf.cfg.StepSize)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		wf.log.Warn("not enough bars for a single window",
			"bars", len(bars),
			"train", wf.cfg.TrainSize,
			"test", wf.cfg.TestSize,
		)
		return []*domain.BacktestResult{}, nil
	}

	results := make([]*domain.BacktestResult, len(windows))
	errs := make([]error, len(windows))

	workers := wf.cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(windows) {
		workers = len(windows)
	}

	windowCh := make(chan Window, len(windows))
	for _, w := range windows {
		windowCh <- w
	}
	close(windowCh)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range windowCh {
				if ctx.Err() != nil {
					errs[w.Index] = ctx.Err()
					continue
				}
				results[w.Index], errs[w.Index] = wf.runWindow(bars, w, factory)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
	}

	wf.log.Info("walk-forward complete", "windows", len(windows), "bars", len(bars))
	return results, nil
}

// runWindow executes one window end to end: fit on the train slice,
// generate signals on the test slice, backtest the test slice.
func (wf *WalkForward) runWindow(bars []domain.Bar, w Window, factory strategy.Factory) (*domain.BacktestResult, error) {
	strat := factory()

	train := bars[w.TrainStart:w.TrainEnd]
	test := bars[w.TestStart:w.TestEnd]

	if err := strat.Fit(train); err != nil {
		return nil, fmt.Errorf("fitting %s: %w", strat.Name(), err)
	}
	signals, err := strat.Signals(test)
	if err != nil {
		return nil, fmt.Errorf("generating signals for %s: %w", strat.Name(), err)
	}

	runner := NewRunner(wf.cfg.Run)
	result, err := runner.Run(test, signals)
	if err != nil {
		return nil, err
	}
	result.Strategy = strat.Name()

	wf.log.Debug("window done",
		"window", w.Index,
		"trainStart", w.TrainStart,
		"testStart", w.TestStart,
		"testEnd", w.TestEnd,
		"trades", len(result.Trades),
	)
	return result, nil
}
