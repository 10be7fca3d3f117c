package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"quantlab/internal/config"
	"quantlab/internal/domain"
	"quantlab/internal/engine"
	"quantlab/internal/metrics"
	"quantlab/internal/store"
	"quantlab/internal/strategy"
	"quantlab/internal/strategy/builtins"
	"quantlab/internal/util"
)

func main() {
	var (
		strategyName = flag.String("strategy", "sma-cross", "strategy to run")
		symbol       = flag.String("symbol", "", "symbol to backtest (required)")
		startDate    = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endDate      = flag.String("end", "", "end date YYYY-MM-DD (required)")
		walkForward  = flag.Bool("walkforward", false, "run walk-forward evaluation instead of a single backtest")
		noSave       = flag.Bool("no-save", false, "skip persisting results")
	)
	flag.Parse()

	if *symbol == "" || *startDate == "" || *endDate == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfgPath := "config/quantlab.yaml"
	if p := os.Getenv("QUANTLAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)
	factory, ok := registry.Get(*strategyName)
	if !ok {
		log.Fatalf("unknown strategy %q (available: %s)",
			*strategyName, strings.Join(registry.List(), ", "))
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("bad start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("bad end date: %v", err)
	}

	ctx := context.Background()
	barStore := store.NewParquetStore(cfg.Storage.DataDir)
	bars, err := barStore.ReadBars(ctx, strings.ToUpper(*symbol), start, end.AddDate(0, 0, 1))
	if err != nil {
		log.Fatalf("reading bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no bars stored for %s in %s..%s", *symbol, *startDate, *endDate)
	}

	runCfg := engine.RunConfig{
		InitialCapital: cfg.Backtest.InitialCapital,
		Exec: engine.ExecConfig{
			CommissionPct:   cfg.Backtest.CommissionPct,
			SlippagePct:     cfg.Backtest.SlippagePct,
			PositionSizePct: cfg.Backtest.PositionSizePct,
			ReferencePrice:  cfg.Backtest.ReferencePrice,
		},
		LiquidateAtEnd: cfg.Backtest.LiquidateAtEnd,
	}

	var results []*domain.BacktestResult
	if *walkForward {
		wf := engine.NewWalkForward(engine.WalkForwardConfig{
			Run:        runCfg,
			TrainSize:  cfg.WalkForward.TrainSize,
			TestSize:   cfg.WalkForward.TestSize,
			StepSize:   cfg.WalkForward.StepSize,
			MaxWorkers: cfg.WalkForward.MaxWorkers,
		}, logger)
		results, err = wf.Run(ctx, bars, factory)
		if err != nil {
			log.Fatalf("walk-forward failed: %v", err)
		}
		if len(results) == 0 {
			log.Fatalf("not enough bars (%d) for train=%d test=%d",
				len(bars), cfg.WalkForward.TrainSize, cfg.WalkForward.TestSize)
		}
	} else {
		strat := factory()
		if err := strat.Fit(bars); err != nil {
			log.Fatalf("fitting strategy: %v", err)
		}
		signals, err := strat.Signals(bars)
		if err != nil {
			log.Fatalf("generating signals: %v", err)
		}
		result, err := engine.NewRunner(runCfg).Run(bars, signals)
		if err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
		result.Strategy = strat.Name()
		results = append(results, result)
	}

	var resultStore *store.SQLiteStore
	if !*noSave {
		resultStore, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening result store: %v", err)
		}
		defer resultStore.Close()
	}

	for i, result := range results {
		if *walkForward {
			fmt.Printf("--- window %d ---\n", i+1)
		}
		printSummary(result)
		if resultStore != nil {
			id, err := resultStore.SaveResult(ctx, result)
			if err != nil {
				log.Fatalf("saving result: %v", err)
			}
			fmt.Printf("saved as run %d\n", id)
		}
	}
}

func printSummary(r *domain.BacktestResult) {
	m := metrics.Compute(metrics.Returns(r.EquityCurve), metrics.TradingDaysPerYear)

	fmt.Printf("%s on %s  %s .. %s\n",
		r.Strategy, r.Symbol,
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	fmt.Printf("  capital        %12.2f -> %.2f (%.2f%%)\n",
		r.InitialCapital, r.FinalEquity, r.TotalReturn()*100)
	fmt.Printf("  trades         %d (rejected: %d cash, %d position)\n",
		len(r.Trades), r.NoFillCash, r.NoFillPosition)
	fmt.Printf("  annualized     %.2f%%  volatility %.2f%%\n",
		m.AnnualizedReturn*100, m.Volatility*100)
	fmt.Printf("  sharpe %.2f  sortino %.2f  calmar %.2f\n",
		m.SharpeRatio, m.SortinoRatio, m.CalmarRatio)
	fmt.Printf("  max drawdown   %.2f%%  win rate %.1f%%  profit factor %.2f\n",
		m.MaxDrawdown*100, m.WinRate*100, m.ProfitFactor)
}
