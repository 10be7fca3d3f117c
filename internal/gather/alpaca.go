package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantlab/internal/domain"
	"quantlab/internal/store"
	"quantlab/internal/util"
)

var _ Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer fetches daily OHLCV bars for a configured symbol list
// from the Alpaca market-data API and writes them to a BarStore. Batches
// run on a bounded worker pool; each batch fetch is rate limited and
// retried with backoff on transient errors.
type DailyBarGatherer struct {
	client     *marketdata.Client
	store      store.BarStore
	symbols    []string
	startDate  string
	batchSize  int
	maxWorkers int
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// DailyBarOpts configures a DailyBarGatherer.
type DailyBarOpts struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Symbols         []string
	StartDate       string // YYYY-MM-DD
	BatchSize       int
	MaxWorkers      int
	RateLimitPerMin int
}

// NewDailyBarGatherer creates a DailyBarGatherer. A nil logger falls back
// to slog.Default.
func NewDailyBarGatherer(opts DailyBarOpts, s store.BarStore, log *slog.Logger) *DailyBarGatherer {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 200
	}
	if log == nil {
		log = slog.Default()
	}

	return &DailyBarGatherer{
		client:     marketdata.NewClient(clientOpts),
		store:      s,
		symbols:    opts.Symbols,
		startDate:  opts.StartDate,
		batchSize:  opts.BatchSize,
		maxWorkers: opts.MaxWorkers,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin),
		log:        log.With("gatherer", "alpaca-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "alpaca-daily" }

// Run fetches daily bars for every configured symbol from the start date to
// now and writes them to the store. Re-running merges with existing data,
// so the job is idempotent.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("%w: no symbols configured", domain.ErrConfig)
	}
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("%w: parsing start date %q: %v", domain.ErrConfig, g.startDate, err)
	}
	end := time.Now().UTC()

	var batches [][]string
	for i := 0; i < len(g.symbols); i += g.batchSize {
		batches = append(batches, g.symbols[i:min(i+g.batchSize, len(g.symbols))])
	}

	g.log.Info("starting daily gather",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", g.startDate,
	)

	batchCh := make(chan []string, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var (
		wg       sync.WaitGroup
		barCount atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)

	workers := min(g.maxWorkers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherBatch(ctx, batch, start, end)
				if err != nil {
					failed.Add(1)
					g.log.Error("batch failed", "symbols", batch, "err", err)
					continue
				}
				barCount.Add(n)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d batches failed", n, len(batches))
	}

	g.log.Info("gather complete",
		"bars", barCount.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// gatherBatch fetches and persists one symbol batch, returning the number of
// bars written.
func (g *DailyBarGatherer) gatherBatch(ctx context.Context, symbols []string, start, end time.Time) (int64, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, 3, 2*time.Second, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		fetched, err := g.fetchMultiBars(symbols, start, end)
		if err != nil {
			return err
		}
		bars = fetched
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(bars) == 0 {
		g.log.Warn("no bars returned", "symbols", symbols)
		return 0, nil
	}
	if err := g.store.WriteBars(ctx, bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return int64(len(bars)), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in one API call.
func (g *DailyBarGatherer) fetchMultiBars(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
