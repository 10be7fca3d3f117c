package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"quantlab/internal/config"
	"quantlab/internal/domain"
	"quantlab/internal/engine"
	"quantlab/internal/metrics"
	"quantlab/internal/strategy"
)

func (s *Server) listStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) listSymbols(c *gin.Context) {
	symbols, err := s.bars.ListSymbols(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, SymbolsResponse{Symbols: symbols})
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(c, http.StatusBadRequest, "INVALID_REQUEST",
				errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}

func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	factory, bars, runCfg, ok := s.prepareRun(c, &req)
	if !ok {
		return
	}

	strat := factory()
	if err := strat.Fit(bars); err != nil {
		s.failEngine(c, err)
		return
	}
	signals, err := strat.Signals(bars)
	if err != nil {
		s.failEngine(c, err)
		return
	}

	result, err := engine.NewRunner(runCfg).Run(bars, signals)
	if err != nil {
		s.failEngine(c, err)
		return
	}
	result.Strategy = strat.Name()

	runID, err := s.results.SaveResult(c.Request.Context(), result)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}

	payload := summarize(result)
	payload.RunID = runID
	c.JSON(http.StatusOK, BacktestResponse{Status: "completed", Run: payload})
}

func (s *Server) runWalkForward(c *gin.Context) {
	var req WalkForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	factory, bars, runCfg, ok := s.prepareRun(c, &req.BacktestRequest)
	if !ok {
		return
	}

	wfCfg := engine.WalkForwardConfig{
		Run:        runCfg,
		TrainSize:  s.cfg.WalkForward.TrainSize,
		TestSize:   s.cfg.WalkForward.TestSize,
		StepSize:   s.cfg.WalkForward.StepSize,
		MaxWorkers: s.cfg.WalkForward.MaxWorkers,
	}
	if req.TrainSize != nil {
		wfCfg.TrainSize = *req.TrainSize
	}
	if req.TestSize != nil {
		wfCfg.TestSize = *req.TestSize
	}
	if req.StepSize != nil {
		wfCfg.StepSize = *req.StepSize
	}
	if req.MaxWorkers != nil {
		wfCfg.MaxWorkers = *req.MaxWorkers
	}

	wf := engine.NewWalkForward(wfCfg, s.log)
	results, err := wf.Run(c.Request.Context(), bars, factory)
	if err != nil {
		s.failEngine(c, err)
		return
	}

	windows := make([]RunSummaryPayload, 0, len(results))
	for _, result := range results {
		runID, err := s.results.SaveResult(c.Request.Context(), result)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "STORE_ERROR", err)
			return
		}
		payload := summarize(result)
		payload.RunID = runID
		windows = append(windows, payload)
	}
	c.JSON(http.StatusOK, WalkForwardResponse{Status: "completed", Windows: windows})
}

// prepareRun resolves the shared backtest-request plumbing: strategy
// lookup, date parsing, bar loading, and run configuration. On failure it
// writes the error response and returns ok=false.
func (s *Server) prepareRun(c *gin.Context, req *BacktestRequest) (strategy.Factory, []domain.Bar, engine.RunConfig, bool) {
	var zero engine.RunConfig

	factory, found := s.registry.Get(req.Strategy)
	if !found {
		s.fail(c, http.StatusBadRequest, "UNKNOWN_STRATEGY",
			errors.New("no strategy named "+strconv.Quote(req.Strategy)))
		return nil, nil, zero, false
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return nil, nil, zero, false
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return nil, nil, zero, false
	}
	if end.Before(start) {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST",
			errors.New("end date precedes start date"))
		return nil, nil, zero, false
	}

	symbol := strings.ToUpper(req.Symbol)
	bars, err := s.bars.ReadBars(c.Request.Context(), symbol, start, end.AddDate(0, 0, 1))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "STORE_ERROR", err)
		return nil, nil, zero, false
	}
	if len(bars) == 0 {
		s.fail(c, http.StatusNotFound, "NO_DATA",
			errors.New("no bars stored for "+symbol+" in the requested range"))
		return nil, nil, zero, false
	}

	runCfg, err := buildRunConfig(s.cfg.Backtest, req)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return nil, nil, zero, false
	}
	return factory, bars, runCfg, true
}

// buildRunConfig layers request overrides on top of the configured defaults.
func buildRunConfig(defaults config.BacktestConfig, req *BacktestRequest) (engine.RunConfig, error) {
	cfg := engine.RunConfig{
		InitialCapital: defaults.InitialCapital,
		Exec: engine.ExecConfig{
			CommissionPct:   defaults.CommissionPct,
			SlippagePct:     defaults.SlippagePct,
			PositionSizePct: defaults.PositionSizePct,
			ReferencePrice:  defaults.ReferencePrice,
		},
		LiquidateAtEnd: defaults.LiquidateAtEnd,
	}

	if req.InitialCapital != nil {
		cfg.InitialCapital = *req.InitialCapital
	}
	if req.CommissionPct != nil {
		cfg.Exec.CommissionPct = *req.CommissionPct
	}
	if req.SlippagePct != nil {
		cfg.Exec.SlippagePct = *req.SlippagePct
	}
	if req.PositionSizePct != nil {
		cfg.Exec.PositionSizePct = *req.PositionSizePct
	}
	if req.ReferencePrice != "" {
		field := domain.PriceField(req.ReferencePrice)
		if !field.Valid() {
			return cfg, errors.New("reference_price must be one of open/high/low/close")
		}
		cfg.Exec.ReferencePrice = field
	}
	if req.LiquidateAtEnd != nil {
		cfg.LiquidateAtEnd = *req.LiquidateAtEnd
	}

	if cfg.InitialCapital <= 0 {
		return cfg, errors.New("initial_capital must be positive")
	}
	if cfg.Exec.CommissionPct < 0 || cfg.Exec.SlippagePct < 0 {
		return cfg, errors.New("commission_pct and slippage_pct must be non-negative")
	}
	if cfg.Exec.PositionSizePct < 0 || cfg.Exec.PositionSizePct > 1 {
		return cfg, errors.New("position_size_pct must be in (0, 1]")
	}
	return cfg, nil
}

// summarize folds a finished result into its API payload.
func summarize(result *domain.BacktestResult) RunSummaryPayload {
	return RunSummaryPayload{
		Strategy:       result.Strategy,
		Symbol:         result.Symbol,
		Start:          result.Start,
		End:            result.End,
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		NumTrades:      len(result.Trades),
		NoFillCash:     result.NoFillCash,
		NoFillPosition: result.NoFillPosition,
		Metrics:        metrics.Compute(metrics.Returns(result.EquityCurve), metrics.TradingDaysPerYear),
	}
}

// failEngine maps engine errors to HTTP statuses: configuration problems
// are the caller's fault (400), broken stored data is unprocessable (422).
func (s *Server) failEngine(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrConfig):
		s.fail(c, http.StatusBadRequest, "INVALID_CONFIG", err)
	case errors.Is(err, domain.ErrDataIntegrity):
		s.fail(c, http.StatusUnprocessableEntity, "DATA_INTEGRITY", err)
	default:
		s.fail(c, http.StatusInternalServerError, "ENGINE_ERROR", err)
	}
}

func (s *Server) fail(c *gin.Context, status int, code string, err error) {
	s.log.Warn("request failed", "code", code, "err", err)
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: err.Error()}})
}
