package backtest

import (
	"log/slog"

	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/stats"
)

// overfitGap is the win-rate spread beyond which a cross-validation run is
// flagged as likely overfit.
const overfitGap = 0.10

// FoldResult is the evaluation of one walk-forward fold. TrainWinRate is the
// win rate of the same config over everything before the fold's test slice;
// it is recorded for overfit detection only. No refitting happens between
// folds; this is walk-forward evaluation rather than k-fold training.
type FoldResult struct {
	Fold         int                   `json:"fold"`
	TrainSize    int                   `json:"train_size"`
	TestSize     int                   `json:"test_size"`
	TrainWinRate float64               `json:"train_win_rate"`
	Result       domain.BacktestResult `json:"result"`
}

// CrossValidationResult aggregates per-fold results. Std-devs are population
// standard deviations across folds.
type CrossValidationResult struct {
	FoldCount       int          `json:"fold_count"`
	Folds           []FoldResult `json:"folds"`
	AvgWinRate      float64      `json:"avg_win_rate"`
	StdDevWinRate   float64      `json:"std_dev_win_rate"`
	AvgTotalPnL     float64      `json:"avg_total_pnl"`
	StdDevTotalPnL  float64      `json:"std_dev_total_pnl"`
	AvgSharpe       float64      `json:"avg_sharpe"`
	AvgTrainWinRate float64      `json:"avg_train_win_rate"`
	Overfit         bool         `json:"overfit"`
}

// CrossValidate partitions the chronological signal list into walk-forward
// folds and evaluates the config on each fold's test slice.
//
// With foldCount clamped to [2, max(2, N)], boundaries are
// floor(i*N/foldCount) for i in 0..foldCount, and fold i (for i in
// 1..foldCount-1) tests signals[boundary[i]:boundary[i+1]] with everything
// before boundary[i] as its train window. The first boundary slice is only
// ever a train window, never a test set; that asymmetry is deliberate.
func CrossValidate(cfg domain.StrategyConfig, signals []domain.BacktestSignal, folds int, tradeSize float64, logger *slog.Logger) CrossValidationResult {
	n := len(signals)
	maxFolds := n
	if maxFolds < 2 {
		maxFolds = 2
	}
	foldCount := stats.ClampInt(folds, 2, maxFolds)

	engine := NewEngine(cfg, tradeSize, logger)

	boundaries := make([]int, foldCount+1)
	for i := range boundaries {
		boundaries[i] = i * n / foldCount
	}

	res := CrossValidationResult{FoldCount: foldCount}

	var (
		winRates      []float64
		pnls          []float64
		sharpes       []float64
		trainWinRates []float64
		bestWinRate   float64
	)

	for foldIndex := 1; foldIndex < foldCount; foldIndex++ {
		train := signals[:boundaries[foldIndex]]
		test := signals[boundaries[foldIndex]:boundaries[foldIndex+1]]
		if len(test) == 0 {
			continue
		}

		trainResult := engine.Run(train)
		testResult := engine.Run(test)

		res.Folds = append(res.Folds, FoldResult{
			Fold:         foldIndex,
			TrainSize:    len(train),
			TestSize:     len(test),
			TrainWinRate: trainResult.WinRate,
			Result:       testResult,
		})

		winRates = append(winRates, testResult.WinRate)
		pnls = append(pnls, testResult.TotalPnL)
		sharpes = append(sharpes, testResult.SharpeRatio)
		trainWinRates = append(trainWinRates, trainResult.WinRate)
		if testResult.WinRate > bestWinRate {
			bestWinRate = testResult.WinRate
		}
	}

	if len(res.Folds) == 0 {
		return res
	}

	res.AvgWinRate = stats.Mean(winRates)
	res.StdDevWinRate = stats.StdDev(winRates)
	res.AvgTotalPnL = stats.Mean(pnls)
	res.StdDevTotalPnL = stats.StdDev(pnls)
	res.AvgSharpe = stats.Mean(sharpes)
	res.AvgTrainWinRate = stats.Mean(trainWinRates)

	res.Overfit = bestWinRate-res.AvgWinRate >= overfitGap ||
		res.AvgTrainWinRate-res.AvgWinRate >= overfitGap

	return res
}
