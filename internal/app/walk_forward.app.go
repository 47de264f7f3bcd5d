package app

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	l2_service "algotrader/internal/service/l2"
)

// GenerateWindows lays out nTrials adjacent (train, test) windows of
// windowSize years each, stepping one year at a time. The first train half
// starts on Jan 1 of end's year minus (nTrials + windowSize).
func GenerateWindows(end time.Time, nTrials, windowSize int) ([]domain.Window, error) {
	if nTrials <= 0 || windowSize <= 0 {
		return nil, fmt.Errorf("%w: walk forward needs n_trials > 0 and window_size > 0, got %d and %d", domain.ErrInvalidConfig, nTrials, windowSize)
	}
	first := time.Date(end.Year()-(nTrials+windowSize), 1, 1, 0, 0, 0, 0, time.UTC)
	windows := make([]domain.Window, nTrials)
	for i := range windows {
		trainStart := first.AddDate(i, 0, 0)
		trainEnd := trainStart.AddDate(windowSize, 0, 0)
		windows[i] = domain.Window{
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    trainEnd.AddDate(windowSize, 0, 0),
		}
	}
	return windows, nil
}

type WalkForwardInput struct {
	End        time.Time
	NTrials    int
	WindowSize int
}

type WindowOutcome struct {
	Window domain.Window
	// Stages lists the stages that ran, in order
	Stages      []*domain.StageResult
	FailedStage domain.Stage
	Err         error
}

func (o WindowOutcome) Completed() bool {
	return o.Err == nil
}

type WalkForwardResult struct {
	Windows []WindowOutcome
}

// OK reports whether every window completed.
func (r WalkForwardResult) OK() bool {
	for _, w := range r.Windows {
		if !w.Completed() {
			return false
		}
	}
	return len(r.Windows) > 0
}

type WalkForwardApp interface {
	// Run drives the signal pipeline over every window. A stage failure
	// skips the rest of that window only.
	Run(ctx context.Context, in WalkForwardInput) (*WalkForwardResult, error)
	Evaluate(ctx context.Context) (*domain.StageResult, domain.GlobalSummary, error)
	// RunPortfolio optimizes and tests the portfolio strategies over every
	// window. It needs strategy summaries from Evaluate.
	RunPortfolio(ctx context.Context, in WalkForwardInput) (*WalkForwardResult, error)
}

type WalkForwardAppInput struct {
	DataIngestCoordinator         l2_service.DataIngestCoordinator
	FeatureEngineeringCoordinator l2_service.FeatureEngineeringCoordinator
	SignalOptimizationCoordinator l2_service.SignalOptimizationCoordinator
	SignalTestingCoordinator      l2_service.SignalTestingCoordinator
	EvaluationCoordinator         l2_service.EvaluationCoordinator
	PortfolioCoordinator          l2_service.PortfolioCoordinator
}

type walkForwardAppHandler WalkForwardAppInput

func NewWalkForwardApp(in WalkForwardAppInput) WalkForwardApp {
	return walkForwardAppHandler(in)
}

type windowStep struct {
	stage domain.Stage
	run   func(ctx context.Context) (*domain.StageResult, error)
}

func (h walkForwardAppHandler) signalSteps(w domain.Window) []windowStep {
	return []windowStep{
		{domain.StageDataIngest, func(ctx context.Context) (*domain.StageResult, error) {
			return h.DataIngestCoordinator.Run(ctx, w.Train())
		}},
		{domain.StageFeatureEngineering, func(ctx context.Context) (*domain.StageResult, error) {
			return h.FeatureEngineeringCoordinator.Run(ctx, w.Train())
		}},
		{domain.StageSignalOptimization, func(ctx context.Context) (*domain.StageResult, error) {
			return h.SignalOptimizationCoordinator.Run(ctx, w.Train())
		}},
		{domain.StageDataIngest, func(ctx context.Context) (*domain.StageResult, error) {
			return h.DataIngestCoordinator.Run(ctx, w.Test())
		}},
		{domain.StageFeatureEngineering, func(ctx context.Context) (*domain.StageResult, error) {
			return h.FeatureEngineeringCoordinator.Run(ctx, w.Test())
		}},
		{domain.StageSignalTesting, func(ctx context.Context) (*domain.StageResult, error) {
			return h.SignalTestingCoordinator.Run(ctx, w)
		}},
	}
}

func (h walkForwardAppHandler) portfolioSteps(w domain.Window) []windowStep {
	return []windowStep{
		{domain.StagePortfolioOptimization, func(ctx context.Context) (*domain.StageResult, error) {
			return h.PortfolioCoordinator.Optimize(ctx, w.Train())
		}},
		{domain.StagePortfolioTesting, func(ctx context.Context) (*domain.StageResult, error) {
			return h.PortfolioCoordinator.Test(ctx, w)
		}},
	}
}

func (h walkForwardAppHandler) Run(ctx context.Context, in WalkForwardInput) (*WalkForwardResult, error) {
	return h.drive(ctx, in, h.signalSteps)
}

func (h walkForwardAppHandler) RunPortfolio(ctx context.Context, in WalkForwardInput) (*WalkForwardResult, error) {
	return h.drive(ctx, in, h.portfolioSteps)
}

func (h walkForwardAppHandler) drive(ctx context.Context, in WalkForwardInput, steps func(domain.Window) []windowStep) (*WalkForwardResult, error) {
	windows, err := GenerateWindows(in.End, in.NTrials, in.WindowSize)
	if err != nil {
		return nil, err
	}

	result := &WalkForwardResult{}
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		wctx, log := logger.With(ctx, "window_id", w.ID(), "window", fmt.Sprintf("%d/%d", i+1, len(windows)))
		log.Infow("starting window", "train", w.Train().Info(), "test", w.Test().Info())

		outcome := h.runWindow(wctx, w, steps(w))
		result.Windows = append(result.Windows, outcome)
		if outcome.Err != nil {
			log.Errorw("window failed, skipping its remaining stages", "stage", outcome.FailedStage, "error", outcome.Err)
			continue
		}
		log.Infow("window completed")
	}
	return result, nil
}

func (h walkForwardAppHandler) runWindow(ctx context.Context, w domain.Window, steps []windowStep) WindowOutcome {
	outcome := WindowOutcome{Window: w}
	for _, step := range steps {
		stageResult, err := step.run(ctx)
		if stageResult != nil {
			outcome.Stages = append(outcome.Stages, stageResult)
		}
		if err == nil && stageResult != nil {
			err = stageResult.Err()
		}
		if err != nil {
			outcome.FailedStage = step.stage
			outcome.Err = fmt.Errorf("%s failed for window %s: %w", step.stage, w.ID(), err)
			return outcome
		}
	}
	return outcome
}

func (h walkForwardAppHandler) Evaluate(ctx context.Context) (*domain.StageResult, domain.GlobalSummary, error) {
	result, summary, err := h.EvaluationCoordinator.Run(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate strategies: %w", err)
	}
	logger.FromContext(ctx).Infow("evaluation finished", "completed", len(result.Completed), "failed", len(result.Failed), "symbols", len(summary))
	return result, summary, nil
}
