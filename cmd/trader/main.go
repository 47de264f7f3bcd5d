package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"algotrader/api"
	"algotrader/cmd"
	"algotrader/internal/app"
	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errStageFailed = errors.New("stage failed")

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrInvalidConfig):
		return 2
	default:
		return 1
	}
}

type runner struct {
	configPath string
	log        *zap.SugaredLogger
	cfg        *config.Config
	deps       *cmd.Dependencies
}

func (r *runner) setup(ctx context.Context) error {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	deps, err := cmd.InitializeDependencies(ctx, cfg, r.log)
	if err != nil {
		return err
	}
	r.cfg = cfg
	r.deps = deps
	return nil
}

func (r *runner) close() {
	if r.deps == nil {
		return
	}
	if err := cmd.CloseDependencies(r.deps); err != nil {
		r.log.Warnw("failed to close dependencies", "error", err)
	}
}

type windowFlags struct {
	end     string
	nTrials int
	window  int
}

func (f *windowFlags) bind(c *cobra.Command) {
	c.Flags().StringVar(&f.end, "end", "", "last date of the backtest (YYYY-MM-DD), defaults to today")
	c.Flags().IntVar(&f.nTrials, "trials", 0, "number of walk forward windows, defaults to walk_forward.n_trials")
	c.Flags().IntVar(&f.window, "window", 0, "years per train and test half, defaults to walk_forward.window_size")
}

func (f windowFlags) input(cfg *config.Config) (app.WalkForwardInput, error) {
	in := app.WalkForwardInput{
		End:        time.Now().UTC(),
		NTrials:    cfg.WalkForward.NTrials,
		WindowSize: cfg.WalkForward.WindowSize,
	}
	if f.end != "" {
		end, err := util.ParseDate(f.end)
		if err != nil {
			return in, fmt.Errorf("%w: bad --end %q: %w", domain.ErrInvalidConfig, f.end, err)
		}
		in.End = end
	}
	if f.nTrials != 0 {
		in.NTrials = f.nTrials
	}
	if f.window != 0 {
		in.WindowSize = f.window
	}
	return in, nil
}

func reportWindows(log *zap.SugaredLogger, result *app.WalkForwardResult) error {
	failed := 0
	for _, w := range result.Windows {
		if w.Completed() {
			log.Infow("window completed", "window_id", w.Window.ID())
			continue
		}
		failed++
		log.Errorw("window failed", "window_id", w.Window.ID(), "stage", w.FailedStage, "error", w.Err)
	}
	if !result.OK() {
		return fmt.Errorf("%w: %d of %d windows failed", errStageFailed, failed, len(result.Windows))
	}
	return nil
}

func (r *runner) walkForwardCmd() *cobra.Command {
	flags := windowFlags{}
	c := &cobra.Command{
		Use:   "walk-forward",
		Short: "Ingest, engineer features, optimize and test every strategy over rolling windows",
		RunE: func(c *cobra.Command, args []string) error {
			in, err := flags.input(r.cfg)
			if err != nil {
				return err
			}
			result, err := r.deps.WalkForwardApp.Run(c.Context(), in)
			if err != nil {
				return err
			}
			return reportWindows(r.log, result)
		},
	}
	flags.bind(c)
	return c
}

func (r *runner) evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Score strategies across windows and write the strategy summaries",
		RunE: func(c *cobra.Command, args []string) error {
			result, summary, err := r.deps.WalkForwardApp.Evaluate(c.Context())
			if err != nil {
				return err
			}
			for _, symbol := range util.SortedKeys(summary) {
				s := summary[symbol]
				r.log.Infow("strategy summary", "symbol", symbol, "recommended", s.RecommendedStrategy, "viable", s.IsViable)
			}
			if err := result.Err(); err != nil {
				return fmt.Errorf("%w: %w", errStageFailed, err)
			}
			return nil
		},
	}
}

func (r *runner) portfolioCmd() *cobra.Command {
	flags := windowFlags{}
	c := &cobra.Command{
		Use:   "portfolio",
		Short: "Optimize and test the portfolio strategy over rolling windows",
		RunE: func(c *cobra.Command, args []string) error {
			in, err := flags.input(r.cfg)
			if err != nil {
				return err
			}
			result, err := r.deps.WalkForwardApp.RunPortfolio(c.Context(), in)
			if err != nil {
				return err
			}
			return reportWindows(r.log, result)
		},
	}
	flags.bind(c)
	return c
}

func (r *runner) liveCmd() *cobra.Command {
	var (
		symbols []string
		now     bool
		apiPort int
	)
	c := &cobra.Command{
		Use:   "live",
		Short: "Run the streaming signal and order pipeline on the market session schedule",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			if len(symbols) == 0 {
				watchlist, err := r.deps.WatchlistRepository.List(ctx)
				if err != nil {
					return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
				}
				symbols = watchlist
			}
			if len(symbols) == 0 {
				return fmt.Errorf("%w: no symbols to trade", domain.ErrInvalidConfig)
			}
			for i, s := range symbols {
				symbols[i] = strings.ToUpper(strings.TrimSpace(s))
			}

			live, err := r.deps.NewLiveSession(symbols)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := live.Shutdown(shutdownCtx); err != nil {
					r.log.Errorw("failed to shut down live session", "error", err)
				}
			}()

			if apiPort > 0 {
				handler := api.ApiHandler{
					Session:          live.App,
					Roster:           live.Roster,
					StageDataService: r.deps.StageDataService,
					JWTSecret:        r.cfg.Api.JWTSecret,
					Log:              r.log,
				}
				go func() {
					if err := handler.StartApi(ctx, apiPort); err != nil {
						r.log.Errorw("status api stopped", "error", err)
					}
				}()
			}

			if now {
				if err := live.App.Premarket(ctx); err != nil {
					return err
				}
				if err := live.App.Open(ctx); err != nil {
					return err
				}
			}
			return live.App.Run(ctx)
		},
	}
	c.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to trade, defaults to the watchlist")
	c.Flags().BoolVar(&now, "now", false, "run premarket and open immediately instead of waiting for the schedule")
	c.Flags().IntVar(&apiPort, "api-port", -1, "status api port, 0 disables it, defaults to api.port")
	c.PreRun = func(c *cobra.Command, args []string) {
		if apiPort < 0 {
			apiPort = r.cfg.Api.Port
		}
	}
	return c
}

func (r *runner) reconcileCmd() *cobra.Command {
	var start, end string
	c := &cobra.Command{
		Use:   "reconcile",
		Short: "Make local trades match the broker's fills and check positions",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			startDate, err := util.ParseDate(start)
			if err != nil {
				return fmt.Errorf("%w: bad --start %q: %w", domain.ErrInvalidConfig, start, err)
			}
			endDate := time.Now().UTC()
			if end != "" {
				if endDate, err = util.ParseDate(end); err != nil {
					return fmt.Errorf("%w: bad --end %q: %w", domain.ErrInvalidConfig, end, err)
				}
			}
			result, err := r.deps.TradeReconcileService.ReconcileTrades(ctx, startDate, endDate)
			if err != nil {
				return err
			}
			r.log.Infow("reconciled trades", "inserted", result.Inserted, "deleted", result.Deleted, "residual_drift", result.ResidualDrift)
			drift, err := r.deps.TradeReconcileService.ValidatePositions(ctx)
			if err != nil {
				return err
			}
			for _, d := range drift {
				r.log.Warnw("position drift", "symbol", d.Symbol, "local", d.Local.String(), "broker", d.Broker.String())
			}
			if err := result.Err(); err != nil {
				return fmt.Errorf("%w: %w", errStageFailed, err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&start, "start", "", "first execution date to reconcile (YYYY-MM-DD)")
	c.Flags().StringVar(&end, "end", "", "end of the range, exclusive, defaults to now")
	c.MarkFlagRequired("start")
	return c
}

func (r *runner) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trader",
		Short:         "Walk forward backtesting and live trading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&r.configPath, "config", "config.yaml", "path to the yaml config")
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	})

	run := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline",
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return r.setup(c.Context())
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			r.close()
		},
	}
	run.AddCommand(
		r.walkForwardCmd(),
		r.evaluateCmd(),
		r.portfolioCmd(),
		r.liveCmd(),
		r.reconcileCmd(),
	)
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Maintain the watchlist and stage data",
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return r.setup(c.Context())
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			r.close()
		},
	}
	admin.AddCommand(r.watchlistCmd(), r.stagesCmd())

	root.AddCommand(run, admin, r.strategiesCmd())
	return root
}

func main() {
	log := logger.New()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logger.NewContext(ctx, log)

	r := &runner{log: log}
	err := r.rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// PersistentPostRun is skipped when RunE fails
		r.close()
		log.Errorw("trader failed", "error", err)
	}
	os.Exit(exitCode(err))
}
