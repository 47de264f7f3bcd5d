package main

import (
	"fmt"
	"io"
	"strings"

	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"

	"github.com/spf13/cobra"
)

func printCatalog(w io.Writer) {
	fmt.Fprintln(w, "templates:")
	for _, name := range strategy.TemplateNames() {
		t, _ := strategy.GetTemplate(name)
		fmt.Fprintf(w, "  %s\n", name)
		for _, cs := range t.Space() {
			params := make([]string, len(cs.Params))
			for i, p := range cs.Params {
				params[i] = p.Name
			}
			fmt.Fprintf(w, "    %-15s %s(%s)\n", cs.Slot, cs.Class, strings.Join(params, ", "))
		}
	}

	fmt.Fprintln(w, "conditions:")
	for _, class := range strategy.ConditionClasses() {
		slot, _ := strategy.ConditionSlot(class)
		fmt.Fprintf(w, "  %-15s %s\n", slot, class)
	}
	fmt.Fprintln(w, "stateful logic:")
	for _, class := range strategy.StatefulClasses() {
		fmt.Fprintf(w, "  %s\n", class)
	}
	fmt.Fprintln(w, "portfolio strategies:")
	for _, class := range strategy.PortfolioClasses() {
		fmt.Fprintf(w, "  %s\n", class)
	}
}

func (r *runner) strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List strategy templates, condition classes and portfolio strategies",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			printCatalog(c.OutOrStdout())
			return nil
		},
	}
}

func (r *runner) watchlistCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "watchlist",
		Short: "Show or edit the traded symbols",
	}
	c.AddCommand(
		&cobra.Command{
			Use:  "list",
			Args: cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				symbols, err := r.deps.WatchlistRepository.List(c.Context())
				if err != nil {
					return err
				}
				for _, s := range symbols {
					fmt.Fprintln(c.OutOrStdout(), s)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:  "add SYMBOL...",
			Args: cobra.MinimumNArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				for _, s := range args {
					if err := r.deps.WatchlistRepository.Add(c.Context(), s); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:  "remove SYMBOL...",
			Args: cobra.MinimumNArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				for _, s := range args {
					if err := r.deps.WatchlistRepository.Remove(c.Context(), s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
	return c
}

type resetFlags struct {
	stage    string
	symbol   string
	strategy string
	window   string
}

func (f resetFlags) key() (l1_service.PathKey, error) {
	stage, err := domain.ParseStage(f.stage)
	if err != nil {
		return l1_service.PathKey{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if f.symbol == "" {
		return l1_service.PathKey{}, fmt.Errorf("%w: --symbol is required", domain.ErrInvalidConfig)
	}
	return l1_service.PathKey{
		Stage:    stage,
		Symbol:   strings.ToUpper(f.symbol),
		Strategy: f.strategy,
		WindowID: f.window,
	}, nil
}

func (r *runner) stagesCmd() *cobra.Command {
	flags := resetFlags{}
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear the pages and markers of one stage directory so the next run recomputes it",
		Long: "Clear the pages and markers of one stage directory so the next run recomputes it.\n" +
			"Merged optimization results one level up are kept.",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			key, err := flags.key()
			if err != nil {
				return err
			}
			if err := r.deps.StageDataService.ClearDirectory(key); err != nil {
				return err
			}
			r.log.Infow("cleared stage directory", "key", key.String(), "dir", r.deps.StageDataService.GetDirectory(key))
			return nil
		},
	}
	reset.Flags().StringVar(&flags.stage, "stage", "", "stage name, e.g. signal_testing")
	reset.Flags().StringVar(&flags.symbol, "symbol", "", "symbol")
	reset.Flags().StringVar(&flags.strategy, "strategy", "", "strategy, for per strategy stages")
	reset.Flags().StringVar(&flags.window, "window", "", "window id, e.g. 20200101_20210101")
	reset.MarkFlagRequired("stage")

	c := &cobra.Command{
		Use:   "stages",
		Short: "Inspect and reset pipeline stage output",
	}
	c.AddCommand(reset)
	return c
}
