package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"MarketForecast/internal/app"
	"MarketForecast/internal/config"
	"MarketForecast/internal/ledger"
	"MarketForecast/internal/logger"
	"MarketForecast/internal/model"
	"MarketForecast/internal/pipeline"

	"github.com/spf13/cobra"
)

type cli struct {
	out        io.Writer
	configPath string
	logLevel   string
	app        *app.App
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:          "forecast",
		Short:        "Next-step direction forecasts for market instruments",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app != nil {
				return c.app.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.Path(), "path to the YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(c.predictCmd(), c.predictFileCmd(), c.ohlcCmd(), c.historyCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.InitWriter("forecast", logger.Config{Level: c.logLevel, Format: "console"}, cmd.ErrOrStderr())

	c.app, err = app.New(cmd.Context(), cfg, app.Options{UseService: true})
	return err
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) predictCmd() *cobra.Command {
	var start, end string
	var lite bool
	cmd := &cobra.Command{
		Use:   "predict SYMBOL",
		Short: "Forecast the next step for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Service.PredictSymbol(cmd.Context(), pipeline.Request{
				Symbol: args[0], Start: start, End: end, Lightweight: lite,
			})
			if err != nil {
				return err
			}
			return c.print(res.Prediction)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "range start date (default one year ago)")
	cmd.Flags().StringVar(&end, "end", "", "range end date (default today)")
	cmd.Flags().BoolVar(&lite, "lite", false, "skip training and use the moving-average heuristic")
	return cmd
}

func (c *cli) predictFileCmd() *cobra.Command {
	var lite bool
	cmd := &cobra.Command{
		Use:   "predict-file PATH",
		Short: "Forecast from a local CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := c.app.Service.PredictFile(cmd.Context(), filepath.Base(args[0]), f, lite)
			if err != nil {
				return err
			}
			return c.print(res.Prediction)
		},
	}
	cmd.Flags().BoolVar(&lite, "lite", false, "skip training and use the moving-average heuristic")
	return cmd
}

func (c *cli) ohlcCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "ohlc SYMBOL",
		Short: "Print the daily price series for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Service.OHLC(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			return c.print(struct {
				Source   model.Source     `json:"source"`
				Provider string           `json:"provider"`
				Rows     []model.PriceBar `json:"rows"`
			}{res.Source, res.Provider, res.Bars})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "range start date (default one year ago)")
	cmd.Flags().StringVar(&end, "end", "", "range end date (default today)")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded predictions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records := c.app.Ledger.List()
			if limit >= 0 && limit < len(records) {
				records = records[:limit]
			}
			return c.print(struct {
				Records []model.PredictionRecord `json:"records"`
				Summary ledger.Summary           `json:"summary"`
			}{records, c.app.Ledger.Summary()})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print (negative for all)")
	return cmd
}
