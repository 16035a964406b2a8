package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/config"
	"github.com/joelkehle/techtransfer-enrich/internal/logging"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
	"github.com/joelkehle/techtransfer-enrich/internal/report"
	"github.com/joelkehle/techtransfer-enrich/internal/source"
	"github.com/joelkehle/techtransfer-enrich/internal/tracing"
)

// serviceFactory builds the completion backend for a resolved config.
type serviceFactory func(ctx context.Context, cfg config.Config) (completion.Service, error)

// app carries state shared by every command.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	v          *viper.Viper
	envFiles   []string
	newService serviceFactory
	// printer renders PDF reports; nil means headless Chromium.
	printer report.HTMLPrinter

	cfg      config.Config
	logger   *zap.Logger
	shutdown tracing.ShutdownFunc
}

func (a *app) pdfPrinter() report.HTMLPrinter {
	if a.printer != nil {
		return a.printer
	}
	return report.NewPDFRenderer(a.cfg.PDF())
}

func newApp() *app {
	return &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		v:          config.New(),
		newService: defaultService,
		logger:     zap.NewNop(),
	}
}

func defaultService(ctx context.Context, cfg config.Config) (completion.Service, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}
	if cfg.Provider == config.ProviderGemini {
		svc, err := completion.NewGeminiService(ctx, key)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	svc, err := completion.NewAnthropicService(key)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (a *app) setup(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, cfgFile, a.envFiles...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	a.logger = logger
	if cfg.File != "" {
		a.logger.Debug("config loaded", zap.String("file", cfg.File))
	}

	shutdown, err := tracing.Setup(cmd.Context(), tracing.Options{Endpoint: cfg.OTLPEndpoint, ServiceName: "techenrich", Version: version})
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command) {
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(cmd.Context())); err != nil {
			a.logger.Warn("trace flush failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// runnerOptions applies configured retry, pacing and pricing to a stage.
func (a *app) runnerOptions() ([]completion.RunnerOption, error) {
	prices, err := a.prices()
	if err != nil {
		return nil, err
	}
	return []completion.RunnerOption{
		completion.WithPolicy(a.cfg.RetryPolicy()),
		completion.WithSpacing(a.cfg.RequestSpacing),
		completion.WithPrices(prices),
	}, nil
}

// prices is the embedded table, overlaid with PRICING_FILE when set.
func (a *app) prices() (*completion.PriceTable, error) {
	if a.cfg.PricingFile == "" {
		return completion.DefaultPrices(), nil
	}
	return completion.LoadPrices(a.cfg.PricingFile)
}

func (a *app) loadRecords(cmd *cobra.Command) ([]record.Record, error) {
	input, _ := cmd.Flags().GetString("input")
	limit, _ := cmd.Flags().GetInt("limit")
	university, _ := cmd.Flags().GetString("university")
	records, err := source.Load(cmd.Context(), input, source.Options{University: university, Limit: limit})
	if err != nil {
		return nil, err
	}
	a.logger.Info("records loaded", zap.String("input", input), zap.Int("count", len(records)))
	return records, nil
}

// writeOutput writes v as JSON to --out, or to stdout when unset.
func (a *app) writeOutput(cmd *cobra.Command, v any) error {
	out, _ := cmd.Flags().GetString("out")
	if out != "" {
		if err := report.WriteJSON(out, v); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(a.stderr, "wrote %s\n", out)
		return nil
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) progress(stage string) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(a.stderr, "%s: %d/%d\n", stage, done, total)
	}
}

func (a *app) printStats(stage string, s completion.Stats) {
	fmt.Fprintf(a.stderr, "%s: %d requests, %d completed, %d tokens, $%.4f\n",
		stage, s.Requests, s.Completed, s.TotalTokens, s.TotalCost)
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "records file (.json, .jsonl, .yaml) or scraper database (.db, .sqlite)")
	cmd.Flags().Int("limit", 0, "process at most this many records")
	cmd.Flags().String("university", "", "only records from this university (database input)")
	cmd.Flags().String("out", "", "write JSON results here instead of stdout")
	_ = cmd.MarkFlagRequired("input")
}
