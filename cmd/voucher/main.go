// cmd/voucher/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voucher-service/internal/api/responses"
	"voucher-service/internal/config"
	"voucher-service/internal/core/dates"
	"voucher-service/internal/core/fields"
	"voucher-service/internal/core/records"
	"voucher-service/internal/core/render"
	"voucher-service/internal/core/voucher"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "voucher",
	Short: "Generate accounting vouchers from ledger spreadsheets",
	Long: `voucher reads a ledger spreadsheet (.xlsx, .xls, .csv), turns every
income or expense row into a numbered transaction record and renders one
voucher page per record onto a Word (.docx) template.

  voucher serve                               # HTTP API
  voucher generate ledger.xlsx -t form.docx   # one-shot generation
  voucher analyze form.docx                   # inspect a template`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := responses.InitLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newVoucherService wires the core components from the configuration.
func newVoucherService(cfg *config.Config, logger *zap.Logger) voucher.Service {
	resolver := fields.NewResolver(cfg.ResolverOptions())
	titles := cfg.Titles()
	return voucher.NewService(voucher.Config{
		Resolver: resolver,
		Dates:    dates.NewNormalizer(cfg.DateOptions()),
		Renderer: render.NewRenderer(render.Options{
			Labels:         resolver,
			Titles:         titles,
			DateStyle:      dates.Style(cfg.Dates.Style),
			BreakAfterLast: cfg.Render.BreakAfterLast,
			Logger:         logger,
		}),
		Titles:      titles,
		StrictDates: cfg.Dates.Strict,
		BothAmounts: records.BothAmountsPolicy(cfg.Extraction.BothAmounts),
		Ordering:    voucher.Ordering(cfg.Extraction.Ordering),
		HeaderScan:  cfg.Fields.HeaderScan,
		Logger:      logger,
	})
}
