package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"suumo-scraper/config"
	"suumo-scraper/models"
	"suumo-scraper/pipeline"
	"suumo-scraper/scraper/suumo"
	"suumo-scraper/services"
	"suumo-scraper/storage"
	"suumo-scraper/utils"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "suumo-scraper",
		Short: "Scrape SUUMO rental listings into CSV and a database table",
		Long: `Walks the pages of a SUUMO chintai search, extracts name, building age
and floor area for every listing, and appends the batch to a CSV file and a
database table. Settings come from the environment (or .env); flags override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "search URL the page parameter is appended to")
	f.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "highest page index to fetch")
	f.IntVar(&cfg.PageDelayMs, "delay", cfg.PageDelayMs, "minimum milliseconds between page fetches")
	f.IntVar(&cfg.MaxConcurrency, "concurrency", cfg.MaxConcurrency, "pages fetched at once")
	f.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "attempts per page on network or 5xx errors")
	f.IntVar(&cfg.StopAfterEmpty, "stop-after-empty", cfg.StopAfterEmpty, "stop after this many consecutive empty pages (0 = never)")
	f.StringVar(&cfg.CSVOutputPath, "csv", cfg.CSVOutputPath, "CSV output path")
	f.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "table sink driver: sqlite, postgres or mysql")
	f.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "table sink data source name")
	f.StringVar(&cfg.TableName, "table", cfg.TableName, "table sink table name")
	f.BoolVar(&cfg.ReportFromTable, "report-from-table", cfg.ReportFromTable, "summarise every row in the table, not just this run")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write JSON logs to this rotated file")

	var noCSV, noDB bool
	f.BoolVar(&noCSV, "no-csv", false, "disable the CSV sink")
	f.BoolVar(&noDB, "no-db", false, "disable the table sink")
	cmd.PreRun = func(*cobra.Command, []string) {
		if noCSV {
			cfg.CSVEnabled = false
		}
		if noDB {
			cfg.DBEnabled = false
		}
	}

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== SUUMO Scraping System starting ===")
	logger.Info("Config: pages %d | delay %dms | concurrency %d | retries %d | stop after %d empty",
		cfg.MaxPages, cfg.PageDelayMs, cfg.MaxConcurrency, cfg.MaxRetries, cfg.StopAfterEmpty)

	var sinks []storage.Sink
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Error("Closing %s failed: %v", s.Name(), err)
			}
		}
	}()

	// The table sink opens first: it is the one that can fail on startup, and
	// the CSV file is only replaced once a batch has been written to it.
	var reader storage.ListingReader
	if cfg.DBEnabled {
		sqlWriter, err := storage.NewSQLWriter(ctx, cfg.DBDriver, cfg.DBDSN, cfg.TableName, logger)
		if err != nil {
			logger.Error("Failed to open %s table sink: %v", cfg.DBDriver, err)
			return err
		}
		sinks = append(sinks, sqlWriter)
		reader = sqlWriter
	}

	if cfg.CSVEnabled {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			return err
		}
		sinks = append(sinks, csvWriter)
	}

	if len(sinks) == 0 {
		logger.Warn("No sinks enabled, listings will only be summarised")
	}

	p := pipeline.New(suumo.New(cfg, logger), sinks, logger)
	res, err := p.Run(ctx)
	if err != nil {
		logger.Error("Run aborted: %v", err)
		return err
	}

	if len(res.Listings) == 0 {
		logger.Warn("No listings were scraped.")
	}

	reported := res.Listings
	if reader != nil {
		reported, err = tableListings(context.WithoutCancel(ctx), cfg, reader, res.Listings, logger)
		if err != nil {
			return err
		}
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(reported, res.Stats)
	insightSvc.Print(os.Stdout, report)

	fmt.Printf("  Done. %d listings", len(res.Listings))
	if cfg.CSVEnabled {
		fmt.Printf(" | CSV → %s", cfg.CSVOutputPath)
	}
	if cfg.DBEnabled {
		fmt.Printf(" | %s → %s", cfg.DBDriver, cfg.TableName)
	}
	fmt.Print("\n\n")
	return nil
}

// tableListings logs the size of the table and, with ReportFromTable set,
// returns every stored row so insights cover all runs instead of this batch.
func tableListings(ctx context.Context, cfg *config.Config, reader storage.ListingReader, batch []*models.Listing, logger *utils.Logger) ([]*models.Listing, error) {
	n, err := reader.Count(ctx)
	if err != nil {
		logger.Error("Counting rows in %s failed: %v", cfg.TableName, err)
		return nil, err
	}
	logger.Info("Table %s now holds %d rows", cfg.TableName, n)

	if !cfg.ReportFromTable {
		return batch, nil
	}
	rows, err := reader.FetchAll(ctx)
	if err != nil {
		logger.Error("Reading %s for the report failed: %v", cfg.TableName, err)
		return nil, err
	}
	return rows, nil
}
