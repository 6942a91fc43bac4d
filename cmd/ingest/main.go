// Package main is the FloatChat batch ingestion CLI.
//
// Two modes:
//
//	floatchat-ingest -files a.nc b.nc      ingest NetCDF files from disk
//	floatchat-ingest -index -days 7        seed from the ARGO global index
//
// Both modes connect to the configured Postgres instance, apply the schema,
// and print a per-run report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"floatchat/internal/config"
	"floatchat/internal/db"
	"floatchat/internal/ingest"
	"floatchat/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		indexMode = flag.Bool("index", false, "seed from the ARGO global profile index")
		daysBack  = flag.Int("days", 0, "index mode: only profiles newer than N days (0 uses INGEST_DAYS_BACK)")
		region    = flag.String("region", "", "index mode: basin filter (indian, pacific, atlantic)")
		limit     = flag.Int("limit", 0, "index mode: cap on downloaded profiles (0 uses INGEST_LIMIT)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	svc := ingest.NewService(
		db.NewProfileRepository(pool),
		db.NewFloatRepository(pool),
		cfg.Ingest.Parallelism,
		logger,
		nil,
	)

	var report *types.IngestReport
	if *indexMode {
		report, err = runIndex(ctx, svc, cfg.Ingest, *daysBack, *region, *limit, logger)
	} else {
		report, err = runFiles(ctx, svc, flag.Args())
	}
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

// runFiles ingests NetCDF files named on the command line.
func runFiles(ctx context.Context, svc *ingest.Service, paths []string) (*types.IngestReport, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files; pass .nc paths or use -index")
	}

	files := make([]ingest.NamedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, ingest.NamedFile{Name: filepath.Base(p), Data: data})
	}
	return svc.IngestBatch(ctx, files)
}

// runIndex fetches the global profile index, downloads matching files, and
// ingests them. Download failures are reported and skipped.
func runIndex(ctx context.Context, svc *ingest.Service, cfg config.IngestConfig,
	daysBack int, region string, limit int, logger *slog.Logger) (*types.IngestReport, error) {

	if daysBack <= 0 {
		daysBack = cfg.DaysBack
	}
	if region == "" {
		region = cfg.Region
	}
	if limit <= 0 {
		limit = cfg.Limit
	}

	fetcher := ingest.NewFetcher(nil, cfg.IndexURL, cfg.Mirrors, logger)
	opts := ingest.IndexOptions{Ocean: region, Limit: limit}
	if daysBack > 0 {
		opts.Since = time.Now().UTC().AddDate(0, 0, -daysBack)
	}

	entries, err := fetcher.FetchIndex(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching index: %w", err)
	}
	logger.Info("index fetched", "matched", len(entries))

	var files []ingest.NamedFile
	var downloadErrs []string
	for _, entry := range entries {
		data, err := fetcher.DownloadProfile(ctx, entry.File)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("download failed", "file", entry.File, "error", err)
			downloadErrs = append(downloadErrs, entry.File+": download failed")
			continue
		}
		files = append(files, ingest.NamedFile{Name: entry.File, Data: data})
	}

	report, err := svc.IngestBatch(ctx, files)
	if err != nil {
		return nil, err
	}
	report.Errors = append(report.Errors, downloadErrs...)
	return report, nil
}

func printReport(report *types.IngestReport) {
	fmt.Printf("accepted: %d\nskipped:  %d\n", report.Accepted, report.Skipped)
	if len(report.Errors) > 0 {
		fmt.Printf("errors:   %d\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Println("  - " + e)
		}
	}
}
