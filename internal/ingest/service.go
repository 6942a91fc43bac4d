// Package ingest drives profile ingestion: NetCDF byte streams are parsed,
// validated, tagged with their ocean basin, and upserted into the store.
// Files in a batch run in parallel; rows within a file are independent, so
// a bad row is counted and skipped rather than failing the file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"floatchat/internal/netcdf"
	"floatchat/internal/observability"
	"floatchat/internal/types"
)

// ProfileWriter is the store surface ingestion writes through.
type ProfileWriter interface {
	Upsert(ctx context.Context, p *types.FloatProfile) error
}

// FloatRegistrar records platform numbers seen during ingestion.
type FloatRegistrar interface {
	EnsureExists(ctx context.Context, platformNumber string) error
}

// Service ingests profile files.
type Service struct {
	profiles    ProfileWriter
	floats      FloatRegistrar
	parallelism int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(profiles ProfileWriter, floats FloatRegistrar, parallelism int,
	logger *slog.Logger, metrics *observability.Metrics) *Service {
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles:    profiles,
		floats:      floats,
		parallelism: parallelism,
		logger:      logger,
		metrics:     metrics,
	}
}

// IngestFile parses one NetCDF byte stream and stores every valid profile.
// The report counts accepted and skipped rows; parse-level failures (bad
// format, missing schema, nothing valid) surface as typed errors.
func (s *Service) IngestFile(ctx context.Context, name string, data []byte) (*types.IngestReport, error) {
	started := time.Now()
	res, err := netcdf.Parse(data)
	if err != nil {
		s.observe("error", 0, 0, started)
		return nil, err
	}

	report := &types.IngestReport{Skipped: res.Skipped, Errors: res.RowErrors}
	seen := map[string]struct{}{}
	for i := range res.Profiles {
		p := &res.Profiles[i]
		p.OceanRegion = oceanRegion(p.Latitude, p.Longitude)

		if _, ok := seen[p.FloatID]; !ok {
			seen[p.FloatID] = struct{}{}
			if err := s.floats.EnsureExists(ctx, p.FloatID); err != nil {
				s.observe("error", report.Accepted, report.Skipped, started)
				return report, err
			}
		}
		if err := s.profiles.Upsert(ctx, p); err != nil {
			s.observe("error", report.Accepted, report.Skipped, started)
			return report, err
		}
		report.Accepted++
	}

	s.logger.Info("file ingested",
		slog.String("file", name),
		slog.Int("accepted", report.Accepted),
		slog.Int("skipped", report.Skipped))
	s.observe("success", report.Accepted, report.Skipped, started)
	return report, nil
}

// NamedFile pairs a file name with its contents.
type NamedFile struct {
	Name string
	Data []byte
}

// IngestBatch processes files concurrently and merges their reports. A file
// that fails to parse is recorded in the merged report's errors; the batch
// continues. Only storage errors abort the batch.
func (s *Service) IngestBatch(ctx context.Context, files []NamedFile) (*types.IngestReport, error) {
	var mu sync.Mutex
	merged := &types.IngestReport{}
	fileErrs := map[string]string{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, f := range files {
		g.Go(func() error {
			report, err := s.IngestFile(ctx, f.Name, f.Data)
			mu.Lock()
			defer mu.Unlock()
			if report != nil {
				merged.Merge(*report)
			}
			if err != nil {
				var appErr *types.AppError
				if errors.As(err, &appErr) && appErr.Code.HTTPStatus() < 500 {
					// File-local problem: record and keep going.
					fileErrs[f.Name] = appErr.Message
					return nil
				}
				return fmt.Errorf("ingest %s: %w", f.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return merged, err
	}

	// Deterministic error ordering for the merged report.
	names := make([]string, 0, len(fileErrs))
	for name := range fileErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		merged.Errors = append(merged.Errors, fmt.Sprintf("%s: %s", name, fileErrs[name]))
	}
	return merged, nil
}

func (s *Service) observe(outcome string, accepted, skipped int, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.FilesIngested.WithLabelValues(outcome).Inc()
	s.metrics.ProfilesAccepted.Add(float64(accepted))
	s.metrics.ProfilesSkipped.Add(float64(skipped))
	s.metrics.IngestDuration.Observe(time.Since(started).Seconds())
}
