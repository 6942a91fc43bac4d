package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"floatchat/internal/core"
	"floatchat/internal/ingest"
	"floatchat/internal/types"
)

// maxUploadSize caps a single uploaded NetCDF file. Real ARGO profile files
// run a few hundred KB; multi-profile files can reach tens of MB.
const maxUploadSize = 64 << 20

// IngestServiceInterface is the ingestion contract the ingest handler needs.
type IngestServiceInterface interface {
	IngestFile(ctx context.Context, name string, data []byte) (*types.IngestReport, error)
	IngestBatch(ctx context.Context, files []ingest.NamedFile) (*types.IngestReport, error)
}

// IndexFetcherInterface wraps the ARGO index client for index-driven seeding.
type IndexFetcherInterface interface {
	FetchIndex(ctx context.Context, opts ingest.IndexOptions) ([]ingest.IndexEntry, error)
	DownloadProfile(ctx context.Context, file string) ([]byte, error)
}

// IngestHandler maps HTTP requests onto the ingestion service.
type IngestHandler struct {
	service IngestServiceInterface
	fetcher IndexFetcherInterface
	logger  *slog.Logger
}

// NewIngestHandler creates an IngestHandler. fetcher may be nil, in which
// case index-driven ingestion is unavailable.
func NewIngestHandler(svc IngestServiceInterface, fetcher IndexFetcherInterface, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{service: svc, fetcher: fetcher, logger: logger}
}

// RegisterRoutes mounts the ingest endpoints onto the /v1 group.
func (h *IngestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ingest", func(r chi.Router) {
		r.Post("/", h.HandleUpload)
		r.Post("/index", h.HandleIndexSeed)
	})
}

// HandleUpload handles POST /v1/ingest. The request body is one raw NetCDF
// file; an optional filename query parameter names it in the report.
func (h *IngestHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.nc"
	}
	// Only the base name reaches logs and reports.
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidFilter,
				"uploaded file exceeds the 64MB limit", err))
			return
		}
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"failed to read request body", err))
		return
	}
	if len(data) == 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"request body must contain a NetCDF file", nil))
		return
	}

	report, err := h.service.IngestFile(r.Context(), name, data)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// indexSeedRequest is the body of POST /v1/ingest/index.
type indexSeedRequest struct {
	DaysBack int    `json:"days_back"`
	Region   string `json:"region"`
	Limit    int    `json:"limit"`
}

// indexSeedResponse reports an index-driven seeding run.
type indexSeedResponse struct {
	Matched    int                 `json:"matched"`
	Downloaded int                 `json:"downloaded"`
	Report     *types.IngestReport `json:"report"`
}

// HandleIndexSeed handles POST /v1/ingest/index: fetch the global profile
// index, download the matching profile files, and ingest them as a batch.
// Download failures are recorded in the report; the run continues.
func (h *IngestHandler) HandleIndexSeed(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeIngestIndexSource,
			"index-driven ingestion is not configured", nil))
		return
	}

	var req indexSeedRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.DaysBack < 0 || req.Limit < 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidFilter,
			"days_back and limit must be non-negative", nil))
		return
	}

	opts := ingest.IndexOptions{
		Ocean: strings.ToLower(strings.TrimSpace(req.Region)),
		Limit: req.Limit,
	}
	if req.DaysBack > 0 {
		opts.Since = time.Now().UTC().AddDate(0, 0, -req.DaysBack)
	}

	entries, err := h.fetcher.FetchIndex(r.Context(), opts)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var files []ingest.NamedFile
	var downloadErrs []string
	for _, entry := range entries {
		data, err := h.fetcher.DownloadProfile(r.Context(), entry.File)
		if err != nil {
			h.logger.Warn("profile download failed",
				slog.String("file", entry.File),
				slog.String("error", err.Error()))
			downloadErrs = append(downloadErrs, entry.File+": download failed")
			continue
		}
		files = append(files, ingest.NamedFile{Name: entry.File, Data: data})
	}

	report, err := h.service.IngestBatch(r.Context(), files)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	report.Errors = append(report.Errors, downloadErrs...)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: indexSeedResponse{
		Matched:    len(entries),
		Downloaded: len(files),
		Report:     report,
	}})
}
