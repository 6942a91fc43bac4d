// Package handlers contains the HTTP handler implementations for the
// FloatChat API: profile retrieval, store statistics, CSV export, chat,
// and ingestion.
package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"floatchat/internal/core"
	"floatchat/internal/types"
)

// maxFloatListLimit caps GET /v1/argo/floats result sizes.
const maxFloatListLimit = 1000

// ProfileStoreInterface is the Float Store contract the argo handler needs.
// Defined locally to keep the handler decoupled from the db package.
type ProfileStoreInterface interface {
	Query(ctx context.Context, filter types.StructuredFilter) ([]types.FloatProfile, error)
	Count(ctx context.Context, filter types.StructuredFilter) (int64, error)
	Stats(ctx context.Context, filter types.StructuredFilter) (*types.StatsSummary, error)
	Get(ctx context.Context, floatID string, cycleNumber int) (*types.FloatProfile, error)
}

// FloatStoreInterface is the float-metadata contract the argo handler needs.
type FloatStoreInterface interface {
	Get(ctx context.Context, platformNumber string) (*types.ArgoFloat, error)
	List(ctx context.Context, limit int) ([]types.ArgoFloat, error)
}

// ArgoHandler maps HTTP requests onto the profile and float stores.
type ArgoHandler struct {
	profiles ProfileStoreInterface
	floats   FloatStoreInterface
	logger   *slog.Logger
}

// NewArgoHandler creates an ArgoHandler with the provided dependencies.
func NewArgoHandler(profiles ProfileStoreInterface, floats FloatStoreInterface, logger *slog.Logger) *ArgoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArgoHandler{profiles: profiles, floats: floats, logger: logger}
}

// RegisterRoutes mounts the argo endpoints onto the /v1 group.
func (h *ArgoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/argo", func(r chi.Router) {
		r.Get("/profiles", h.HandleListProfiles)
		r.Get("/profiles/{floatID}/{cycle}", h.HandleGetProfile)
		r.Get("/floats", h.HandleListFloats)
		r.Get("/floats/{platformNumber}", h.HandleGetFloat)
		r.Get("/stats", h.HandleGetStats)
		r.Get("/export", h.HandleExport)
	})
}

// profileListResponse is the body of GET /v1/argo/profiles.
type profileListResponse struct {
	Profiles []types.FloatProfile `json:"profiles"`
	Count    int                  `json:"count"`
	Total    int64                `json:"total"`
}

// HandleListProfiles handles GET /v1/argo/profiles. The query parameters
// form a StructuredFilter; unset parameters are unconstrained.
func (h *ArgoHandler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	profiles, err := h.profiles.Query(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	total, err := h.profiles.Count(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: profileListResponse{
		Profiles: profiles,
		Count:    len(profiles),
		Total:    total,
	}})
}

// HandleGetProfile handles GET /v1/argo/profiles/{floatID}/{cycle}.
func (h *ArgoHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	floatID := chi.URLParam(r, "floatID")
	cycle, err := strconv.Atoi(chi.URLParam(r, "cycle"))
	if err != nil || cycle < 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidFilter,
			"cycle must be a non-negative integer", err))
		return
	}

	profile, err := h.profiles.Get(r.Context(), floatID, cycle)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: profile})
}

// HandleListFloats handles GET /v1/argo/floats.
func (h *ArgoHandler) HandleListFloats(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitParam(r, maxFloatListLimit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	floats, err := h.floats.List(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"floats": floats,
		"count":  len(floats),
	}})
}

// HandleGetFloat handles GET /v1/argo/floats/{platformNumber}.
func (h *ArgoHandler) HandleGetFloat(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platformNumber")
	f, err := h.floats.Get(r.Context(), platform)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: f})
}

// HandleGetStats handles GET /v1/argo/stats. The same filter parameters as
// the profile listing apply, so stats can describe a sub-region or window.
func (h *ArgoHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stats, err := h.profiles.Stats(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stats})
}

// HandleExport handles GET /v1/argo/export: the filtered profile set as CSV,
// one row per measurement level. The query runs before any bytes are
// written so failures still produce a proper error envelope.
func (h *ArgoHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterParams(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	profiles, err := h.profiles.Query(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="argo_profiles.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"float_id", "cycle_number", "timestamp", "latitude",
		"longitude", "ocean_region", "parameter", "depth", "value"})
	for _, p := range profiles {
		base := []string{
			p.FloatID,
			strconv.Itoa(p.CycleNumber),
			p.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Latitude, 'f', -1, 64),
			strconv.FormatFloat(p.Longitude, 'f', -1, 64),
			p.OceanRegion,
		}
		for _, series := range p.Series {
			for _, level := range series.Levels {
				row := append(append([]string(nil), base...),
					string(series.Parameter),
					strconv.FormatFloat(level.Depth, 'f', -1, 64),
					strconv.FormatFloat(level.Value, 'f', -1, 64))
				if err := cw.Write(row); err != nil {
					h.logger.Warn("csv export aborted", slog.String("error", err.Error()))
					return
				}
			}
		}
	}
	cw.Flush()
}

// parseFilterParams builds a StructuredFilter from list-endpoint query
// parameters. Unlike the translator path, malformed values here are caller
// errors and are rejected rather than clamped.
func parseFilterParams(r *http.Request) (types.StructuredFilter, error) {
	q := r.URL.Query()
	var filter types.StructuredFilter

	box, boxSet, err := parseBoxParams(q.Get("lat_min"), q.Get("lat_max"), q.Get("lon_min"), q.Get("lon_max"))
	if err != nil {
		return filter, err
	}
	if boxSet {
		filter.Region = box
	}

	start, err := parseDateParam(q.Get("start"))
	if err != nil {
		return filter, err
	}
	end, err := parseDateParam(q.Get("end"))
	if err != nil {
		return filter, err
	}
	if !start.IsZero() || !end.IsZero() {
		if !end.IsZero() && len(q.Get("end")) == len("2006-01-02") {
			// A date-only end bound is inclusive of that day.
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.Time = &types.TimeRange{Start: start, End: end}
	}

	if region := strings.ToLower(strings.TrimSpace(q.Get("region"))); region != "" {
		filter.RegionName = region
	}

	if ids := q.Get("float_ids"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.FloatIDs = append(filter.FloatIDs, id)
			}
		}
	}

	if param := q.Get("parameter"); param != "" {
		p := types.Parameter(strings.ToLower(param))
		if !p.Valid() {
			return filter, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidFilter,
				fmt.Sprintf("unknown parameter %q", param), nil,
				map[string]any{"supported": types.Parameters()})
		}
		filter.Parameter = p
	}

	limit, err := parseLimitParam(r, 0)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit

	filter.Normalize()
	return filter, nil
}

// parseBoxParams returns a bounding box when any of the four corners is set,
// defaulting missing corners to the globe.
func parseBoxParams(latMin, latMax, lonMin, lonMax string) (*types.BoundingBox, bool, error) {
	if latMin == "" && latMax == "" && lonMin == "" && lonMax == "" {
		return nil, false, nil
	}

	box := &types.BoundingBox{LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 180}
	for _, p := range []struct {
		raw  string
		dst  *float64
		name string
		code types.ErrorCode
		lo   float64
		hi   float64
	}{
		{latMin, &box.LatMin, "lat_min", types.ErrCodeValidationInvalidLat, -90, 90},
		{latMax, &box.LatMax, "lat_max", types.ErrCodeValidationInvalidLat, -90, 90},
		{lonMin, &box.LonMin, "lon_min", types.ErrCodeValidationInvalidLon, -180, 180},
		{lonMax, &box.LonMax, "lon_max", types.ErrCodeValidationInvalidLon, -180, 180},
	} {
		if p.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.raw, 64)
		if err != nil || v < p.lo || v > p.hi {
			return nil, false, types.NewAppError(p.code,
				fmt.Sprintf("%s must be a number between %g and %g", p.name, p.lo, p.hi), err)
		}
		*p.dst = v
	}
	return box, true, nil
}

// parseDateParam accepts RFC3339 or a bare date. Empty means unset.
func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidDate,
		fmt.Sprintf("%q is not a valid date; use YYYY-MM-DD or RFC3339", raw), nil)
}

// parseLimitParam reads the limit query parameter. Zero means "use the
// store default"; maxLimit of zero means uncapped here.
func parseLimitParam(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidFilter,
			"limit must be a non-negative integer", err)
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
