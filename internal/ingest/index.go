package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"floatchat/internal/types"
)

// IndexEntry is one line of the ARGO global profile index.
type IndexEntry struct {
	// File is the profile path relative to the DAC root, for example
	// "aoml/2902746/profiles/R2902746_012.nc".
	File  string
	Date  time.Time
	Lat   float64
	Lon   float64
	Ocean string
}

// IndexOptions narrows the index scan.
type IndexOptions struct {
	// Since drops entries older than this instant. Zero keeps everything.
	Since time.Time
	// Ocean filters by basin name (indian, pacific, atlantic). Empty keeps
	// all basins.
	Ocean string
	// Limit caps the number of returned entries. Zero means no cap.
	Limit int
}

// oceanCodes maps basin names to the single-letter codes the index uses.
var oceanCodes = map[string]string{
	"indian":   "I",
	"pacific":  "P",
	"atlantic": "A",
}

// Fetcher downloads the gzip'd ARGO profile index, falling back through
// mirrors when the primary source is unreachable.
type Fetcher struct {
	httpClient *http.Client
	sources    []string
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher over the primary index URL and its mirrors.
func NewFetcher(httpClient *http.Client, primary string, mirrors []string, logger *slog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		httpClient: httpClient,
		sources:    append([]string{primary}, mirrors...),
		logger:     logger,
	}
}

// FetchIndex downloads and filters the profile index. Every source is tried
// in order; only when all fail does the call error with the index-source
// code.
func (f *Fetcher) FetchIndex(ctx context.Context, opts IndexOptions) ([]IndexEntry, error) {
	var lastErr error
	for _, src := range f.sources {
		entries, err := f.fetchFrom(ctx, src, opts)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		f.logger.Warn("index source failed, trying next",
			slog.String("source", src),
			slog.String("error", err.Error()))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, types.NewAppError(types.ErrCodeIngestIndexSource,
		"no ARGO index source is reachable", lastErr)
}

func (f *Fetcher) fetchFrom(ctx context.Context, src string, opts IndexOptions) ([]IndexEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index source returned %d", resp.StatusCode)
	}

	body := resp.Body
	// Index files ship gzip'd; a plain-text mirror still works.
	if strings.HasSuffix(src, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decompress index: %w", err)
		}
		defer gz.Close()
		body = gz
	}
	return parseIndex(body, opts)
}

// parseIndex scans index lines, skipping comments and the header. Lines
// with missing position or date fields are dropped silently: the index
// routinely carries them and they cannot be ingested anyway.
func parseIndex(r io.Reader, opts IndexOptions) ([]IndexEntry, error) {
	wantOcean := oceanCodes[strings.ToLower(opts.Ocean)]

	var entries []IndexEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "file,") {
			continue
		}
		entry, ok := parseIndexLine(line)
		if !ok {
			continue
		}
		if !opts.Since.IsZero() && entry.Date.Before(opts.Since) {
			continue
		}
		if wantOcean != "" && entry.Ocean != wantOcean {
			continue
		}
		entries = append(entries, entry)
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return entries, nil
}

// parseIndexLine decodes one CSV line:
// file,date,latitude,longitude,ocean,profiler_type,institution,date_update
func parseIndexLine(line string) (IndexEntry, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 5 || fields[0] == "" {
		return IndexEntry{}, false
	}
	date, err := time.Parse("20060102150405", fields[1])
	if err != nil {
		return IndexEntry{}, false
	}
	lat, errLat := strconv.ParseFloat(fields[2], 64)
	lon, errLon := strconv.ParseFloat(fields[3], 64)
	if errLat != nil || errLon != nil {
		return IndexEntry{}, false
	}
	return IndexEntry{
		File:  fields[0],
		Date:  date.UTC(),
		Lat:   lat,
		Lon:   lon,
		Ocean: fields[4],
	}, true
}

// DownloadProfile fetches one NetCDF file named by an index entry, resolving
// it against the DAC root of each configured source in order.
func (f *Fetcher) DownloadProfile(ctx context.Context, file string) ([]byte, error) {
	var lastErr error
	for _, src := range f.sources {
		base, err := dacRoot(src)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := f.download(ctx, base+file)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, types.NewAppError(types.ErrCodeIngestIndexSource,
		fmt.Sprintf("profile file %s is unreachable", file), lastErr)
}

func (f *Fetcher) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", fileURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 64<<20))
}

// dacRoot turns an index URL into its sibling dac/ directory URL.
func dacRoot(indexURL string) (string, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return "", err
	}
	dir := u.Path
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	}
	u.Path = dir + "/dac/"
	return u.String(), nil
}
