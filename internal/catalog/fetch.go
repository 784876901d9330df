package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const fetchTimeout = 30 * time.Second

// Fetcher retrieves and merges catalog documents from an ordered source list.
type Fetcher struct {
	httpClient *http.Client
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves every source once, in order, and merges the documents.
// A failure on one source never aborts the others: the Result carries the
// union of what succeeded plus one SourceError per failed source. Custom
// descriptors colliding with a standard identifier+version replace it and
// keep the custom tag.
func (f *Fetcher) Fetch(ctx context.Context, sources []Source) *Result {
	res := &Result{}

	type key struct{ id, version string }
	position := make(map[key]int)

	for _, src := range sources {
		doc, err := f.fetchSource(ctx, src)
		if err != nil {
			res.Failures = append(res.Failures, classify(src, err))
			continue
		}

		for _, m := range doc.Modules {
			m.Source = src.Name
			m.Custom = src.Custom

			k := key{m.ID, m.Version}
			if pos, ok := position[k]; ok {
				if m.Custom {
					// Custom source takes precedence; keep the original
					// position so declaration order stays deterministic.
					res.Modules[pos] = m
				}
				continue
			}
			position[k] = len(res.Modules)
			res.Modules = append(res.Modules, m)
		}
	}

	return res
}

// fetchSource reads one source (URL or local path), validates it against
// the catalog schema, and decodes it. One attempt only; the caller decides
// re-invocation cadence.
func (f *Fetcher) fetchSource(ctx context.Context, src Source) (*Document, error) {
	data, err := f.read(ctx, src.Location)
	if err != nil {
		return nil, err
	}

	result, err := Validate(data)
	if err != nil {
		return nil, &parseError{fmt.Errorf("validating catalog: %w", err)}
	}
	if !result.Valid {
		return nil, &parseError{fmt.Errorf("catalog schema violation: %s", result.Summary())}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &parseError{fmt.Errorf("parsing catalog document: %w", err)}
	}
	return &doc, nil
}

func (f *Fetcher) read(ctx context.Context, location string) ([]byte, error) {
	if isURL(location) {
		return f.readHTTP(ctx, location)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", location, err)
	}
	return data, nil
}

func (f *Fetcher) readHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "cadmod-catalog")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading catalog body: %w", err)
	}
	return data, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// parseError marks a failure as content-related rather than transport-related.
type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func classify(src Source, err error) *SourceError {
	kind := KindNetwork
	var pe *parseError
	if errors.As(err, &pe) {
		kind = KindParse
	}
	return &SourceError{Source: src.Name, Kind: kind, Err: err}
}
