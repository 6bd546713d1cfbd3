package emoji

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

const maxDatasetBytes = 64 << 20

// Loader reads the raw dataset from a local path or an http(s) URL.
type Loader struct {
	// HTTPClient is the transport used for URL sources. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives retry diagnostics for URL sources. It may be nil.
	Logger retryablehttp.LeveledLogger
}

// Load reads and flattens the dataset at source and builds a Table from it.
func (l *Loader) Load(ctx context.Context, source string) (*Table, error) {
	started := time.Now()
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}
	records, err := Flatten(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", source, err)
	}
	table, err := NewTable(records)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", source, err)
	}
	log.Info().
		Str("source", source).
		Int("bases", table.Bases()).
		Int("records", table.Len()).
		Dur("took", time.Since(started)).
		Msg("Emoji dataset loaded")
	return table, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read dataset file %s: %w", source, err)
		}
		return data, nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = l.Logger
	if l.HTTPClient != nil {
		client.HTTPClient = l.HTTPClient
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request for %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download dataset %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download dataset %s: status %d", source, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, fmt.Errorf("read dataset body from %s: %w", source, err)
	}
	return data, nil
}

// Lazy returns a function that loads the table on its first call and returns
// the same table, or the same error, on every later call.
func (l *Loader) Lazy(source string) func() (*Table, error) {
	return sync.OnceValues(func() (*Table, error) {
		return l.Load(context.Background(), source)
	})
}
