// Package fetcher downloads remote data and reads the spreadsheet, CSV, and
// JSON files the freight engine consumes.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a URL.
type Fetcher interface {
	// Download fetches url and returns the response body. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
