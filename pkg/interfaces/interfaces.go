package interfaces

import (
	"context"
	"net/http"
)

// HTTPClientFactory creates outbound HTTP clients.
type HTTPClientFactory interface {
	GetClient() (*http.Client, error)
}

// ImageFetcher retrieves an image from the CDN for proxied delivery.
// The caller closes the response body.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*http.Response, error)
}

// UpstreamValidator checks that the CDN is reachable.
type UpstreamValidator interface {
	Validate(ctx context.Context, targetURL string) error
}
