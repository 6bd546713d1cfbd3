package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haytac/emoji-cdn/pkg/interfaces"
)

// DefaultUpstreamValidator implements interfaces.UpstreamValidator.
type DefaultUpstreamValidator struct {
	clientFactory interfaces.HTTPClientFactory
}

// NewDefaultUpstreamValidator creates a new validator.
func NewDefaultUpstreamValidator(factory interfaces.HTTPClientFactory) *DefaultUpstreamValidator {
	return &DefaultUpstreamValidator{clientFactory: factory}
}

// Validate checks that targetURL answers with a 2xx through the factory's client.
// Callers usually pass a known image URL on the CDN.
func (v *DefaultUpstreamValidator) Validate(ctx context.Context, targetURL string) error {
	client, err := v.clientFactory.GetClient()
	if err != nil {
		return fmt.Errorf("failed to get HTTP client: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, targetURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", targetURL, err)
	}
	req.Header.Set("User-Agent", "emoji-cdn-validator/1.0")

	log.Debug().Str("target_url", targetURL).Msg("Attempting to validate upstream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connection test to %s failed: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info().Str("target_url", targetURL).Int("status_code", resp.StatusCode).Msg("Upstream validation successful")
		return nil
	}

	return fmt.Errorf("connection test to %s returned status %d", targetURL, resp.StatusCode)
}
