package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/logging"
)

// Delivery modes.
const (
	DeliveryRedirect = "redirect"
	DeliveryProxy    = "proxy"
)

// RateLimitConfig controls per-client request limiting. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AppConfig holds the application configuration.
type AppConfig struct {
	ListenAddr             string          `mapstructure:"listen_addr"`
	MetricsPort            string          `mapstructure:"metrics_port"`
	Dataset                string          `mapstructure:"dataset"` // file path or http(s) URL
	CDNBaseURL             string          `mapstructure:"cdn_base_url"`
	DefaultStyle           string          `mapstructure:"default_style"`
	Delivery               string          `mapstructure:"delivery"`
	UpstreamProxy          string          `mapstructure:"upstream_proxy"` // http://, https:// or socks5:// URL
	UpstreamTimeoutSeconds int             `mapstructure:"upstream_timeout_seconds"`
	RateLimit              RateLimitConfig `mapstructure:"rate_limit"`
	TrustedProxies         []string        `mapstructure:"trusted_proxies"` // IPs or CIDRs allowed to set X-Real-IP / X-Forwarded-For
	Log                    logging.Config  `mapstructure:"log"`
}

// UpstreamTimeout returns the outbound request timeout.
func (c *AppConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is not configured")
	}
	if c.Dataset == "" {
		return errors.New("dataset is not configured")
	}
	if _, err := cdn.ParseStyle(c.DefaultStyle); err != nil {
		return fmt.Errorf("default_style: %w", err)
	}
	switch c.Delivery {
	case DeliveryRedirect, DeliveryProxy:
	default:
		return fmt.Errorf("delivery must be %q or %q, got %q", DeliveryRedirect, DeliveryProxy, c.Delivery)
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		return fmt.Errorf("upstream_timeout_seconds must be positive, got %d", c.UpstreamTimeoutSeconds)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *AppConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	var cfg AppConfig

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_port", ":9090")
	v.SetDefault("dataset", "./emoji.json")
	v.SetDefault("cdn_base_url", cdn.DefaultBaseURL)
	v.SetDefault("default_style", string(cdn.DefaultStyle))
	v.SetDefault("delivery", DeliveryRedirect)
	v.SetDefault("upstream_proxy", "")
	v.SetDefault("upstream_timeout_seconds", 30)
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.time_format", time.RFC3339)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.emoji-cdn")
		v.AddConfigPath("/etc/emoji-cdn/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("EMOJI_CDN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
