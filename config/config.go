// Package config holds the process configuration of the DNS service and its validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

const (
	DefaultCacheTTLMs   = 300000
	DefaultBatchSize    = 100
	DefaultBatchDelayMs = 1000
	DefaultCallTimeout  = 10 * time.Second
	DefaultTLD          = "anyone"
)

type Config struct {
	// JSONRPCURL is the Ethereum JSON-RPC endpoint serving the registry.
	JSONRPCURL string

	// ProxyReaderAddress is the hex address of the UNS ProxyReader contract.
	ProxyReaderAddress string

	// InventoryBaseURL is the Anyone API base URL; the domain list is read from
	// InventoryBaseURL + "/anyone-domains".
	InventoryBaseURL string

	// CacheTTLMs is the wait between cache refreshes in milliseconds.
	CacheTTLMs int64

	BatchSize    int
	BatchDelayMs int64
	CallTimeout  time.Duration

	// DomainTLDs are accepted TLDs for queried domains, AddressTLDs for hidden service addresses.
	DomainTLDs  []string
	AddressTLDs []string
}

// Default returns a configuration with every optional value set.
func Default() Config {
	return Config{
		CacheTTLMs:   DefaultCacheTTLMs,
		BatchSize:    DefaultBatchSize,
		BatchDelayMs: DefaultBatchDelayMs,
		CallTimeout:  DefaultCallTimeout,
		DomainTLDs:   []string{DefaultTLD},
		AddressTLDs:  []string{DefaultTLD},
	}
}

// Validate reports every missing or malformed value.
func (c Config) Validate() error {
	var errs []error

	if c.JSONRPCURL == "" {
		errs = append(errs, errors.New("JSON_RPC_URL is not set"))
	} else if err := validateURL(c.JSONRPCURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid JSON_RPC_URL: %w", err))
	}

	if c.ProxyReaderAddress == "" {
		errs = append(errs, errors.New("UNS_PROXY_READER_ADDRESS is not set"))
	} else if _, err := interfaces.NewContractAddressFromHex(c.ProxyReaderAddress); err != nil {
		errs = append(errs, fmt.Errorf("invalid UNS_PROXY_READER_ADDRESS: %w", err))
	}

	if c.InventoryBaseURL == "" {
		errs = append(errs, errors.New("ANYONE_API_BASE_URL is not set"))
	} else if err := validateURL(c.InventoryBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid ANYONE_API_BASE_URL: %w", err))
	}

	if c.CacheTTLMs < 0 {
		errs = append(errs, fmt.Errorf("ANYONE_DOMAINS_CACHE_TTL_MS must be a non-negative number, got %d", c.CacheTTLMs))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.BatchDelayMs < 0 {
		errs = append(errs, fmt.Errorf("batch delay must be non-negative, got %d", c.BatchDelayMs))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout))
	}
	if len(interfaces.NewTLDSet(c.DomainTLDs...)) == 0 {
		errs = append(errs, errors.New("at least one supported domain TLD is required"))
	}
	if len(interfaces.NewTLDSet(c.AddressTLDs...)) == 0 {
		errs = append(errs, errors.New("at least one supported hidden service TLD is required"))
	}

	return errors.Join(errs...)
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q must be an absolute URL", raw)
	}
	return nil
}
