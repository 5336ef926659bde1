package interfaces

import (
	"context"
	"math/big"
	"time"
)

// HiddenServiceAddressKey is the registry record key holding a domain's
// hidden service address.
const HiddenServiceAddressKey = "token.ANYONE.ANYONE.ANYONE.address"

// RegistryReader reads record values from the on-chain name registry.
type RegistryReader interface {
	// GetMany returns one value per key, in key order, for the given token id.
	// Missing records are returned as empty strings.
	GetMany(ctx context.Context, keys []string, tokenID *big.Int) ([]string, error)
}

// InventoryFetcher retrieves the list of domains eligible for resolution.
type InventoryFetcher interface {
	FetchDomains(ctx context.Context) ([]DomainEntry, error)
}

// DomainResolver resolves one domain to its hidden service address.
// It never returns a Go error: every failure is a Failure result.
type DomainResolver interface {
	Resolve(ctx context.Context, domain string) ResolutionResult
}

// BulkResolver resolves many domains in paced batches.
// The returned slice has one result per input domain, in input order.
type BulkResolver interface {
	ResolveAll(ctx context.Context, domains []string, batchSize int, delay time.Duration) []ResolutionResult
}

// CacheStatus summarizes the state of the domain cache.
type CacheStatus struct {
	Populated   bool      `json:"populated"`
	RefreshedAt time.Time `json:"refreshedAt,omitempty"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Domains     int       `json:"domains"`
	Resolved    int       `json:"resolved"`
}

// DomainCache serves the last known good mapping of domains to hidden service addresses.
type DomainCache interface {
	ListDomains() []string
	HostsText() string
	Domain(name string) (ResolutionResult, bool)
	Mappings() []ResolutionResult
	Refresh(ctx context.Context)
	Status() CacheStatus
}
