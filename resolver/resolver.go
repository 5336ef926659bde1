// Package resolver resolves Anyone domains to hidden service addresses through
// the on-chain registry, one at a time or in paced batches.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ruteri/anyone-dns-service/cryptoutils"
	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/metrics"
)

// DefaultCallTimeout bounds a single registry lookup.
const DefaultCallTimeout = 10 * time.Second

// Config configures a Resolver.
type Config struct {
	// DomainTLDs are the TLDs of domains the resolver accepts.
	DomainTLDs interfaces.TLDSet

	// AddressTLDs are the TLDs accepted on returned hidden service addresses.
	// Defaults to DomainTLDs.
	AddressTLDs interfaces.TLDSet

	// CallTimeout bounds each registry call. Defaults to DefaultCallTimeout.
	CallTimeout time.Duration
}

// Resolver implements interfaces.DomainResolver on top of a RegistryReader.
type Resolver struct {
	registry interfaces.RegistryReader
	cfg      Config
	log      *slog.Logger
}

// NewResolver creates a resolver reading hidden service records from registry.
func NewResolver(registry interfaces.RegistryReader, cfg Config, log *slog.Logger) *Resolver {
	if len(cfg.DomainTLDs) == 0 {
		cfg.DomainTLDs = interfaces.NewTLDSet("anyone")
	}
	if len(cfg.AddressTLDs) == 0 {
		cfg.AddressTLDs = cfg.DomainTLDs
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Resolver{
		registry: registry,
		cfg:      cfg,
		log:      log,
	}
}

// Resolve looks up the hidden service address of domain.
// Every failure is reported through the returned result.
func (r *Resolver) Resolve(ctx context.Context, domain string) interfaces.ResolutionResult {
	res := r.resolve(ctx, domain)
	if res.OK() {
		metrics.RecordResolution("success")
	} else {
		metrics.RecordResolution(interfaces.KindName(res.Err.Kind))
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, domain string) interfaces.ResolutionResult {
	tld := interfaces.TLD(domain)
	if domain == "" || !r.cfg.DomainTLDs.Contains(tld) {
		r.log.Warn("TLD is not supported", "tld", tld, "domain", domain)
		return r.fail(interfaces.ErrUnsupportedDomainTLD, domain, "", nil)
	}

	tokenID := cryptoutils.TokenID(domain)

	values, err := r.getMany(ctx, tokenID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.log.Error("Registry call timed out", "domain", domain, "timeout", r.cfg.CallTimeout)
		} else {
			r.log.Error("Error fetching values from registry", "domain", domain, "err", err)
		}
		return r.fail(interfaces.ErrRegistry, domain, "", err)
	}

	address := strings.TrimSpace(values[0])
	if address == "" {
		r.log.Warn("No hidden service record found", "domain", domain)
		return r.fail(interfaces.ErrRecordNotFound, domain, "", nil)
	}

	if addressTLD := interfaces.TLD(address); !r.cfg.AddressTLDs.Contains(addressTLD) {
		r.log.Warn("Hidden service TLD is not supported", "tld", addressTLD, "address", address, "domain", domain)
		return r.fail(interfaces.ErrUnsupportedHiddenServiceTLD, domain, address, nil)
	}

	if !cryptoutils.IsValidHiddenServiceAddress(address) {
		r.log.Warn("Invalid hidden service address checksum", "address", address, "domain", domain)
		return r.fail(interfaces.ErrChecksumInvalid, domain, address, nil)
	}

	r.log.Debug("Resolved domain", "domain", domain, "address", address)
	return interfaces.Success(domain, address)
}

// getMany performs the registry call under the per-call timeout and recovers
// from panics in the reader.
func (r *Resolver) getMany(ctx context.Context, tokenID *big.Int) (values []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			values, err = nil, fmt.Errorf("registry reader panicked: %v", p)
		}
	}()

	values, err = r.registry.GetMany(ctx, []string{interfaces.HiddenServiceAddressKey}, tokenID)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("registry returned %d values for token %v", len(values), tokenID)
	}
	return values, nil
}

func (r *Resolver) fail(kind error, domain, address string, cause error) interfaces.ResolutionResult {
	return interfaces.Failure(interfaces.NewResolutionError(kind, domain, address, cause))
}
