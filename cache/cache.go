// Package cache keeps the last known good mapping of Anyone domains to hidden
// service addresses and refreshes it on a fixed cadence.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/metrics"
	"github.com/ruteri/anyone-dns-service/resolver"
)

// DefaultTTL is the pause between the end of one refresh and the start of the next.
const DefaultTTL = 5 * time.Minute

// ErrAlreadyRunning is returned by Run when another Run loop is active.
var ErrAlreadyRunning = errors.New("refresh loop already running")

// Config configures a DomainCache.
type Config struct {
	// TTL is the wait between refreshes.
	TTL time.Duration

	// BatchSize and BatchDelay are passed to the bulk resolver.
	BatchSize  int
	BatchDelay time.Duration
}

// DefaultConfig returns the configuration the service runs with unless overridden.
func DefaultConfig() Config {
	return Config{
		TTL:        DefaultTTL,
		BatchSize:  resolver.DefaultBatchSize,
		BatchDelay: resolver.DefaultBatchDelay,
	}
}

// snapshot is the immutable result of one successful refresh.
type snapshot struct {
	domains     []string
	results     []interfaces.ResolutionResult
	mappings    map[string]interfaces.ResolutionResult
	hosts       string
	resolved    int
	refreshedAt time.Time
}

func newSnapshot(domains []string, results []interfaces.ResolutionResult, at time.Time) *snapshot {
	if results == nil {
		results = []interfaces.ResolutionResult{}
	}
	s := &snapshot{
		domains:     domains,
		results:     results,
		mappings:    make(map[string]interfaces.ResolutionResult, len(results)),
		refreshedAt: at,
	}

	var hosts strings.Builder
	for _, res := range results {
		s.mappings[res.Domain] = res
		if !res.OK() {
			continue
		}
		s.resolved++
		hosts.WriteString(res.Domain)
		hosts.WriteByte(' ')
		hosts.WriteString(res.Address)
		hosts.WriteByte('\n')
	}
	s.hosts = strings.TrimSpace(hosts.String())

	return s
}

// DomainCache implements interfaces.DomainCache.
//
// Readers load the current snapshot atomically and never wait on a refresh.
// Refreshes are serialized; a failed refresh leaves the previous snapshot in place.
type DomainCache struct {
	inventory interfaces.InventoryFetcher
	resolver  interfaces.BulkResolver
	cfg       Config
	clock     clock.Clock
	log       *slog.Logger

	current atomic.Pointer[snapshot]

	refreshMu   sync.Mutex
	running     atomic.Bool
	lastAttempt atomic.Time
	lastError   atomic.String
}

// NewDomainCache creates an unpopulated cache. A nil clock means the wall clock.
func NewDomainCache(inventory interfaces.InventoryFetcher, bulk interfaces.BulkResolver, cfg Config, clk clock.Clock, log *slog.Logger) *DomainCache {
	if cfg.TTL < 0 {
		cfg.TTL = 0
	}
	if clk == nil {
		clk = clock.New()
	}

	return &DomainCache{
		inventory: inventory,
		resolver:  bulk,
		cfg:       cfg,
		clock:     clk,
		log:       log,
	}
}

// Run refreshes the cache, waits TTL, and repeats until ctx is done.
// The next wait starts only after the previous refresh has completed.
func (c *DomainCache) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		c.Refresh(ctx)

		timer := c.clock.Timer(c.cfg.TTL)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.log.Info("Cache refresh loop stopped", "err", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Refresh pulls the inventory, resolves every domain and swaps in the new
// snapshot. Failures are logged and leave the current snapshot untouched.
func (c *DomainCache) Refresh(ctx context.Context) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	started := c.clock.Now()
	c.lastAttempt.Store(started)

	snap, err := c.refresh(ctx)
	took := c.clock.Since(started)
	if err != nil {
		c.lastError.Store(err.Error())
		metrics.RecordRefresh("failure", took)
		if c.current.Load() != nil {
			c.log.Warn("Cache refresh failed, serving stale data", "err", err, "took", took)
		} else {
			c.log.Error("Cache refresh failed, cache is still empty", "err", err, "took", took)
		}
		return
	}

	c.current.Store(snap)
	c.lastError.Store("")
	metrics.RecordRefresh("success", took)
	metrics.SetCacheSize(len(snap.domains), snap.resolved)

	c.log.Info("Cache refreshed",
		"domains", len(snap.domains),
		"resolved", snap.resolved,
		"ttl", c.cfg.TTL,
		"took", took)
}

func (c *DomainCache) refresh(ctx context.Context) (snap *snapshot, err error) {
	defer func() {
		if p := recover(); p != nil {
			snap, err = nil, fmt.Errorf("refresh panicked: %v", p)
		}
	}()

	c.log.Debug("Fetching fresh anyone domains list")
	entries, err := c.inventory.FetchDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching anyone domains list: %w", err)
	}

	domains := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		domains = append(domains, name)
	}

	if len(domains) == 0 {
		c.log.Warn("No anyone domains found")
		return newSnapshot(domains, nil, c.clock.Now()), nil
	}

	c.log.Debug("Resolving hidden service addresses", "domains", len(domains))
	results := c.resolver.ResolveAll(ctx, domains, c.cfg.BatchSize, c.cfg.BatchDelay)
	if len(results) != len(domains) {
		return nil, fmt.Errorf("bulk resolver returned %d results for %d domains", len(results), len(domains))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh interrupted: %w", err)
	}

	return newSnapshot(domains, results, c.clock.Now()), nil
}

// ListDomains returns the domain inventory of the current snapshot, in inventory order.
func (c *DomainCache) ListDomains() []string {
	snap := c.current.Load()
	if snap == nil {
		return []string{}
	}
	return slices.Clone(snap.domains)
}

// HostsText returns "domain address" lines for every resolved domain.
func (c *DomainCache) HostsText() string {
	snap := c.current.Load()
	if snap == nil {
		return ""
	}
	return snap.hosts
}

// Domain returns the cached result for name. The boolean is false on a cache miss.
func (c *DomainCache) Domain(name string) (interfaces.ResolutionResult, bool) {
	snap := c.current.Load()
	if snap == nil {
		return interfaces.ResolutionResult{}, false
	}
	res, ok := snap.mappings[name]
	return res, ok
}

// Mappings returns every cached result in inventory order.
func (c *DomainCache) Mappings() []interfaces.ResolutionResult {
	snap := c.current.Load()
	if snap == nil {
		return []interfaces.ResolutionResult{}
	}
	return slices.Clone(snap.results)
}

// Status reports whether the cache is populated and how the last refresh went.
func (c *DomainCache) Status() interfaces.CacheStatus {
	status := interfaces.CacheStatus{
		LastAttempt: c.lastAttempt.Load(),
		LastError:   c.lastError.Load(),
	}

	if snap := c.current.Load(); snap != nil {
		status.Populated = true
		status.RefreshedAt = snap.refreshedAt
		status.Domains = len(snap.domains)
		status.Resolved = snap.resolved
	}
	return status
}
