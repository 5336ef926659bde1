package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

const (
	// DefaultBatchSize is the number of domains resolved concurrently.
	DefaultBatchSize = 100

	// DefaultBatchDelay is the pause between consecutive batches.
	DefaultBatchDelay = time.Second
)

// BulkResolver implements interfaces.BulkResolver by fanning a DomainResolver
// out over consecutive batches, pausing between batches to stay under the
// registry endpoint's rate limits.
type BulkResolver struct {
	resolver interfaces.DomainResolver
	clock    clock.Clock
	log      *slog.Logger
}

// NewBulkResolver creates a bulk resolver. A nil clock means the wall clock.
func NewBulkResolver(resolver interfaces.DomainResolver, clk clock.Clock, log *slog.Logger) *BulkResolver {
	if clk == nil {
		clk = clock.New()
	}
	return &BulkResolver{
		resolver: resolver,
		clock:    clk,
		log:      log,
	}
}

// ResolveAll resolves domains in batches of batchSize, waiting delay between
// batches. It returns exactly one result per domain, in input order.
// A batchSize below one selects DefaultBatchSize; a negative delay is treated as zero.
//
// Cancelling ctx skips the remaining delays; domains not yet resolved then
// fail with a registry error.
func (b *BulkResolver) ResolveAll(ctx context.Context, domains []string, batchSize int, delay time.Duration) []interfaces.ResolutionResult {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = 0
	}

	results := make([]interfaces.ResolutionResult, len(domains))

	for start := 0; start < len(domains); start += batchSize {
		end := min(start+batchSize, len(domains))

		b.log.Debug("Resolving batch", "from", start, "to", end, "total", len(domains))
		b.resolveBatch(ctx, domains[start:end], results[start:end])

		if end < len(domains) {
			b.wait(ctx, delay)
		}
	}

	return results
}

func (b *BulkResolver) resolveBatch(ctx context.Context, batch []string, out []interfaces.ResolutionResult) {
	var g errgroup.Group
	for i, domain := range batch {
		i, domain := i, domain
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					b.log.Error("Resolver panicked", "domain", domain, "panic", p)
					out[i] = interfaces.Failure(interfaces.NewResolutionError(
						interfaces.ErrRegistry, domain, "", fmt.Errorf("resolver panicked: %v", p)))
				}
			}()
			out[i] = b.resolver.Resolve(ctx, domain)
			return nil
		})
	}
	_ = g.Wait()
}

func (b *BulkResolver) wait(ctx context.Context, delay time.Duration) {
	if delay == 0 || ctx.Err() != nil {
		return
	}

	timer := b.clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
