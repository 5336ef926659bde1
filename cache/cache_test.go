package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/inventory"
	"github.com/ruteri/anyone-dns-service/registry"
	"github.com/ruteri/anyone-dns-service/resolver"
)

const validAnyoneAddress = "6zctvi63m7xxbd34hxn2uvnaw5ao7sec4l3k4bflzeqtve5jleh6ddyd.anyone"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeInventory serves a configurable inventory and tracks overlapping calls.
type fakeInventory struct {
	mu          sync.Mutex
	entries     []interfaces.DomainEntry
	err         error
	block       chan struct{}
	calls       int
	inFlight    int
	maxInFlight int
}

func (f *fakeInventory) set(entries []interfaces.DomainEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries, f.err = entries, err
}

func (f *fakeInventory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeInventory) FetchDomains(ctx context.Context) ([]interfaces.DomainEntry, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.block
	entries, err := f.entries, f.err
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return entries, err
}

func entries(names ...string) []interfaces.DomainEntry {
	out := make([]interfaces.DomainEntry, len(names))
	for i, name := range names {
		out[i] = interfaces.DomainEntry{Name: name}
	}
	return out
}

func newTestCache(inv interfaces.InventoryFetcher, reg interfaces.RegistryReader, clk clock.Clock) *DomainCache {
	r := resolver.NewResolver(reg, resolver.Config{}, testLogger())
	bulk := resolver.NewBulkResolver(r, nil, testLogger())
	return NewDomainCache(inv, bulk, Config{TTL: time.Minute, BatchSize: 10, BatchDelay: 0}, clk, testLogger())
}

func TestUninitializedReads(t *testing.T) {
	c := newTestCache(&fakeInventory{}, registry.NewMockRegistryClient(), nil)

	assert.NotNil(t, c.ListDomains())
	assert.Empty(t, c.ListDomains())
	assert.Equal(t, "", c.HostsText())
	assert.Empty(t, c.Mappings())

	_, ok := c.Domain("a.anyone")
	assert.False(t, ok)

	status := c.Status()
	assert.False(t, status.Populated)
	assert.True(t, status.LastAttempt.IsZero())
}

func TestRefresh_ResolvesInventory(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	reg.SetRecord("b.anyone", interfaces.HiddenServiceAddressKey, "")

	inv := &fakeInventory{entries: entries("a.anyone", "b.anyone")}
	c := newTestCache(inv, reg, nil)
	c.Refresh(context.Background())

	a, ok := c.Domain("a.anyone")
	require.True(t, ok)
	assert.True(t, a.OK())
	assert.Equal(t, validAnyoneAddress, a.Address)

	b, ok := c.Domain("b.anyone")
	require.True(t, ok)
	assert.False(t, b.OK())
	assert.ErrorIs(t, b.Err, interfaces.ErrRecordNotFound)

	_, ok = c.Domain("c.anyone")
	assert.False(t, ok, "a cache miss differs from a failed resolution")

	assert.Equal(t, "a.anyone "+validAnyoneAddress, c.HostsText())
	assert.Equal(t, []string{"a.anyone", "b.anyone"}, c.ListDomains())

	mappings := c.Mappings()
	require.Len(t, mappings, 2)
	assert.Equal(t, "a.anyone", mappings[0].Domain)
	assert.Equal(t, "b.anyone", mappings[1].Domain)

	status := c.Status()
	assert.True(t, status.Populated)
	assert.Equal(t, 2, status.Domains)
	assert.Equal(t, 1, status.Resolved)
	assert.Empty(t, status.LastError)
}

func TestRefresh_HostsTextKeepsInventoryOrder(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("z.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	reg.SetRecord("m.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)

	c := newTestCache(&fakeInventory{entries: entries("z.anyone", "x.eth", "m.anyone", "a.anyone")}, reg, nil)
	c.Refresh(context.Background())

	assert.Equal(t,
		"z.anyone "+validAnyoneAddress+"\n"+
			"m.anyone "+validAnyoneAddress+"\n"+
			"a.anyone "+validAnyoneAddress,
		c.HostsText())
}

func TestRefresh_DropsBlankNames(t *testing.T) {
	c := newTestCache(&fakeInventory{entries: entries("", "a.anyone", "   ")}, registry.NewMockRegistryClient(), nil)
	c.Refresh(context.Background())

	assert.Equal(t, []string{"a.anyone"}, c.ListDomains())
}

func TestRefresh_EmptyInventory(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	inv := &fakeInventory{entries: entries("a.anyone")}
	c := newTestCache(inv, reg, nil)

	c.Refresh(context.Background())
	require.NotEmpty(t, c.HostsText())

	inv.set([]interfaces.DomainEntry{}, nil)
	c.Refresh(context.Background())

	assert.NotNil(t, c.ListDomains())
	assert.Empty(t, c.ListDomains())
	assert.Equal(t, "", c.HostsText())
	assert.Empty(t, c.Mappings())
	_, ok := c.Domain("a.anyone")
	assert.False(t, ok)

	status := c.Status()
	assert.True(t, status.Populated)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, reg.Calls(), "empty inventory must not hit the registry")
}

func TestRefresh_StaleOnInventoryFailure(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)

	inv := new(inventory.MockFetcher)
	inv.On("FetchDomains", mock.Anything).Return(entries("a.anyone", "b.anyone"), nil).Once()
	inv.On("FetchDomains", mock.Anything).Return(nil, errors.New("anyone API error, status: 502")).Once()

	c := newTestCache(inv, reg, nil)

	c.Refresh(context.Background())
	domains := c.ListDomains()
	hosts := c.HostsText()
	mappings := c.Mappings()

	c.Refresh(context.Background())
	assert.Equal(t, domains, c.ListDomains())
	assert.Equal(t, hosts, c.HostsText())
	assert.Equal(t, mappings, c.Mappings())

	status := c.Status()
	assert.True(t, status.Populated)
	assert.Contains(t, status.LastError, "502")
	inv.AssertExpectations(t)
}

func TestRefresh_FailureBeforeFirstSuccess(t *testing.T) {
	inv := &fakeInventory{err: errors.New("connection refused")}
	c := newTestCache(inv, registry.NewMockRegistryClient(), nil)

	c.Refresh(context.Background())

	assert.Empty(t, c.ListDomains())
	assert.Equal(t, "", c.HostsText())
	assert.False(t, c.Status().Populated)
	assert.Contains(t, c.Status().LastError, "connection refused")
}

func TestRefresh_Idempotent(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	reg.SetError("c.anyone", errors.New("rate limited"))

	c := newTestCache(&fakeInventory{entries: entries("a.anyone", "b.anyone", "c.anyone")}, reg, nil)

	c.Refresh(context.Background())
	hosts, mappings := c.HostsText(), c.Mappings()

	c.Refresh(context.Background())
	assert.Equal(t, hosts, c.HostsText())
	assert.Equal(t, mappings, c.Mappings())
}

type shortBulkResolver struct{}

func (shortBulkResolver) ResolveAll(ctx context.Context, domains []string, batchSize int, delay time.Duration) []interfaces.ResolutionResult {
	return nil
}

type panickingBulkResolver struct{}

func (panickingBulkResolver) ResolveAll(ctx context.Context, domains []string, batchSize int, delay time.Duration) []interfaces.ResolutionResult {
	panic("bulk resolver exploded")
}

func TestRefresh_BulkResolverFailuresKeepSnapshot(t *testing.T) {
	for name, bulk := range map[string]interfaces.BulkResolver{
		"short":  shortBulkResolver{},
		"panics": panickingBulkResolver{},
	} {
		t.Run(name, func(t *testing.T) {
			reg := registry.NewMockRegistryClient()
			reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
			inv := &fakeInventory{entries: entries("a.anyone")}
			c := newTestCache(inv, reg, nil)
			c.Refresh(context.Background())

			c.resolver = bulk
			assert.NotPanics(t, func() { c.Refresh(context.Background()) })

			assert.Equal(t, "a.anyone "+validAnyoneAddress, c.HostsText())
			assert.NotEmpty(t, c.Status().LastError)
		})
	}
}

func TestRefresh_CancelledKeepsSnapshot(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	c := newTestCache(&fakeInventory{entries: entries("a.anyone")}, reg, nil)
	c.Refresh(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Refresh(ctx)

	a, ok := c.Domain("a.anyone")
	require.True(t, ok)
	assert.True(t, a.OK())
}

func TestReadsDoNotBlockOnRefresh(t *testing.T) {
	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAnyoneAddress)
	inv := &fakeInventory{entries: entries("a.anyone")}
	c := newTestCache(inv, reg, nil)
	c.Refresh(context.Background())

	inv.mu.Lock()
	inv.block = make(chan struct{})
	inv.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.Refresh(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return inv.Calls() == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, "a.anyone "+validAnyoneAddress, c.HostsText())
	assert.Equal(t, []string{"a.anyone"}, c.ListDomains())

	close(inv.block)
	<-done
}

func TestRefresh_NeverOverlaps(t *testing.T) {
	inv := &fakeInventory{entries: entries("a.anyone", "b.anyone")}
	reg := registry.NewMockRegistryClient()
	reg.SetDelay(2 * time.Millisecond)
	c := newTestCache(inv, reg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, inv.Calls())
	assert.Equal(t, 1, inv.maxInFlight)
}

func TestStatusTimestamps(t *testing.T) {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	inv := &fakeInventory{entries: entries("a.anyone")}
	c := newTestCache(inv, registry.NewMockRegistryClient(), mockClock)

	c.Refresh(context.Background())
	first := mockClock.Now()
	status := c.Status()
	assert.Equal(t, first, status.RefreshedAt)
	assert.Equal(t, first, status.LastAttempt)

	mockClock.Add(time.Hour)
	inv.set(nil, errors.New("down"))
	c.Refresh(context.Background())

	status = c.Status()
	assert.Equal(t, first, status.RefreshedAt)
	assert.Equal(t, first.Add(time.Hour), status.LastAttempt)
	assert.Contains(t, status.LastError, "down")
}

func TestRun_SchedulesRefreshes(t *testing.T) {
	inv := &fakeInventory{entries: entries("a.anyone")}
	r := resolver.NewResolver(registry.NewMockRegistryClient(), resolver.Config{}, testLogger())
	c := NewDomainCache(inv, resolver.NewBulkResolver(r, nil, testLogger()),
		Config{TTL: 10 * time.Millisecond, BatchSize: 10}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return inv.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Status().Populated)

	// A second loop is refused while the first is running.
	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	calls := inv.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, inv.Calls(), "no refreshes after Run returned")
	assert.Equal(t, 1, inv.maxInFlight)
}

func TestRun_WaitsTTLAfterRefresh(t *testing.T) {
	mockClock := clock.NewMock()
	inv := &fakeInventory{entries: []interfaces.DomainEntry{}}
	r := resolver.NewResolver(registry.NewMockRegistryClient(), resolver.Config{}, testLogger())
	c := NewDomainCache(inv, resolver.NewBulkResolver(r, mockClock, testLogger()),
		Config{TTL: time.Minute}, mockClock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return inv.Calls() == 1 }, time.Second, time.Millisecond)

	// Give the loop time to arm its timer before moving the clock.
	time.Sleep(20 * time.Millisecond)
	mockClock.Add(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, inv.Calls())

	mockClock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return inv.Calls() == 2 }, time.Second, time.Millisecond)
}
