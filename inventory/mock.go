package inventory

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

// MockFetcher mocks the InventoryFetcher interface
type MockFetcher struct {
	mock.Mock
}

// FetchDomains mocks the FetchDomains method
func (m *MockFetcher) FetchDomains(ctx context.Context) ([]interfaces.DomainEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]interfaces.DomainEntry)
	return entries, args.Error(1)
}
