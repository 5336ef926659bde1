package registry

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the RegistryReader interface
type MockRegistry struct {
	mock.Mock
}

// GetMany mocks the GetMany method
func (m *MockRegistry) GetMany(ctx context.Context, keys []string, tokenID *big.Int) ([]string, error) {
	args := m.Called(ctx, keys, tokenID)
	values, _ := args.Get(0).([]string)
	return values, args.Error(1)
}
