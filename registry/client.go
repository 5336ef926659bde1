// Package registry provides read access to the on-chain name registry through
// the UNS ProxyReader contract.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

// ProxyReaderABI is the subset of the UNS ProxyReader ABI used by this client.
const ProxyReaderABI = `[
	{
		"inputs": [
			{"internalType": "string[]", "name": "keys", "type": "string[]"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "getMany",
		"outputs": [
			{"internalType": "string[]", "name": "values", "type": "string[]"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const getManyMethod = "getMany"

// ErrUnexpectedValueCount is returned when the contract returns a different
// number of values than keys were requested.
var ErrUnexpectedValueCount = errors.New("registry returned unexpected number of values")

// ProxyReaderClient implements the interfaces.RegistryReader interface against
// a ProxyReader contract deployed on an Ethereum-compatible chain.
type ProxyReaderClient struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewProxyReaderClient creates a read-only client for the ProxyReader at address.
// Any bind.ContractCaller works, typically an *ethclient.Client.
func NewProxyReaderClient(caller bind.ContractCaller, address common.Address) (*ProxyReaderClient, error) {
	parsed, err := abi.JSON(strings.NewReader(ProxyReaderABI))
	if err != nil {
		return nil, fmt.Errorf("could not parse ProxyReader ABI: %w", err)
	}

	return &ProxyReaderClient{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		address:  address,
	}, nil
}

// Address returns the address of the ProxyReader contract.
func (c *ProxyReaderClient) Address() interfaces.ContractAddress {
	return interfaces.ContractAddress(c.address)
}

// GetMany calls getMany(keys, tokenId) and returns one value per key.
func (c *ProxyReaderClient) GetMany(ctx context.Context, keys []string, tokenID *big.Int) ([]string, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.contract.Call(opts, &out, getManyMethod, keys, tokenID); err != nil {
		return nil, fmt.Errorf("getMany call failed: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d outputs", ErrUnexpectedValueCount, len(out))
	}

	values := *abi.ConvertType(out[0], new([]string)).(*[]string)
	if len(values) != len(keys) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedValueCount, len(values), len(keys))
	}

	return values, nil
}
