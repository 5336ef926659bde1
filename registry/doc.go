// Package registry provides read access to the on-chain name registry that maps
// Anyone domains to hidden service addresses.
//
// The registry stores records per token id, where the token id of a domain is
// its namehash (see cryptoutils.TokenID). Records are read through the UNS
// ProxyReader contract:
//
//	function getMany(string[] keys, uint256 tokenId) view returns (string[] values)
//
// A domain's hidden service address lives under the key
// interfaces.HiddenServiceAddressKey. Missing records come back as empty strings.
//
// # Implementations
//
//   - ProxyReaderClient: go-ethereum bound contract client, read-only, no transaction options needed
//   - MockRegistryClient: in-memory records keyed by token id, with error and latency injection
//   - MockRegistry: testify mock for expectation-driven tests
//
// # Usage Example
//
//	ethClient, err := ethclient.Dial(rpcAddr)
//	if err != nil {
//	    log.Fatalf("Failed to dial RPC: %v", err)
//	}
//
//	reader, err := registry.NewProxyReaderClient(ethClient, common.HexToAddress(proxyReaderAddr))
//	if err != nil {
//	    log.Fatalf("Failed to create registry client: %v", err)
//	}
//
//	values, err := reader.GetMany(ctx, []string{interfaces.HiddenServiceAddressKey}, cryptoutils.TokenID("example.anyone"))
package registry
