// Package interfaces defines core interfaces and types for the Anyone DNS
// service, separating interface definitions from implementations.
//
// # Collaborator Interfaces
//
// RegistryReader: reads record values for a token id from the on-chain name
// registry (the UNS ProxyReader getMany call).
//
// InventoryFetcher: lists the domains eligible for resolution.
//
// # Core Interfaces
//
// DomainResolver: resolves a single domain, returning a ResolutionResult and never an error.
//
// BulkResolver: resolves many domains in concurrent batches separated by a pacing delay.
//
// DomainCache: serves the last successful refresh as a consistent snapshot.
//
// # Result Types
//
// ResolutionResult is a tagged union: either a hidden service address or a
// *ResolutionError whose Kind is one of ErrUnsupportedDomainTLD,
// ErrUnsupportedHiddenServiceTLD, ErrRecordNotFound, ErrChecksumInvalid or ErrRegistry.
package interfaces
