// Package cryptoutils implements the hashing and checksum primitives of the
// Anyone name system.
//
// # Hidden Service Addresses
//
// An address has the form "<label>.<tld>" where the 56-character label is the
// base32 encoding (case-insensitive) of 35 bytes:
//
//	[public key (32 bytes)][checksum (2 bytes)][version (1 byte)]
//
// The checksum is the first two bytes of
//
//	SHA3-256(".<tld> checksum" || public key || version)
//
// so the same key yields different labels under different TLDs. Checksums are
// compared byte for byte.
//
// # Name Hashing
//
// NameHash derives the registry node of a domain by folding keccak256 label
// hashes from the TLD down, starting from 32 zero bytes. TokenID returns that
// node as the uint256 token id used for registry lookups.
package cryptoutils
