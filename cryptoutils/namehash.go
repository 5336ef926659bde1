package cryptoutils

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameHash computes the registry node hash of a domain:
//
//	node = 0x00 * 32
//	for each label from the TLD down to the most specific one:
//	    node = keccak256(node || keccak256(label))
//
// Labels are lower-cased before hashing. The empty name hashes to the zero node.
func NameHash(domain string) common.Hash {
	var node common.Hash
	if domain == "" {
		return node
	}

	labels := strings.Split(strings.ToLower(domain), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node[:], labelHash)
	}
	return node
}

// TokenID returns the registry token id of a domain: its NameHash read as a
// big-endian unsigned integer.
func TokenID(domain string) *big.Int {
	return NameHash(domain).Big()
}
