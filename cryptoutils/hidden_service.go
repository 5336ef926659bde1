package cryptoutils

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// HiddenServiceLabelLength is the length of the base32 label of a hidden service address.
	HiddenServiceLabelLength = 56

	// HiddenServiceVersion is the address version marker written by EncodeHiddenServiceAddress.
	HiddenServiceVersion byte = 0x03

	pubkeyLen   = 32
	checksumLen = 2
	// pubkey || checksum || version
	decodedLen = pubkeyLen + checksumLen + 1
)

var (
	ErrEmptyAddress        = errors.New("empty hidden service address")
	ErrInvalidLabelLength  = errors.New("hidden service label must be 56 characters")
	ErrInvalidLabelBase32  = errors.New("hidden service label is not valid base32")
	ErrShortAddress        = errors.New("hidden service label decodes to fewer than 35 bytes")
	ErrChecksumMismatch    = errors.New("hidden service address checksum mismatch")
	ErrInvalidPubkeyLength = errors.New("hidden service public key must be 32 bytes")
)

// HiddenServiceAddress is the decoded form of "<label>.<tld>".
type HiddenServiceAddress struct {
	Pubkey   [32]byte
	Checksum [2]byte
	Version  byte
	TLD      string
}

// ParseHiddenServiceAddress decodes an address and verifies its embedded checksum.
// The label is the second-to-last dot-separated segment and the TLD the last.
func ParseHiddenServiceAddress(address string) (*HiddenServiceAddress, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}

	parts := strings.Split(address, ".")
	tld := parts[len(parts)-1]
	label := ""
	if len(parts) >= 2 {
		label = parts[len(parts)-2]
	}
	if len(label) != HiddenServiceLabelLength {
		return nil, ErrInvalidLabelLength
	}

	raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLabelBase32, err)
	}
	if len(raw) < decodedLen {
		return nil, ErrShortAddress
	}

	hs := &HiddenServiceAddress{
		Version: raw[pubkeyLen+checksumLen],
		TLD:     tld,
	}
	copy(hs.Pubkey[:], raw[:pubkeyLen])
	copy(hs.Checksum[:], raw[pubkeyLen:pubkeyLen+checksumLen])

	expected := HiddenServiceChecksum(tld, hs.Pubkey[:], hs.Version)
	if !bytes.Equal(hs.Checksum[:], expected[:]) {
		return nil, ErrChecksumMismatch
	}

	return hs, nil
}

// IsValidHiddenServiceAddress reports whether address carries a correct checksum for its TLD.
// It never panics; any decoding problem makes the address invalid.
func IsValidHiddenServiceAddress(address string) (valid bool) {
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()

	_, err := ParseHiddenServiceAddress(address)
	return err == nil
}

// HiddenServiceChecksum returns the first two bytes of
// SHA3-256(".<tld> checksum" || pubkey || version).
func HiddenServiceChecksum(tld string, pubkey []byte, version byte) [2]byte {
	h := sha3.New256()
	h.Write([]byte("." + tld + " checksum"))
	h.Write(pubkey)
	h.Write([]byte{version})
	sum := h.Sum(nil)

	var checksum [2]byte
	copy(checksum[:], sum[:checksumLen])
	return checksum
}

// EncodeHiddenServiceAddress builds "<label>.<tld>" for a 32-byte public key.
func EncodeHiddenServiceAddress(pubkey []byte, version byte, tld string) (string, error) {
	if len(pubkey) != pubkeyLen {
		return "", ErrInvalidPubkeyLength
	}

	checksum := HiddenServiceChecksum(tld, pubkey, version)

	raw := make([]byte, 0, decodedLen)
	raw = append(raw, pubkey...)
	raw = append(raw, checksum[:]...)
	raw = append(raw, version)

	label := strings.ToLower(base32.StdEncoding.EncodeToString(raw))
	return label + "." + tld, nil
}

// String re-encodes the address.
func (a *HiddenServiceAddress) String() string {
	s, _ := EncodeHiddenServiceAddress(a.Pubkey[:], a.Version, a.TLD)
	return s
}
