package interfaces

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ContractAddress represents an Ethereum contract address.
type ContractAddress [20]byte

// NewContractAddressFromBytes creates a contract address from a 20-byte slice.
func NewContractAddressFromBytes(addr []byte) (ContractAddress, error) {
	if len(addr) != 20 {
		return ContractAddress{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res ContractAddress
	copy(res[:], addr)
	return res, nil
}

// NewContractAddressFromHex parses a 40-char hex string, with or without the 0x prefix.
func NewContractAddressFromHex(addr string) (ContractAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return ContractAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContractAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewContractAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the contract address.
func (addr ContractAddress) String() string {
	return hex.EncodeToString(addr[:])
}

// TLD returns the substring after the final dot of a name.
// A name without dots is its own TLD.
func TLD(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Label returns the second-to-last dot-separated segment of a name, or an
// empty string when the name has a single segment.
func Label(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// TLDSet is an allow-list of top-level domains.
type TLDSet map[string]struct{}

// NewTLDSet builds a set from the given TLDs. Leading dots and surrounding
// whitespace are ignored, empty entries are dropped.
func NewTLDSet(tlds ...string) TLDSet {
	set := make(TLDSet, len(tlds))
	for _, tld := range tlds {
		tld = strings.TrimPrefix(strings.TrimSpace(tld), ".")
		if tld == "" {
			continue
		}
		set[tld] = struct{}{}
	}
	return set
}

// Contains reports whether tld is in the set.
func (s TLDSet) Contains(tld string) bool {
	_, ok := s[tld]
	return ok
}

// Resolution failure kinds. A *ResolutionError unwraps to exactly one of these.
var (
	ErrUnsupportedDomainTLD        = errors.New("unsupported domain tld")
	ErrUnsupportedHiddenServiceTLD = errors.New("unsupported hidden service tld")
	ErrRecordNotFound              = errors.New("hidden service record not found")
	ErrChecksumInvalid             = errors.New("hidden service address checksum invalid")
	ErrRegistry                    = errors.New("registry error")
)

var errorKindNames = map[error]string{
	ErrUnsupportedDomainTLD:        "UnsupportedDomainTld",
	ErrUnsupportedHiddenServiceTLD: "UnsupportedHiddenServiceTld",
	ErrRecordNotFound:              "RecordNotFound",
	ErrChecksumInvalid:             "ChecksumInvalid",
	ErrRegistry:                    "RegistryError",
}

// KindName returns the stable name of a failure kind, as exposed over the API.
func KindName(kind error) string {
	if name, ok := errorKindNames[kind]; ok {
		return name
	}
	return "Unknown"
}

// ResolutionError describes why a domain could not be resolved.
type ResolutionError struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	Domain string

	// Address is the value returned by the registry, when there was one.
	Address string

	// Err is the underlying cause for registry failures.
	Err error
}

// NewResolutionError creates a resolution error of the given kind.
func NewResolutionError(kind error, domain, address string, cause error) *ResolutionError {
	return &ResolutionError{Kind: kind, Domain: domain, Address: address, Err: cause}
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case ErrUnsupportedDomainTLD:
		return fmt.Sprintf("TLD .%s is not supported for name %s", TLD(e.Domain), e.Domain)
	case ErrUnsupportedHiddenServiceTLD:
		return fmt.Sprintf("hidden service TLD .%s is not supported for hidden service address: %s of domain: %s",
			TLD(e.Address), e.Address, e.Domain)
	case ErrRecordNotFound:
		return fmt.Sprintf("no hidden service record found for domain: %s", e.Domain)
	case ErrChecksumInvalid:
		return fmt.Sprintf("invalid hidden service address checksum for address: %s of domain: %s", e.Address, e.Domain)
	}
	if e.Err != nil {
		return fmt.Sprintf("error fetching values from registry for domain %s: %v", e.Domain, e.Err)
	}
	return fmt.Sprintf("%v for domain %s", e.Kind, e.Domain)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ResolutionResult is the outcome of resolving a single domain.
// Exactly one of Address and Err is set.
type ResolutionResult struct {
	Domain  string
	Address string
	Err     *ResolutionError
}

// Success creates a successful resolution result.
func Success(domain, address string) ResolutionResult {
	return ResolutionResult{Domain: domain, Address: address}
}

// Failure creates a failed resolution result.
func Failure(err *ResolutionError) ResolutionResult {
	return ResolutionResult{Domain: err.Domain, Err: err}
}

// OK reports whether the result is a success.
func (r ResolutionResult) OK() bool {
	return r.Err == nil
}

// Kind returns the failure kind, or nil for a success.
func (r ResolutionResult) Kind() error {
	if r.Err == nil {
		return nil
	}
	return r.Err.Kind
}

type resolutionErrorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type resolutionResultJSON struct {
	Result               string               `json:"result"`
	Domain               string               `json:"domain"`
	HiddenServiceAddress string               `json:"hiddenServiceAddress,omitempty"`
	Error                *resolutionErrorJSON `json:"error,omitempty"`
}

// MarshalJSON encodes the result as {"result":"success",...} or {"result":"error",...}.
func (r ResolutionResult) MarshalJSON() ([]byte, error) {
	out := resolutionResultJSON{Domain: r.Domain}
	if r.OK() {
		out.Result = "success"
		out.HiddenServiceAddress = r.Address
	} else {
		out.Result = "error"
		out.Error = &resolutionErrorJSON{
			Kind:    KindName(r.Err.Kind),
			Message: r.Err.Error(),
		}
	}
	return json.Marshal(out)
}

// DomainEntry is a single element of the inventory service response.
type DomainEntry struct {
	Name string `json:"name"`
}
