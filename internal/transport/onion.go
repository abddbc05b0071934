package transport

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionSuffix is the suffix of every onion host.
	OnionSuffix = ".onion"

	// onionV3Version is the trailing version byte of a v3 address.
	onionV3Version = 0x03
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is prepended to the key when computing a v3 checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (with or without a port) is a .onion name.
func IsOnionHost(host string) bool {
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum and version byte.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey(32) || checksum(2) || version(1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}

	expected := v3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// v3Checksum returns the first two bytes of SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	sum := sha3.Sum256(data)
	return sum[:2]
}

// CheckTarget rejects page URLs the client cannot reach. Clearnet URLs
// always pass. Onion URLs must carry a valid v3 address and need a proxy.
func CheckTarget(u *url.URL, proxied bool) error {
	host := strings.ToLower(u.Hostname())
	if !IsOnionHost(host) {
		return nil
	}

	if !IsValidV3Address(host) {
		if onionV2Pattern.MatchString(host) {
			return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, host)
		}
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
	if !proxied {
		return fmt.Errorf("%w: %s", ErrOnionRequiresProxy, host)
	}
	return nil
}
