package transfer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Strategy is the way file bytes are written to a destination.
// The set is closed: every destination resolves to exactly one of these.
type Strategy int

const (
	// Direct writes the raw body with the slot's method and headers.
	Direct Strategy = iota
	// Relay posts a multipart form to the backend's own upload route.
	Relay
	// Blob writes a block blob through the Azure storage client.
	Blob
)

func (s Strategy) String() string {
	switch s {
	case Relay:
		return "relay"
	case Blob:
		return "blob"
	default:
		return "direct"
	}
}

// Resolver selects a Strategy by inspecting a destination address.
type Resolver struct {
	relay        *regexp.Regexp
	blobSuffixes []string
}

// NewResolver compiles the relay pattern and normalizes the blob host suffixes.
func NewResolver(relayPattern string, blobSuffixes []string) (*Resolver, error) {
	re, err := regexp.Compile(relayPattern)
	if err != nil {
		return nil, fmt.Errorf("compile relay pattern: %w", err)
	}

	suffixes := make([]string, 0, len(blobSuffixes))
	for _, s := range blobSuffixes {
		suffixes = append(suffixes, strings.ToLower(strings.TrimSpace(s)))
	}

	return &Resolver{relay: re, blobSuffixes: suffixes}, nil
}

// Resolve returns the strategy for a raw destination address.
// The relay pattern is checked first since relay addresses may be relative.
func (r *Resolver) Resolve(address string) Strategy {
	if r.relay.MatchString(address) {
		return Relay
	}

	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return Direct
	}

	host := strings.ToLower(u.Hostname())
	for _, suffix := range r.blobSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return Blob
		}
	}
	return Direct
}
