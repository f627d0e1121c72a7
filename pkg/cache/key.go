package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Request kinds partitioning the cache keyspace.
const (
	KindSearch = "search"
	KindISBN   = "isbn"
)

// Key identifies a cached resolution result. All fields must be
// normalized before the key is built; Key itself performs no
// normalization beyond canonical ordering.
type Key struct {
	// Kind is the request kind ("search" or "isbn").
	Kind string

	// Query is the normalized query text or normalized ISBN.
	Query string

	// Params are additional request parameters affecting the result
	// (e.g. maxResults, orderBy, langRestrict).
	Params map[string]string

	// Provider is the forced-provider override, empty for fallback mode.
	// Included so forced results never collide with fallback results.
	Provider string
}

// String generates a deterministic cache key string.
// Format: bookmeta:<kind>:<sha256-hex-prefix>
//
// The hash covers a canonical representation of the key: kind, query,
// sorted params, and the provider partition.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Kind)
	b.WriteByte('\n')
	b.WriteString(k.Query)
	b.WriteByte('\n')

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Fprintf(&b, "%s=%s\n", name, k.Params[name])
		}
	}

	b.WriteString("provider=")
	b.WriteString(k.Provider)

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("bookmeta:%s:%s", k.Kind, hex.EncodeToString(sum[:])[:24])
}

// NormalizeQuery canonicalizes free-text query input: trims surrounding
// whitespace, collapses internal runs of whitespace, and lowercases.
//
// This is the single normalization point for query text. It never adds or
// strips identifier-scheme prefixes: a query already carrying a marker
// like "isbn:" passes through untouched, and no downstream layer may
// re-wrap it.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
