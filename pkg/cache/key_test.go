package cache

import (
	"strings"
	"testing"
)

func TestKey_Determinism(t *testing.T) {
	key := Key{
		Kind:  KindSearch,
		Query: "the name of the wind",
		Params: map[string]string{
			"maxResults": "10",
			"orderBy":    "relevance",
			"lang":       "en",
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("key not deterministic: %q vs %q", got, first)
		}
	}

	if !strings.HasPrefix(first, "bookmeta:search:") {
		t.Errorf("key %q missing kind prefix", first)
	}
}

func TestKey_NormalizedInputsCollide(t *testing.T) {
	// Semantically identical requests must hash to the same key once
	// their inputs are normalized.
	a := Key{Kind: KindISBN, Query: "9780452284234"}
	b := Key{Kind: KindISBN, Query: "9780452284234"}

	if a.String() != b.String() {
		t.Errorf("identical keys hashed differently: %q vs %q", a.String(), b.String())
	}
}

func TestKey_ProviderPartition(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		same bool
	}{
		{
			name: "forced provider differs from fallback",
			a:    Key{Kind: KindSearch, Query: "dune"},
			b:    Key{Kind: KindSearch, Query: "dune", Provider: "googlebooks"},
			same: false,
		},
		{
			name: "different forced providers differ",
			a:    Key{Kind: KindSearch, Query: "dune", Provider: "googlebooks"},
			b:    Key{Kind: KindSearch, Query: "dune", Provider: "openlibrary"},
			same: false,
		},
		{
			name: "different kinds differ",
			a:    Key{Kind: KindSearch, Query: "9780452284234"},
			b:    Key{Kind: KindISBN, Query: "9780452284234"},
			same: false,
		},
		{
			name: "different params differ",
			a:    Key{Kind: KindSearch, Query: "dune", Params: map[string]string{"maxResults": "10"}},
			b:    Key{Kind: KindSearch, Query: "dune", Params: map[string]string{"maxResults": "20"}},
			same: false,
		},
		{
			name: "nil and empty params are equivalent",
			a:    Key{Kind: KindSearch, Query: "dune"},
			b:    Key{Kind: KindSearch, Query: "dune", Params: map[string]string{}},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.String() == tt.b.String()
			if got != tt.same {
				t.Errorf("key equality = %v, want %v (%q vs %q)", got, tt.same, tt.a.String(), tt.b.String())
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims whitespace", in: "  dune  ", want: "dune"},
		{name: "collapses inner whitespace", in: "the  name\tof the wind", want: "the name of the wind"},
		{name: "lowercases", in: "The Left Hand of Darkness", want: "the left hand of darkness"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuery(tt.in); got != tt.want {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// A query already carrying an identifier-scheme prefix must pass through
// normalization untouched. Re-wrapping at a second layer produced a
// malformed query in the past, so this is pinned down explicitly.
func TestNormalizeQuery_ExistingPrefixNotRewrapped(t *testing.T) {
	got := NormalizeQuery("isbn:9780452284234")
	if got != "isbn:9780452284234" {
		t.Errorf("NormalizeQuery rewrote prefixed query: %q", got)
	}
}
