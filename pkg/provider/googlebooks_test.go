package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shelfmark/bookmeta/internal/testutil"
)

func TestGoogleBooks_Search(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/volumes", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.GoogleBooksVolume("The Dispossessed", "Ursula K. Le Guin", "9780061054884"),
	})

	client := NewGoogleBooks(Config{BaseURL: mock.URL()})

	result, err := client.Search(context.Background(), "the dispossessed", SearchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if result.Provider != "googlebooks" {
		t.Errorf("Provider = %q, want %q", result.Provider, "googlebooks")
	}
	if len(result.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(result.Items))
	}

	item := result.Items[0]
	if item.Title != "The Dispossessed" {
		t.Errorf("Title = %q", item.Title)
	}
	if len(item.Authors) != 1 || item.Authors[0] != "Ursula K. Le Guin" {
		t.Errorf("Authors = %v", item.Authors)
	}
	if item.ISBN != "9780061054884" {
		t.Errorf("ISBN = %q", item.ISBN)
	}
	if item.SourceProvider != "googlebooks" {
		t.Errorf("SourceProvider = %q", item.SourceProvider)
	}
	if item.CoverURL != "http://books.example/cover.jpg" {
		t.Errorf("CoverURL = %q", item.CoverURL)
	}
}

// A search query must be sent verbatim: the client never wraps free-text
// queries with an identifier-scheme prefix, and a query that already
// carries one is not re-wrapped. Double-prefixing was a real, reported
// defect in an earlier metadata pipeline.
func TestGoogleBooks_Search_NoQueryRewrapping(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/volumes", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.GoogleBooksVolume("1984", "George Orwell", "9780452284234"),
	})

	client := NewGoogleBooks(Config{BaseURL: mock.URL()})

	if _, err := client.Search(context.Background(), "isbn:9780452284234", SearchOptions{}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := mock.GetLastQuery(); got != "isbn:9780452284234" {
		t.Errorf("upstream query = %q, want the prefixed query untouched", got)
	}
}

func TestGoogleBooks_LookupISBN_AddsPrefixOnce(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/volumes", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.GoogleBooksVolume("1984", "George Orwell", "9780452284234"),
	})

	client := NewGoogleBooks(Config{BaseURL: mock.URL()})

	result, err := client.LookupISBN(context.Background(), "9780452284234")
	if err != nil {
		t.Fatalf("LookupISBN() error = %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(result.Items))
	}

	if got := mock.GetLastQuery(); got != "isbn:9780452284234" {
		t.Errorf("upstream query = %q, want %q", got, "isbn:9780452284234")
	}
}

func TestGoogleBooks_EmptyResult(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/volumes", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"totalItems": 0}`,
	})

	client := NewGoogleBooks(Config{BaseURL: mock.URL()})

	_, err := client.Search(context.Background(), "zyxw qvut", SearchOptions{})
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Search() error = %v, want ErrNoResults", err)
	}
}

func TestGoogleBooks_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockResponse
		wantClass ErrorClass
	}{
		{
			name:      "server error",
			resp:      testutil.MockResponse{StatusCode: http.StatusBadGateway, Body: `{"error":"bad gateway"}`},
			wantClass: ErrorClassServer,
		},
		{
			name:      "client error",
			resp:      testutil.MockResponse{StatusCode: http.StatusForbidden, Body: `{"error":"quota"}`},
			wantClass: ErrorClassClient,
		},
		{
			name:      "malformed payload",
			resp:      testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"items": [`},
			wantClass: ErrorClassPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/volumes", tt.resp)

			client := NewGoogleBooks(Config{BaseURL: mock.URL()})

			_, err := client.Search(context.Background(), "dune", SearchOptions{})
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("Search() error = %v, want *UpstreamError", err)
			}
			if upstream.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", upstream.Class, tt.wantClass)
			}
			if upstream.Provider != "googlebooks" {
				t.Errorf("Provider = %q, want %q", upstream.Provider, "googlebooks")
			}
		})
	}
}

func TestGoogleBooks_MaxResultsClamped(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotMax string
	mock.SetHandler("/volumes", func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("maxResults")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testutil.GoogleBooksVolume("x", "y", "9780452284234")))
	})

	client := NewGoogleBooks(Config{BaseURL: mock.URL()})

	if _, err := client.Search(context.Background(), "dune", SearchOptions{MaxResults: 500}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotMax != "40" {
		t.Errorf("maxResults = %q, want clamped to 40", gotMax)
	}
}
