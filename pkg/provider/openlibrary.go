package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

const (
	openLibraryDefaultBaseURL = "https://openlibrary.org"
	openLibraryCoverURL       = "https://covers.openlibrary.org/b/id/%d-M.jpg"
)

// OpenLibrary resolves metadata from the Open Library search API.
type OpenLibrary struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenLibrary creates an Open Library client.
func NewOpenLibrary(cfg Config) *OpenLibrary {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openLibraryDefaultBaseURL
	}
	return &OpenLibrary{
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
		limiter:    cfg.politeness(),
	}
}

// Name implements Client.
func (c *OpenLibrary) Name() string { return "openlibrary" }

type openLibraryResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_i"`
	Language         []string `json:"language"`
}

// Search implements Client. The normalized query is passed through
// verbatim; no scheme prefix is ever added here.
func (c *OpenLibrary) Search(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	return c.search(ctx, "search", query, opts)
}

// LookupISBN implements Client. The search API's isbn: field query gives
// fully hydrated documents (author names included), unlike the raw
// /isbn/ edition endpoint which only carries author references.
func (c *OpenLibrary) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	return c.search(ctx, "isbn", "isbn:"+isbn, SearchOptions{MaxResults: 1})
}

func (c *OpenLibrary) search(ctx context.Context, operation, query string, opts SearchOptions) (*Result, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = 10
	}
	if limit > 40 {
		limit = 40
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", "title,author_name,isbn,publisher,first_publish_year,cover_i,language")
	if opts.OrderBy == "newest" {
		params.Set("sort", "new")
	}
	if opts.LangRestrict != "" {
		params.Set("lang", opts.LangRestrict)
	}

	var decoded openLibraryResponse
	reqURL := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())
	if err := getJSON(ctx, c.httpClient, c.limiter, c.Name(), operation, reqURL, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Docs) == 0 {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrNoResults)
	}

	items := make([]BookRecord, 0, len(decoded.Docs))
	for _, doc := range decoded.Docs {
		record := BookRecord{
			Title:          doc.Title,
			Authors:        doc.AuthorName,
			SourceProvider: c.Name(),
		}
		if len(doc.Publisher) > 0 {
			record.Publisher = doc.Publisher[0]
		}
		if doc.FirstPublishYear > 0 {
			record.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
		}
		// Prefer an ISBN-13 when the edition list has one.
		for _, id := range doc.ISBN {
			if len(id) == 13 {
				record.ISBN = id
				break
			}
		}
		if record.ISBN == "" && len(doc.ISBN) > 0 {
			record.ISBN = doc.ISBN[0]
		}
		if doc.CoverID > 0 {
			record.CoverURL = fmt.Sprintf(openLibraryCoverURL, doc.CoverID)
		}
		if len(doc.Language) > 0 {
			record.Language = doc.Language[0]
		}
		items = append(items, record)
	}

	return &Result{Provider: c.Name(), Items: items}, nil
}
