package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

const googleBooksDefaultBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooks resolves metadata from the Google Books Volumes API.
// No API key is required for basic searches.
type GoogleBooks struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleBooks creates a Google Books client.
func NewGoogleBooks(cfg Config) *GoogleBooks {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleBooksDefaultBaseURL
	}
	return &GoogleBooks{
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
		limiter:    cfg.politeness(),
	}
}

// Name implements Client.
func (c *GoogleBooks) Name() string { return "googlebooks" }

type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title               string                  `json:"title"`
	Authors             []string                `json:"authors"`
	Publisher           string                  `json:"publisher"`
	PublishedDate       string                  `json:"publishedDate"`
	Description         string                  `json:"description"`
	IndustryIdentifiers []googleBooksIndustryID `json:"industryIdentifiers"`
	ImageLinks          *googleBooksImageLinks  `json:"imageLinks"`
	Language            string                  `json:"language"`
}

type googleBooksIndustryID struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleBooksImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

// Search implements Client. The query arrives normalized and is passed
// through verbatim; this client never adds scheme prefixes to it.
func (c *GoogleBooks) Search(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	return c.volumes(ctx, "search", query, opts)
}

// LookupISBN implements Client. The isbn: scheme prefix is applied here,
// to a bare normalized identifier, and nowhere else.
func (c *GoogleBooks) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	return c.volumes(ctx, "isbn", "isbn:"+isbn, SearchOptions{MaxResults: 1})
}

func (c *GoogleBooks) volumes(ctx context.Context, operation, query string, opts SearchOptions) (*Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 40 {
		maxResults = 40
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if opts.OrderBy == "newest" {
		params.Set("orderBy", "newest")
	}
	if opts.LangRestrict != "" {
		params.Set("langRestrict", opts.LangRestrict)
	}

	var decoded googleBooksResponse
	reqURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())
	if err := getJSON(ctx, c.httpClient, c.limiter, c.Name(), operation, reqURL, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrNoResults)
	}

	items := make([]BookRecord, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		vi := item.VolumeInfo
		record := BookRecord{
			Title:          vi.Title,
			Authors:        vi.Authors,
			Publisher:      vi.Publisher,
			PublishedDate:  vi.PublishedDate,
			Description:    vi.Description,
			Language:       vi.Language,
			SourceProvider: c.Name(),
		}
		for _, id := range vi.IndustryIdentifiers {
			if id.Type == "ISBN_13" {
				record.ISBN = id.Identifier
			} else if id.Type == "ISBN_10" && record.ISBN == "" {
				record.ISBN = id.Identifier
			}
		}
		if vi.ImageLinks != nil {
			if vi.ImageLinks.Thumbnail != "" {
				record.CoverURL = vi.ImageLinks.Thumbnail
			} else {
				record.CoverURL = vi.ImageLinks.SmallThumbnail
			}
		}
		items = append(items, record)
	}

	return &Result{Provider: c.Name(), Items: items}, nil
}
