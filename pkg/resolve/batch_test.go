package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shelfmark/bookmeta/pkg/isbn"
	"github.com/shelfmark/bookmeta/pkg/provider"
)

func TestResolveBatch_RejectsOversized(t *testing.T) {
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, &fakeClient{name: "googlebooks"})

	oversized := make([]string, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = fmt.Sprintf("raw-%d", i)
	}

	_, err := r.ResolveBatch(context.Background(), oversized, "", 0)
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("ResolveBatch() error = %v, want ErrBatchTooLarge", err)
	}
}

func TestResolveBatch_MixedValidity(t *testing.T) {
	client := &fakeClient{name: "googlebooks"}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	outcomes, err := r.ResolveBatch(context.Background(), []string{
		"978-0-452-28423-4",
		"not-an-isbn",
		"9780306406157",
	}, "", 2)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}

	// Valid inputs are keyed by their normalized form.
	got, ok := outcomes["9780452284234"]
	if !ok {
		t.Fatal("missing outcome for normalized 9780452284234")
	}
	if got.Err != nil || got.Result == nil {
		t.Errorf("outcome = %+v, want success", got)
	}

	// Invalid inputs keep their raw key and fail without an upstream call.
	bad, ok := outcomes["not-an-isbn"]
	if !ok {
		t.Fatal("missing outcome for invalid input")
	}
	if !errors.Is(bad.Err, isbn.ErrInvalidLength) && !errors.Is(bad.Err, isbn.ErrInvalidCharacter) {
		t.Errorf("invalid input error = %v, want a validation error", bad.Err)
	}

	if client.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2 (one per valid ISBN)", client.callCount())
	}
}

func TestResolveBatch_DeduplicatesAfterNormalization(t *testing.T) {
	client := &fakeClient{name: "googlebooks"}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	outcomes, err := r.ResolveBatch(context.Background(), []string{
		"9780452284234",
		"978-0-452-28423-4",
		"978 0 452 28423 4",
	}, "", 1)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1 after dedup", len(outcomes))
	}
	if client.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", client.callCount())
	}
}

func TestResolveBatch_RetriesFailedItemOnce(t *testing.T) {
	client := &fakeClient{name: "googlebooks", failFirst: errors.New("transient upstream error")}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	outcomes, err := r.ResolveBatch(context.Background(), []string{"9780452284234"}, "", 1)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	got := outcomes["9780452284234"]
	if got.Err != nil {
		t.Fatalf("outcome error = %v, want retry to succeed", got.Err)
	}
	if got.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", got.Attempts)
	}
	if client.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", client.callCount())
	}
}

func TestResolveBatch_NoResultsIsFinal(t *testing.T) {
	client := &fakeClient{name: "googlebooks", err: provider.ErrNoResults}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	outcomes, err := r.ResolveBatch(context.Background(), []string{"9780452284234"}, "", 1)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	got := outcomes["9780452284234"]
	if !errors.Is(got.Err, provider.ErrNoResults) {
		t.Errorf("outcome error = %v, want ErrNoResults", got.Err)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (empty answers are not retried)", got.Attempts)
	}
}

func TestResolveBatch_OneFailureDoesNotAbort(t *testing.T) {
	client := &scriptedClient{name: "googlebooks", lookup: func(id string) (*provider.Result, error) {
		if id == "9780306406157" {
			return nil, errors.New("persistent failure")
		}
		return &provider.Result{Provider: "googlebooks", Items: []provider.BookRecord{{ISBN: id, Title: "Found"}}}, nil
	}}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	outcomes, err := r.ResolveBatch(context.Background(), []string{
		"9780452284234",
		"9780306406157",
		"9781566199094",
	}, "", 2)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if outcomes["9780452284234"].Err != nil || outcomes["9781566199094"].Err != nil {
		t.Error("healthy items failed alongside the broken one")
	}

	failed := outcomes["9780306406157"]
	var all *AllFailedError
	if !errors.As(failed.Err, &all) {
		t.Errorf("failed item error = %v, want *AllFailedError", failed.Err)
	}
	if failed.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (retried once)", failed.Attempts)
	}
}

func TestResolveBatch_UnknownForcedProvider(t *testing.T) {
	client := &fakeClient{name: "googlebooks"}
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, client)

	_, err := r.ResolveBatch(context.Background(), []string{"9780452284234"}, "bookfinder9000", 0)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("ResolveBatch() error = %v, want ErrUnknownProvider", err)
	}
	if client.callCount() != 0 {
		t.Errorf("provider calls = %d, want 0", client.callCount())
	}
}

func TestResolveBatch_ForcedProviderAppliesToItems(t *testing.T) {
	preferred := &fakeClient{name: "googlebooks"}
	forced := &fakeClient{name: "openlibrary"}
	selector := &fakeSelector{order: []string{"googlebooks", "openlibrary"}}
	r := newTestResolver(t, selector, preferred, forced)

	outcomes, err := r.ResolveBatch(context.Background(), []string{"9780452284234"}, "openlibrary", 1)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	got := outcomes["9780452284234"]
	if got.Err != nil {
		t.Fatalf("outcome error = %v", got.Err)
	}
	if got.Result.Provider != "openlibrary" || !got.Result.Forced {
		t.Errorf("Result = %+v, want forced openlibrary", got.Result)
	}
	if preferred.callCount() != 0 {
		t.Errorf("googlebooks calls = %d, want 0", preferred.callCount())
	}
}

func TestResolveBatch_EmptyInput(t *testing.T) {
	r := newTestResolver(t, &fakeSelector{order: []string{"googlebooks"}}, &fakeClient{name: "googlebooks"})

	outcomes, err := r.ResolveBatch(context.Background(), nil, "", 0)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("len(outcomes) = %d, want 0", len(outcomes))
	}
}

// scriptedClient routes lookups through a per-ISBN function.
type scriptedClient struct {
	name   string
	lookup func(id string) (*provider.Result, error)
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Search(context.Context, string, provider.SearchOptions) (*provider.Result, error) {
	return nil, errors.New("not used")
}

func (c *scriptedClient) LookupISBN(_ context.Context, id string) (*provider.Result, error) {
	return c.lookup(id)
}
