package news

import (
	"context"
	"errors"
)

// ErrNoContent means the provider returned nothing usable at all. The
// pipeline handles it by publishing its static fallback text.
var ErrNoContent = errors.New("news: no content available")

// FetchFunc returns one page of candidates. Pages start at 1.
type FetchFunc func(ctx context.Context, page int) ([]Candidate, error)

// Select returns the first candidate whose title is not in seen, scanning
// pages in provider order and widening one page at a time up to maxPages.
// Already-scanned pages are not revisited. If every fetched candidate has
// been seen, the first candidate of page 1 is returned anyway: freshness is
// preferred but never a hard requirement to publish.
func Select(ctx context.Context, fetch FetchFunc, seen map[string]struct{}, maxPages int) (Candidate, error) {
	first, err := fetch(ctx, 1)
	if err != nil {
		return Candidate{}, errors.Join(ErrNoContent, err)
	}
	if len(first) == 0 {
		return Candidate{}, ErrNoContent
	}

	if c, ok := firstUnseen(first, seen); ok {
		return c, nil
	}

	for page := 2; page <= maxPages; page++ {
		batch, err := fetch(ctx, page)
		if err != nil {
			// Widening is best-effort; a failed later page falls back
			// to the repeat-acceptance path below.
			break
		}
		if c, ok := firstUnseen(batch, seen); ok {
			return c, nil
		}
	}

	return first[0], nil
}

func firstUnseen(batch []Candidate, seen map[string]struct{}) (Candidate, bool) {
	for _, c := range batch {
		if _, dup := seen[c.Title]; !dup {
			return c, true
		}
	}
	return Candidate{}, false
}
