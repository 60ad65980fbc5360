package core

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
)

// ErrCursorConsumed is yielded when a page sequence is ranged over twice
var ErrCursorConsumed = errors.New("page sequence already consumed")

// PageResult is one page of a list endpoint
type PageResult[T any] struct {
	Items     []T    `json:"items"`
	HasMore   bool   `json:"has_more"`
	PageToken string `json:"page_token"`
	Total     int    `json:"total"`
}

// PageFetcher loads the page after pageToken; "" requests the first page.
type PageFetcher[T any] func(ctx context.Context, pageToken string) (PageResult[T], error)

// Paginate walks every page, yielding items one at a time. The sequence is
// single-shot. It stops when HasMore is false, the next token is empty or a
// token repeats. A fetch error is yielded once and ends the sequence.
func Paginate[T any](ctx context.Context, fetch PageFetcher[T]) iter.Seq2[T, error] {
	var consumed atomic.Bool

	return func(yield func(T, error) bool) {
		var zero T
		if !consumed.CompareAndSwap(false, true) {
			yield(zero, ErrCursorConsumed)
			return
		}

		seen := map[string]struct{}{}
		pageToken := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			page, err := fetch(ctx, pageToken)
			if err != nil {
				yield(zero, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if !page.HasMore || page.PageToken == "" {
				return
			}
			if _, repeated := seen[page.PageToken]; repeated {
				return
			}
			seen[page.PageToken] = struct{}{}
			pageToken = page.PageToken
		}
	}
}

// Collect drains seq into a slice, stopping at the first error
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
