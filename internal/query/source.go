package query

import (
	"context"
	"errors"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// Source is the paged fetch-by-query contract of a remote record store.
// Implementations must return items newest-first and must not fail on an
// empty result: an empty page with HasNext=false signals exhaustion.
type Source[T any] interface {
	FetchPage(ctx context.Context, q models.Query, page int) (models.Page[T], error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context, q models.Query, page int) (models.Page[T], error)

// FetchPage calls f.
func (f SourceFunc[T]) FetchPage(ctx context.Context, q models.Query, page int) (models.Page[T], error) {
	return f(ctx, q, page)
}

var (
	// ErrFetchFailed wraps every error returned by a Source.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrInvalidQuery is returned for queries that cannot be issued.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrClosed is returned by operations on a closed debouncer.
	ErrClosed = errors.New("query stream closed")
)
