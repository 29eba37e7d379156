package collectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/gysosin/system_stats/internal/tuple"
)

// ErrUnknownTable is returned by Lookup for a name no table answers to.
var ErrUnknownTable = errors.New("unknown table")

// Table is one collection routine and the shape of the rows it emits.
// Read never fails: an unavailable source is logged and leaves the sink
// untouched.
type Table interface {
	Desc() *tuple.Desc
	Read(ctx context.Context, sink tuple.Sink)
}

// Lookup finds a table by name.
func Lookup(tables []Table, name string) (Table, error) {
	for _, t := range tables {
		if t.Desc().Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

// Collect runs t against a fresh store.
func Collect(ctx context.Context, t Table) *tuple.Store {
	store := tuple.NewStore()
	t.Read(ctx, store)
	return store
}
