package repositories

import "fmt"

// Cursor walks a table forward by ascending id, fetching one row per call.
// It keeps only the last seen id, so it can be resumed from Position or
// restarted with Reset.
type Cursor[T any] struct {
	store *Store
	query string
	scope []any
	last  int64
	open  func(id int64) T
}

func newCursor[T any](store *Store, query string, scope []any, open func(id int64) T) *Cursor[T] {
	return &Cursor[T]{store: store, query: query, scope: scope, open: open}
}

// Next returns the following record; ok is false once the table is exhausted.
func (c *Cursor[T]) Next() (record T, ok bool, err error) {
	var id int64
	args := append(append([]any{}, c.scope...), c.last)
	found, err := c.store.queryRow(c.query, args, &id)
	if err != nil {
		return record, false, fmt.Errorf("cursor: %w", err)
	}
	if !found {
		return record, false, nil
	}
	c.last = id
	return c.open(id), true, nil
}

func (c *Cursor[T]) Position() int64 { return c.last }

// Seek resumes after the given id.
func (c *Cursor[T]) Seek(id int64) { c.last = id }

func (c *Cursor[T]) Reset() { c.last = 0 }

// Collect drains the cursor, up to limit records when limit > 0.
func (c *Cursor[T]) Collect(limit int) ([]T, error) {
	var out []T
	for limit <= 0 || len(out) < limit {
		record, ok, err := c.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, record)
	}
	return out, nil
}
