package pharos

import (
	"context"
	"errors"
	"fmt"

	"github.com/pharosdir/pharos/wire"
)

// ErrNoMatch is returned by Lookup helpers when a query resolves without
// matching entries.
var ErrNoMatch = errors.New("pharos: no matching entries")

// Directory is the operation surface of a directory client. *Client
// implements it; callers that only run commands can depend on this
// interface instead of the pooled client.
type Directory interface {
	Query(ctx context.Context, text string) (wire.Result, error)
	Add(ctx context.Context, fields ...wire.Field) (wire.Result, error)
	Change(ctx context.Context, selectors []wire.Selector, changes []wire.Field, force bool) (wire.Result, error)
	Delete(ctx context.Context, selectors ...wire.Selector) (wire.Result, error)
	Execute(ctx context.Context, cmd *wire.Command) (wire.Result, error)
	ExecuteAuthenticated(ctx context.Context, cmd *wire.Command) (wire.Result, error)
}

// Lookup wraps a Directory with typed accessors that convert server error
// results into Go errors.
type Lookup interface {
	Find(ctx context.Context, selectors ...wire.Selector) ([]wire.Record, error)
	FindOne(ctx context.Context, selectors ...wire.Selector) (wire.Record, error)
	FieldValue(ctx context.Context, selector wire.Selector, field string) (string, error)
}

func NewLookup(directory Directory) Lookup {
	return &lookup{
		directory: directory,
	}
}

type lookup struct {
	directory Directory
}

// Find returns the entries matching every selector. Returns ErrNoMatch if
// nothing matches.
func (l *lookup) Find(ctx context.Context, selectors ...wire.Selector) ([]wire.Record, error) {
	result, err := l.directory.Execute(ctx, wire.Query(selectors...))
	if err != nil {
		return nil, err
	}
	return recordsFromResult(result)
}

// FindOne returns the first entry matching every selector. Returns
// ErrNoMatch if nothing matches or the server reported a count without
// sending entries.
func (l *lookup) FindOne(ctx context.Context, selectors ...wire.Selector) (wire.Record, error) {
	records, err := l.Find(ctx, selectors...)
	if err != nil {
		return wire.Record{}, err
	}
	if len(records) == 0 {
		return wire.Record{}, ErrNoMatch
	}
	return records[0], nil
}

// FieldValue returns one field of the first entry matching the selector.
func (l *lookup) FieldValue(ctx context.Context, selector wire.Selector, field string) (string, error) {
	record, err := l.FindOne(ctx, selector)
	if err != nil {
		return "", err
	}
	value, ok := record.Get(field)
	if !ok {
		return "", fmt.Errorf("entry for %s has no field %q", selector, field)
	}
	return value, nil
}

func recordsFromResult(result wire.Result) ([]wire.Record, error) {
	if err := result.Err(); err != nil {
		return nil, err
	}
	if !result.IsMatches() {
		return nil, ErrNoMatch
	}
	return result.Records, nil
}
