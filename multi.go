package pharos

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pharosdir/pharos/wire"
)

// ServerResult pairs a server address with the result it returned during
// a federated query.
type ServerResult struct {
	Addr   string
	Result wire.Result
}

// QueryAll runs one query against every configured server concurrently
// and merges the matches in server order. A transport failure against any
// server fails the whole call. The per-server results, including error
// results, are returned alongside the merged result.
func (c *Client) QueryAll(ctx context.Context, selectors ...wire.Selector) (wire.Result, []ServerResult, error) {
	addrs := c.servers.List()
	if len(addrs) == 0 {
		return wire.Result{}, nil, ErrNoServers
	}

	cmd := wire.Query(selectors...)

	// Fan out one query per server
	results := make([]ServerResult, len(addrs))
	g, ctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		g.Go(func() error {
			sp, err := c.getOrCreatePool(addr)
			if err != nil {
				return err
			}
			result, err := c.execRequest(ctx, sp, func(conn *Conn) (wire.Result, error) {
				return conn.Execute(ctx, cmd)
			})
			if err != nil {
				return err
			}
			results[i] = ServerResult{Addr: addr, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.stats.recordError()
		return wire.Result{}, nil, err
	}

	merged := mergeResults(results)
	c.stats.recordQuery(merged.IsMatches())
	return merged, results, nil
}

// mergeResults merges per-server results in server order: counts add up
// and records concatenate. Servers without matches contribute nothing.
func mergeResults(results []ServerResult) wire.Result {
	total := 0
	var records []wire.Record
	matched := false
	for _, sr := range results {
		if !sr.Result.IsMatches() {
			continue
		}
		matched = true
		total += sr.Result.Count
		records = append(records, sr.Result.Records...)
	}
	if matched {
		return wire.NewMatches(total, records)
	}

	// Nothing matched anywhere: prefer a clean completion over an error
	for _, sr := range results {
		if sr.Result.IsOk() {
			return sr.Result
		}
	}
	return results[0].Result
}
