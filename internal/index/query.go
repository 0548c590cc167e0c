package index

import (
	"context"

	"github.com/cartograph-dev/cartograph/internal/store"
)

// QueryResult wraps search hits with the orchestrator status at query
// time. When the index is empty and a build had to be kicked off, Results
// is empty and IndexReady is false; callers report progress instead.
// Results served during an active run come from the last consistent index
// state and may be stale.
type QueryResult struct {
	Results    []store.SearchResult
	Status     Status
	IndexReady bool
}

// Search runs a semantic query against the index. An empty index starts a
// background build instead of failing.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int) (*QueryResult, error) {
	if st, ready := o.ensureIndex(ctx); !ready {
		return &QueryResult{Status: st}, nil
	}

	results, err := o.index.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Results: results, Status: o.Status(), IndexReady: true}, nil
}

// Similar returns the chunks nearest to an already-indexed chunk.
func (o *Orchestrator) Similar(ctx context.Context, chunkID string, topK int) (*QueryResult, error) {
	if st, ready := o.ensureIndex(ctx); !ready {
		return &QueryResult{Status: st}, nil
	}

	results, err := o.index.SimilarTo(chunkID, topK)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Results: results, Status: o.Status(), IndexReady: true}, nil
}

// ensureIndex reports whether the index can serve queries right now.
// Empty and idle means nobody has indexed yet: start a build and tell the
// caller to come back.
func (o *Orchestrator) ensureIndex(ctx context.Context) (Status, bool) {
	if o.index.Len() > 0 {
		return Status{}, true
	}
	return o.Build(ctx), false
}
