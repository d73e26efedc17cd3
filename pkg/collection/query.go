package collection

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/andalabs/andadb/pkg/btree"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/tfs"
)

// PlanNode is one node of the boolean filter tree spec.md §4.4 describes:
// leaves are index probes, interior nodes are bitmap AND/OR/AND_NOT.
// `pkg/kip`'s planner compiles a KQL pattern into a tree of these.
type PlanNode interface {
	Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error)
}

// Equality probes the BTI for field == value.
type Equality struct {
	Field string
	Value codec.Value
}

func (p Equality) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	return c.Equality(ctx, p.Field, p.Value)
}

// Prefix probes the BTI for field starting with value (string/bytes only).
type Prefix struct {
	Field string
	Value codec.Value
}

func (p Prefix) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	return c.Prefix(ctx, p.Field, p.Value)
}

// Range probes the BTI for field within [Lo, Hi].
type Range struct {
	Field          string
	Lo, Hi         codec.Value
	LoIncl, HiIncl bool
}

func (p Range) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	return c.Range(ctx, p.Field, p.Lo, p.Hi, p.LoIncl, p.HiIncl)
}

// And intersects every child's bitmap.
type And struct{ Children []PlanNode }

func (n And) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	if len(n.Children) == 0 {
		return btree.NewBitmap64(), nil
	}
	results := make([]*btree.Bitmap64, len(n.Children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range n.Children {
		i, child := i, child
		g.Go(func() error {
			r, err := child.Eval(gctx, c)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := results[0]
	for _, r := range results[1:] {
		out = out.And(r)
	}
	return out, nil
}

// Or unions every child's bitmap.
type Or struct{ Children []PlanNode }

func (n Or) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	out := btree.NewBitmap64()
	for _, child := range n.Children {
		r, err := child.Eval(ctx, c)
		if err != nil {
			return nil, err
		}
		out = out.Or(r)
	}
	return out, nil
}

// AndNot subtracts Right's bitmap from Left's.
type AndNot struct{ Left, Right PlanNode }

func (n AndNot) Eval(ctx context.Context, c *Collection) (*btree.Bitmap64, error) {
	left, err := n.Left.Eval(ctx, c)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.Eval(ctx, c)
	if err != nil {
		return nil, err
	}
	return left.AndNot(right), nil
}

// RankedQuery combines an optional boolean Filter with vector and/or
// text ranking, merging BM25 and HNSW result streams via Reciprocal
// Rank Fusion (spec.md §4.4: "ranking re-merge ... via normalized-rank
// fusion").
type RankedQuery struct {
	Filter PlanNode // nil = no filter, every doc is a candidate

	VectorField string
	VectorQuery []float32
	K, Ef       int

	TextField string
	TextQuery string
	TopK      int

	Fusion tfs.FusionConfig
	Limit  int
	Offset int
}

// Run executes the plan: applies the boolean filter (if any), runs
// whichever of vector/text ranking is configured, fuses the result
// streams, then applies limit/offset.
func (q RankedQuery) Run(ctx context.Context, c *Collection) ([]tfs.RankedDoc, error) {
	var filterSet *btree.Bitmap64
	if q.Filter != nil {
		fs, err := q.Filter.Eval(ctx, c)
		if err != nil {
			return nil, err
		}
		filterSet = fs
	}

	var textIDs, vectorIDs []uint64
	if q.TextField != "" && q.TextQuery != "" {
		results, err := c.TextSearch(q.TextField, q.TextQuery, q.TopK)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if filterSet == nil || filterSet.Contains(r.DocID) {
				textIDs = append(textIDs, r.DocID)
			}
		}
	}
	if q.VectorField != "" && q.VectorQuery != nil {
		results, err := c.VectorSearch(q.VectorField, q.VectorQuery, q.K, q.Ef)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if filterSet == nil || filterSet.Contains(r.DocID) {
				vectorIDs = append(vectorIDs, r.DocID)
			}
		}
	}

	var ranked []tfs.RankedDoc
	switch {
	case len(textIDs) > 0 || len(vectorIDs) > 0:
		ranked = tfs.FuseRRF(textIDs, vectorIDs, q.Fusion)
	case filterSet != nil:
		// Pure boolean query, no ranking signal: present doc_ids in
		// ascending doc_id order (matches insertion order for S3).
		for _, id := range sortedUint64(filterSet.ToSlice()) {
			ranked = append(ranked, tfs.RankedDoc{DocID: id})
		}
	}

	if q.Offset > 0 {
		if q.Offset >= len(ranked) {
			return nil, nil
		}
		ranked = ranked[q.Offset:]
	}
	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	return ranked, nil
}
