package pipeline

import (
	"context"

	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	"golang.org/x/sync/errgroup"
)

// EnrichFile runs the full enrichment pass over one file's syntax tree:
// chunk extraction, bounded concurrent enrichment and composition. It blocks
// until every chunk has a result. Cancelling the context stops outstanding
// enrichment and returns the context error.
func (p *Pipeline) EnrichFile(ctx context.Context, data []byte) (*model.FileEnrichment, error) {
	nodes, err := model.ParseSyntaxTree(data)
	if err != nil {
		return nil, helper.NewError("parse syntax tree", err)
	}

	chunks := BuildChunks(nodes)
	results := make([]*model.EnrichmentResult, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.MaxParallel)

	for i, chunk := range chunks {
		group.Go(func() error {
			result, err := p.Provider.Enrich(groupCtx, chunk)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, helper.NewError("enrich chunks", err)
	}

	return Compose(nodes, chunks, results), nil
}
