package pipeline

import (
	"context"
	"testing"

	"github.com/codegraphio/codegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineEnrichFile(t *testing.T) {
	astJSON := []byte(`[{"type":"Class","name":"CustomerController","startLine":3,"body":[{"type":"Method","name":"GetAllCustomers","startLine":4}]}]`)

	t.Run("Enrich file with heuristic provider", func(t *testing.T) {
		pipeline := NewPipeline(NewHeuristicProvider(), 4)

		enrichment, err := pipeline.EnrichFile(context.Background(), astJSON)

		require.NoError(t, err, "Expected EnrichFile to not return an error")
		require.Len(t, enrichment.AST, 1)

		class := enrichment.AST[0]
		require.NotNil(t, class.Enrichment)
		assert.Contains(t, class.Enrichment.Tags, "controller")

		require.Len(t, class.Children, 1)
		method := class.Children[0]
		require.NotNil(t, method.Enrichment)
		assert.Contains(t, method.Enrichment.Tags, "read")

		assert.Equal(t, 1, enrichment.ProcessingInfo.ClassesProcessed)
		assert.Equal(t, 1, enrichment.ProcessingInfo.MethodsProcessed)
		assert.Equal(t, model.StrategyChunked, enrichment.ProcessingInfo.Strategy)
		assert.Equal(t, 0, enrichment.ProcessingInfo.FallbackCount)
	})

	t.Run("Invalid AST surfaces parse error", func(t *testing.T) {
		pipeline := NewPipeline(NewHeuristicProvider(), 4)

		_, err := pipeline.EnrichFile(context.Background(), []byte(`{broken`))

		require.Error(t, err, "Expected EnrichFile to return an error")
		var parseErr *model.ParseInputError
		assert.ErrorAs(t, err, &parseErr, "Expected a ParseInputError")
	})

	t.Run("Cancelled context aborts enrichment", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pipeline := NewPipeline(NewHeuristicProvider(), 4)

		_, err := pipeline.EnrichFile(ctx, astJSON)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Concurrency is bounded but complete", func(t *testing.T) {
		// Many chunks with a single worker still resolves every chunk
		large := []byte(`[
			{"type":"Class","name":"A","startLine":1,"body":[
				{"type":"Method","name":"GetOne","startLine":2},
				{"type":"Method","name":"GetTwo","startLine":3},
				{"type":"Method","name":"GetThree","startLine":4}
			]},
			{"type":"Class","name":"B","startLine":10,"body":[
				{"type":"Method","name":"CreateOne","startLine":11}
			]}
		]`)
		pipeline := NewPipeline(NewHeuristicProvider(), 1)

		enrichment, err := pipeline.EnrichFile(context.Background(), large)

		require.NoError(t, err)
		assert.Equal(t, 2, enrichment.ProcessingInfo.ClassesProcessed)
		assert.Equal(t, 4, enrichment.ProcessingInfo.MethodsProcessed)

		enriched := 0
		for _, root := range enrichment.AST {
			root.Walk(func(n *model.EnrichedNode) {
				if n.Enrichment != nil {
					enriched++
				}
			})
		}
		assert.Equal(t, 6, enriched, "Expected every chunked node to carry an enrichment")
	})
}
