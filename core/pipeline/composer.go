package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codegraphio/codegraph/model"
)

// Compose folds per-chunk enrichment results back onto the syntax tree and
// computes the file-level aggregates. Results are addressed by structural
// path, so composition does not depend on the order in which concurrent
// enrichment completed.
func Compose(nodes []*model.SyntaxNode, chunks []*Chunk, results []*model.EnrichmentResult) *model.FileEnrichment {
	roots := make([]*model.EnrichedNode, 0, len(nodes))
	for _, node := range nodes {
		roots = append(roots, model.NewEnrichedNode(node))
	}

	tagSet := map[string]struct{}{}
	depSet := map[string]struct{}{}
	type classSummary struct {
		name    string
		summary string
	}
	var classSummaries []classSummary

	info := model.ProcessingInfo{Strategy: model.StrategyChunked}

	for i, chunk := range chunks {
		result := results[i]
		if result == nil {
			continue
		}
		result.EnsureDefaults()

		if target := nodeAt(roots, chunk.Path); target != nil {
			target.Enrichment = result
		}

		for _, tag := range result.Tags {
			tagSet[tag] = struct{}{}
		}
		for _, dep := range result.Dependencies {
			depSet[dep] = struct{}{}
		}

		if chunk.Kind == ChunkClass {
			info.ClassesProcessed++
			classSummaries = append(classSummaries, classSummary{name: chunk.Node.Name, summary: result.Summary})
		} else {
			info.MethodsProcessed++
		}
		if result.Quality == model.QualityFallback {
			info.FallbackCount++
		}
	}

	if len(results) > 0 && info.FallbackCount == len(results) {
		info.Strategy = model.StrategyFallback
	}

	summary := ""
	switch len(classSummaries) {
	case 0:
	case 1:
		summary = classSummaries[0].summary
	default:
		parts := make([]string, 0, len(classSummaries))
		for _, cs := range classSummaries {
			parts = append(parts, fmt.Sprintf("%s: %s", cs.name, cs.summary))
		}
		summary = strings.Join(parts, "; ")
	}

	return &model.FileEnrichment{
		AST:            roots,
		Summary:        summary,
		Tags:           sortedKeys(tagSet),
		Dependencies:   sortedKeys(depSet),
		ProcessingInfo: info,
	}
}

func nodeAt(roots []*model.EnrichedNode, path []int) *model.EnrichedNode {
	if len(path) == 0 || path[0] >= len(roots) {
		return nil
	}
	node := roots[path[0]]
	for _, index := range path[1:] {
		if index >= len(node.Children) {
			return nil
		}
		node = node.Children[index]
	}
	return node
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
