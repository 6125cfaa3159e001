package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/codegraphio/codegraph/model"
)

// HeuristicProvider derives enrichment from structural heuristics alone:
// name tokens are matched against a fixed vocabulary and dependencies come
// from base types, return types and parameter types. It is selected when
// enrichment runs without a model endpoint and doubles as the fallback when
// the model-backed provider exhausts its retries.
type HeuristicProvider struct{}

// NewHeuristicProvider creates a deterministic enrichment provider
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{}
}

// Enrich produces a deterministic enrichment result for the chunk
func (p *HeuristicProvider) Enrich(ctx context.Context, chunk *Chunk) (*model.EnrichmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := heuristicEnrich(chunk)
	result.Quality = model.QualityOK
	return result, nil
}

func heuristicEnrich(chunk *Chunk) *model.EnrichmentResult {
	if chunk.Kind == ChunkClass {
		return heuristicEnrichClass(chunk.Node)
	}
	return heuristicEnrichMethod(chunk.ClassName, chunk.Node)
}

func heuristicEnrichClass(node *model.SyntaxNode) *model.EnrichmentResult {
	name := node.Name
	result := &model.EnrichmentResult{
		Dependencies: model.TypeDependencies(node.BaseTypes...),
	}

	switch {
	case strings.Contains(name, "Controller"):
		result.Summary = fmt.Sprintf("API controller for %s operations", strings.ToLower(strings.ReplaceAll(name, "Controller", "")))
		result.Tags = []string{"controller", "api", "web"}
	case strings.Contains(name, "Service"):
		result.Summary = fmt.Sprintf("Business service handling %s logic", strings.ToLower(strings.ReplaceAll(name, "Service", "")))
		result.Tags = []string{"service", "business-logic"}
	case strings.Contains(name, "Repository"):
		result.Summary = fmt.Sprintf("Data access repository for %s entities", strings.ToLower(strings.ReplaceAll(name, "Repository", "")))
		result.Tags = []string{"repository", "data-access", "persistence"}
	case strings.Contains(name, "Request"):
		result.Summary = fmt.Sprintf("Data transfer object for %s requests", strings.ToLower(strings.ReplaceAll(name, "Request", "")))
		result.Tags = []string{"dto", "request", "model"}
	default:
		result.Summary = fmt.Sprintf("Domain entity representing %s", strings.ToLower(name))
		result.Tags = []string{"entity", "domain", "model"}
	}

	return result
}

func heuristicEnrichMethod(className string, node *model.SyntaxNode) *model.EnrichmentResult {
	name := node.Name
	lower := strings.ToLower(name)
	tags := []string{"method"}

	var summary string
	switch {
	case node.Kind == model.NodeKindConstructor:
		summary = fmt.Sprintf("Initializes a new instance of %s", className)
		tags = append(tags, "constructor", "initialization")
	case strings.HasPrefix(lower, "get"):
		summary = fmt.Sprintf("Retrieves %s data", lower[3:])
		tags = append(tags, "getter", "query", "read")
	case strings.HasPrefix(lower, "create"):
		summary = fmt.Sprintf("Creates a new %s", lower[6:])
		tags = append(tags, "create", "write", "insert")
	case strings.HasPrefix(lower, "update"):
		summary = fmt.Sprintf("Updates existing %s", lower[6:])
		tags = append(tags, "update", "write", "modify")
	case strings.HasPrefix(lower, "delete"):
		summary = fmt.Sprintf("Deletes %s", lower[6:])
		tags = append(tags, "delete", "write", "remove")
	default:
		summary = fmt.Sprintf("Performs %s operation", lower)
		tags = append(tags, "operation")
	}

	typeRefs := []string{node.ReturnType}
	for _, param := range node.Parameters {
		typeRefs = append(typeRefs, param.Type)
	}

	return &model.EnrichmentResult{
		Summary:      summary,
		Tags:         tags,
		Dependencies: model.TypeDependencies(typeRefs...),
	}
}
