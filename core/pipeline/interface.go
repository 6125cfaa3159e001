package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/codegraphio/codegraph/model"
)

// ChunkKind distinguishes container chunks from member chunks
type ChunkKind string

const (
	ChunkClass  ChunkKind = "class"
	ChunkMethod ChunkKind = "method"
)

// Chunk is one unit of enrichment work. Container nodes (classes, interfaces,
// enums) become class chunks carrying their member method names; methods and
// constructors become method chunks carrying their enclosing type name.
type Chunk struct {
	Kind ChunkKind
	Node *model.SyntaxNode
	// Path is the child-index path from the root node list to the node,
	// used to re-attach the result to the tree after concurrent enrichment.
	Path []int
	// ClassName is the enclosing container name for method chunks.
	ClassName string
	// MethodNames are the member method and constructor names for class chunks.
	MethodNames []string
}

// PathKey returns the path as a stable string key (e.g. "0.2.1")
func (c *Chunk) PathKey() string {
	parts := make([]string, 0, len(c.Path))
	for _, i := range c.Path {
		parts = append(parts, strconv.Itoa(i))
	}
	return strings.Join(parts, ".")
}

// Provider produces structured enrichment for a single chunk.
// Implementations must honor context cancellation on blocking work.
type Provider interface {
	Enrich(ctx context.Context, chunk *Chunk) (*model.EnrichmentResult, error)
}

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// Pipeline combines chunk extraction, enrichment and composition
type Pipeline struct {
	Provider    Provider
	Embedder    EmbedFunc // Optional
	MaxParallel int
}

// NewPipeline creates a new enrichment pipeline
func NewPipeline(provider Provider, maxParallel int) *Pipeline {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Pipeline{
		Provider:    provider,
		MaxParallel: maxParallel,
	}
}

// SetEmbedder sets the optional embedding function used for entity summaries
func (p *Pipeline) SetEmbedder(embedder EmbedFunc) {
	p.Embedder = embedder
}
