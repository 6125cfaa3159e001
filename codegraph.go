package codegraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/codegraphio/codegraph/core/ingest"
	"github.com/codegraphio/codegraph/core/pipeline"
	"github.com/codegraphio/codegraph/database"
	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	loadSql "github.com/codegraphio/codegraph/sql"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CodeGraph provides a unified interface to enrichment, ingestion and the
// graph query surface
type CodeGraph struct {
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Files         *database.FilesDBHandler
	Pipeline      *pipeline.Pipeline // Optional enrichment pipeline
	Engine        *ingest.Engine     // Graph ingestion engine
	// Logging
	log *slog.Logger
}

// New creates a new CodeGraph instance with all handlers initialized
func New(config *helper.DatabaseConfiguration, embeddingDim int) (*CodeGraph, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("codegraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (entities first, edges and
	// files reference them). force=false to not reload existing functions.
	entities, err := database.NewEntitiesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	files, err := database.NewFilesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create files handler", err)
	}

	engine, err := ingest.NewEngine(db, entities, relationships, files, model.DefaultRetryConfig())
	if err != nil {
		return nil, helper.NewError("create ingestion engine", err)
	}

	return &CodeGraph{
		DB:            db,
		Entities:      entities,
		Relationships: relationships,
		Files:         files,
		Engine:        engine,
		log:           logger,
	}, nil
}

// Close closes the database connection
func (g *CodeGraph) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the enrichment pipeline for file processing
func (g *CodeGraph) SetPipeline(pipeline *pipeline.Pipeline) {
	g.Pipeline = pipeline
}

// UseDefaultPipeline sets up the enrichment pipeline from the given
// configuration. With Mock enabled the deterministic heuristic provider is
// used; otherwise chunks are enriched against the configured
// OpenAI-compatible endpoint with heuristic fallback on exhausted retries.
func (g *CodeGraph) UseDefaultPipeline(config *model.EnrichmentConfiguration) error {
	if config == nil {
		return helper.NewError("pipeline configuration", fmt.Errorf("enrichment configuration is nil"))
	}

	var provider pipeline.Provider
	if config.Mock {
		provider = pipeline.NewHeuristicProvider()
	} else {
		provider = pipeline.NewLLMProvider(*config, g.log)
	}

	g.Pipeline = pipeline.NewPipeline(provider, config.MaxParallel)
	return nil
}

// UseDefaultEmbedder attaches the default embedder using the
// all-MiniLM-L6-v2 model (384 dimensions) for summary embeddings
func (g *CodeGraph) UseDefaultEmbedder() error {
	if g.Pipeline == nil {
		return helper.NewError("attach embedder", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	g.Pipeline.SetEmbedder(embedder)
	return nil
}

// EnrichFile runs the enrichment pipeline over one file's syntax tree JSON
func (g *CodeGraph) EnrichFile(ctx context.Context, sourceFile string, astJSON []byte) (*model.FileEnrichment, error) {
	if g.Pipeline == nil {
		return nil, helper.NewError("enrich file", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	enrichment, err := g.Pipeline.EnrichFile(ctx, astJSON)
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("enrich file %s", sourceFile), err)
	}

	g.log.Info("Enriched file",
		slog.String("source_file", sourceFile),
		slog.Int("classes", enrichment.ProcessingInfo.ClassesProcessed),
		slog.Int("methods", enrichment.ProcessingInfo.MethodsProcessed),
		slog.String("strategy", enrichment.ProcessingInfo.Strategy))

	return enrichment, nil
}

// IngestFile persists one file's enrichment into the graph
func (g *CodeGraph) IngestFile(ctx context.Context, sourceFile string, enrichment *model.FileEnrichment, contentHash string) error {
	return g.Engine.IngestFile(ctx, sourceFile, enrichment, contentHash)
}

// ProcessFile enriches and ingests one file. When an embedder is attached,
// summary embeddings are computed and stored for every entity of the file.
func (g *CodeGraph) ProcessFile(ctx context.Context, sourceFile string, astJSON []byte) (*model.FileEnrichment, error) {
	enrichment, err := g.EnrichFile(ctx, sourceFile, astJSON)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(astJSON)
	err = g.IngestFile(ctx, sourceFile, enrichment, hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, err
	}

	if g.Pipeline != nil && g.Pipeline.Embedder != nil {
		err = g.embedFileEntities(sourceFile)
		if err != nil {
			return nil, err
		}
	}

	return enrichment, nil
}

// ProcessFiles processes many files concurrently with the given worker
// bound. Failures are isolated per file: one file's error never aborts the
// others. The returned map holds the error for every failed file.
func (g *CodeGraph) ProcessFiles(ctx context.Context, files map[string][]byte, workers int) map[string]error {
	if workers <= 0 {
		workers = 1
	}

	batchID := uuid.New()
	g.log.Info("Processing file batch",
		slog.String("batch_id", batchID.String()),
		slog.Int("files", len(files)),
		slog.Int("workers", workers))

	type fileError struct {
		sourceFile string
		err        error
	}
	errs := make(chan fileError, len(files))

	// Plain errgroup without a derived context: a file failure is recorded,
	// not propagated, so remaining files keep processing
	group := &errgroup.Group{}
	group.SetLimit(workers)

	for sourceFile, astJSON := range files {
		group.Go(func() error {
			_, err := g.ProcessFile(ctx, sourceFile, astJSON)
			if err != nil {
				errs <- fileError{sourceFile: sourceFile, err: err}
			}
			return nil
		})
	}

	_ = group.Wait()
	close(errs)

	failed := map[string]error{}
	for fe := range errs {
		g.log.Error("File processing failed",
			slog.String("batch_id", batchID.String()),
			slog.String("source_file", fe.sourceFile),
			slog.String("error", fe.err.Error()))
		failed[fe.sourceFile] = fe.err
	}

	return failed
}

// SearchEntities retrieves the entities whose summaries are semantically
// closest to the query text
func (g *CodeGraph) SearchEntities(ctx context.Context, query string, limit int) ([]*model.CodeEntity, error) {
	if g.Pipeline == nil || g.Pipeline.Embedder == nil {
		return nil, helper.NewError("entity search", fmt.Errorf("pipeline with embedder not set, use SetPipeline() first"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding, err := g.Pipeline.Embedder(query)
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}

	return g.Entities.SelectEntitiesBySimilarity(embedding, limit)
}

// DependencyClosure returns all entities reachable from the start entity
// over dependency edges, up to maxDepth hops
func (g *CodeGraph) DependencyClosure(uid string, maxDepth int) ([]*model.DependencyRef, error) {
	return g.Relationships.TraverseDependencies(uid, maxDepth)
}

// DeleteFileGraph removes a file's entities, their edges and the file row
// in one transaction. Stubs referenced by other files are left in place.
func (g *CodeGraph) DeleteFileGraph(ctx context.Context, sourceFile string) error {
	tx, err := g.DB.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = g.Entities.DeleteEntitiesByFileTx(tx, sourceFile)
	if err != nil {
		return helper.NewError("delete file entities", err)
	}

	err = g.Files.DeleteFileTx(tx, sourceFile)
	if err != nil {
		return helper.NewError("delete file record", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}
	committed = true

	g.log.Info("Deleted file graph", slog.String("source_file", sourceFile))
	return nil
}

func (g *CodeGraph) embedFileEntities(sourceFile string) error {
	entities, err := g.Entities.SelectEntitiesByFile(sourceFile)
	if err != nil {
		return helper.NewError("select file entities", err)
	}

	for _, entity := range entities {
		if entity.Summary == "" {
			continue
		}

		embedding, err := g.Pipeline.Embedder(entity.Summary)
		if err != nil {
			return helper.NewError(fmt.Sprintf("embed entity %s", entity.UID), err)
		}

		err = g.Entities.UpdateEntityEmbedding(entity.UID, embedding)
		if err != nil {
			return helper.NewError(fmt.Sprintf("store embedding for %s", entity.UID), err)
		}
	}

	return nil
}
