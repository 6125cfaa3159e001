package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codegraphio/codegraph/database"
	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	"github.com/lib/pq"
)

// Engine writes enriched file trees into the graph store. Ingestion is
// idempotent and convergent: every write is an upsert keyed by uid or edge
// triple, each file is one transaction, and uid write races are retried
// within bounds, so re-ingesting a file or ingesting files in any order
// converges to the same graph.
type Engine struct {
	db            *helper.Database
	entities      *database.EntitiesDBHandler
	relationships *database.RelationshipsDBHandler
	files         *database.FilesDBHandler
	retry         model.RetryConfig
}

// NewEngine creates a graph ingestion engine on the given handlers
func NewEngine(
	db *helper.Database,
	entities *database.EntitiesDBHandler,
	relationships *database.RelationshipsDBHandler,
	files *database.FilesDBHandler,
	retry model.RetryConfig,
) (*Engine, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if entities == nil || relationships == nil || files == nil {
		return nil, helper.NewError("handler validation", fmt.Errorf("all database handlers are required"))
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	return &Engine{
		db:            db,
		entities:      entities,
		relationships: relationships,
		files:         files,
		retry:         retry,
	}, nil
}

// IngestFile persists one file's enrichment into the graph inside a single
// serializable transaction. Conflicts from concurrent ingestion
// (serialization failures, deadlocks, edge inserts racing a stub promotion)
// are retried with backoff; any other failure rolls the file back untouched.
func (e *Engine) IngestFile(ctx context.Context, sourceFile string, enrichment *model.FileEnrichment, contentHash string) error {
	if sourceFile == "" {
		return helper.NewError("source file validation", fmt.Errorf("source file is empty"))
	}
	if enrichment == nil {
		return helper.NewError("enrichment validation", fmt.Errorf("enrichment is nil"))
	}

	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		err := e.ingestOnce(ctx, sourceFile, enrichment, contentHash)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		lastErr = err

		if attempt < e.retry.MaxAttempts {
			backoff := e.retry.Backoff(attempt)
			e.db.Logger.Debug("Ingestion conflict, retrying",
				"file", sourceFile,
				"attempt", attempt,
				"backoff", backoff)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return helper.NewError("ingest file after conflict retries", lastErr)
}

func (e *Engine) ingestOnce(ctx context.Context, sourceFile string, enrichment *model.FileEnrichment, contentHash string) error {
	// Serializable isolation: stub promotion deletes a row that concurrent
	// referencers attach edges to through the FK cascade. At weaker levels
	// the promotion's edge re-pointing can miss an edge committed after its
	// snapshot and the cascade then drops it without any error to retry on.
	// Serializable turns that interleaving into a 40001 conflict instead.
	tx, err := e.db.Instance.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			// Rollback on any failed path keeps the file untouched
			_ = tx.Rollback()
		}
	}()

	decls := collectDeclarations(sourceFile, enrichment.AST)

	// Entity upserts first so every edge references an existing row
	for _, decl := range decls {
		err = e.entities.UpsertEntityTx(tx, decl.entity)
		if err != nil {
			return helper.NewError("upsert entity", err)
		}
	}

	// Promote stubs left behind by files that referenced these names
	// before they were declared
	promoted := map[string]struct{}{}
	for _, decl := range decls {
		if _, done := promoted[decl.entity.Name]; done {
			continue
		}
		promoted[decl.entity.Name] = struct{}{}

		err = e.entities.PromoteStubTx(tx, model.StubUID(decl.entity.Name), decl.entity.UID)
		if err != nil {
			return helper.NewError("promote stub", err)
		}
	}

	resolver := newResolver(e.entities, tx, decls)

	for _, decl := range decls {
		err = e.ingestEdges(decl, resolver)
		if err != nil {
			return err
		}
	}

	file := &model.FileRecord{
		SourceFile:     sourceFile,
		Summary:        enrichment.Summary,
		Tags:           enrichment.Tags,
		Dependencies:   enrichment.Dependencies,
		ProcessingInfo: enrichment.ProcessingInfo,
		ContentHash:    contentHash,
	}
	err = e.files.UpsertFileTx(tx, file)
	if err != nil {
		return helper.NewError("upsert file record", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}
	committed = true

	e.db.Logger.Debug("Ingested file",
		"file", sourceFile,
		"entities", len(decls),
		"stubs_created", resolver.stubsCreated)

	return nil
}

// ingestEdges writes the containment, dependency, inheritance and signature
// edges of one declaration. Every edge insert has set semantics.
func (e *Engine) ingestEdges(decl *declaration, resolver *resolver) error {
	if decl.parent != nil {
		err := e.relationships.UpsertRelationshipTx(resolver.tx, model.RelationContains, decl.parent.entity.UID, decl.entity.UID)
		if err != nil {
			return helper.NewError("upsert contains edge", err)
		}
	}

	if decl.node.Enrichment != nil {
		deps := model.TypeDependencies(decl.node.Enrichment.Dependencies...)
		err := e.resolveAndLink(decl, resolver, model.RelationDependsOn, deps)
		if err != nil {
			return err
		}
	}

	for _, base := range decl.node.BaseTypes {
		names := model.TypeDependencies(base)
		if len(names) == 0 {
			continue
		}
		kind := model.RelationInheritsFrom
		if isInterfaceName(names[0]) {
			kind = model.RelationImplements
		}
		err := e.resolveAndLink(decl, resolver, kind, names[:1])
		if err != nil {
			return err
		}
	}

	if decl.node.Kind == model.NodeKindMethod || decl.node.Kind == model.NodeKindConstructor {
		err := e.resolveAndLink(decl, resolver, model.RelationReturns, model.TypeDependencies(decl.node.ReturnType))
		if err != nil {
			return err
		}

		paramTypes := make([]string, 0, len(decl.node.Parameters))
		for _, param := range decl.node.Parameters {
			paramTypes = append(paramTypes, param.Type)
		}
		err = e.resolveAndLink(decl, resolver, model.RelationHasParameter, model.TypeDependencies(paramTypes...))
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) resolveAndLink(decl *declaration, resolver *resolver, kind model.RelationKind, names []string) error {
	for _, name := range names {
		if name == decl.entity.Name {
			continue
		}

		targetUID, err := resolver.resolve(name)
		if err != nil {
			return helper.NewError("resolve dependency", err)
		}
		if targetUID == decl.entity.UID {
			continue
		}

		err = e.relationships.UpsertRelationshipTx(resolver.tx, kind, decl.entity.UID, targetUID)
		if err != nil {
			return helper.NewError("upsert edge", err)
		}
	}
	return nil
}

// isConflict reports whether the error is a concurrency conflict worth
// retrying: a serialization failure, a deadlock, or a foreign key violation
// from an edge insert racing a stub promotion that deleted its target. The
// retry re-resolves the name and reaches the promoted entity instead.
func isConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01" || pqErr.Code == "23503"
	}
	return false
}

// isInterfaceName matches the I-prefix interface naming convention
func isInterfaceName(name string) bool {
	return len(name) >= 2 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z'
}
