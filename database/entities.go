package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	"github.com/codegraphio/codegraph/sql"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EntitiesDBHandlerFunctions defines the interface for entity database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(entity *model.CodeEntity) error
	UpsertStub(uid string, name string) error
	SelectEntity(uid string) (*model.CodeEntity, error)
	SelectEntitiesByName(name string) ([]*model.CodeEntity, error)
	SelectEntitiesByFile(sourceFile string) ([]*model.CodeEntity, error)
	SelectEntitiesBySimilarity(embedding []float32, limit int) ([]*model.CodeEntity, error)
	UpdateEntityEmbedding(uid string, embedding []float32) error
	PromoteStub(stubUID string, declaredUID string) error
	DeleteEntitiesByFile(sourceFile string) error
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity inserts an entity or, on uid conflict, overwrites all mutable
// properties of the existing row. The entity is updated in place with the
// stored row, including timestamps.
func (h *EntitiesDBHandler) UpsertEntity(entity *model.CodeEntity) error {
	return h.UpsertEntityTx(h.db.Instance, entity)
}

// UpsertEntityTx is UpsertEntity running on the given Querier.
func (h *EntitiesDBHandler) UpsertEntityTx(q Querier, entity *model.CodeEntity) error {
	if entity.Metadata == nil {
		entity.Metadata = model.Metadata{}
	}

	row := q.QueryRow(
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entity.UID,
		entity.Name,
		entity.Kind,
		entity.SourceFile,
		entity.Summary,
		pq.Array(entity.Tags),
		pq.Array(entity.Dependencies),
		entity.Quality,
		entity.Metadata,
	)

	err := row.Scan(
		&entity.UID,
		&entity.Name,
		&entity.Kind,
		&entity.SourceFile,
		&entity.Summary,
		pq.Array(&entity.Tags),
		pq.Array(&entity.Dependencies),
		&entity.Quality,
		&entity.Metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpsertStub creates a placeholder entity for an unresolved dependency name.
// If any entity with the uid already exists the call is a no-op.
func (h *EntitiesDBHandler) UpsertStub(uid string, name string) error {
	return h.UpsertStubTx(h.db.Instance, uid, name)
}

// UpsertStubTx is UpsertStub running on the given Querier.
func (h *EntitiesDBHandler) UpsertStubTx(q Querier, uid string, name string) error {
	_, err := q.Exec(
		`SELECT upsert_stub($1, $2)`,
		uid,
		name,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by uid
func (h *EntitiesDBHandler) SelectEntity(uid string) (*model.CodeEntity, error) {
	return h.SelectEntityTx(h.db.Instance, uid)
}

// SelectEntityTx is SelectEntity running on the given Querier.
func (h *EntitiesDBHandler) SelectEntityTx(q Querier, uid string) (*model.CodeEntity, error) {
	entity := &model.CodeEntity{}
	row := q.QueryRow(
		`SELECT * FROM select_entity($1)`,
		uid,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// SelectEntitiesByName retrieves all entities with the given bare name.
// Declared entities sort before stubs, so the first result is the
// resolution target for a dependency reference.
func (h *EntitiesDBHandler) SelectEntitiesByName(name string) ([]*model.CodeEntity, error) {
	return h.SelectEntitiesByNameTx(h.db.Instance, name)
}

// SelectEntitiesByNameTx is SelectEntitiesByName running on the given Querier.
func (h *EntitiesDBHandler) SelectEntitiesByNameTx(q Querier, name string) ([]*model.CodeEntity, error) {
	rows, err := q.Query(
		`SELECT * FROM select_entities_by_name($1)`,
		name,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// SelectEntitiesByFile retrieves all entities declared in a source file
func (h *EntitiesDBHandler) SelectEntitiesByFile(sourceFile string) ([]*model.CodeEntity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_file($1)`,
		sourceFile,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// SelectEntitiesBySimilarity retrieves the entities whose summary embeddings
// are closest to the query embedding, ordered by cosine similarity.
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(embedding []float32, limit int) ([]*model.CodeEntity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_similarity($1, $2)`,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.CodeEntity
	for rows.Next() {
		entity := &model.CodeEntity{}
		err := rows.Scan(
			&entity.UID,
			&entity.Name,
			&entity.Kind,
			&entity.SourceFile,
			&entity.Summary,
			pq.Array(&entity.Tags),
			pq.Array(&entity.Dependencies),
			&entity.Quality,
			&entity.Metadata,
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&entity.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// UpdateEntityEmbedding sets the summary embedding of an entity
func (h *EntitiesDBHandler) UpdateEntityEmbedding(uid string, embedding []float32) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_entity_embedding($1, $2)`,
		uid,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// PromoteStub re-points all edges attached to the stub onto the declared
// entity and deletes the stub row. Promoting an absent stub is a no-op.
func (h *EntitiesDBHandler) PromoteStub(stubUID string, declaredUID string) error {
	return h.PromoteStubTx(h.db.Instance, stubUID, declaredUID)
}

// PromoteStubTx is PromoteStub running on the given Querier.
func (h *EntitiesDBHandler) PromoteStubTx(q Querier, stubUID string, declaredUID string) error {
	_, err := q.Exec(
		`SELECT promote_stub($1, $2)`,
		stubUID,
		declaredUID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEntitiesByFile deletes all entities declared in a source file.
// Edges attached to the deleted entities are removed by cascade.
func (h *EntitiesDBHandler) DeleteEntitiesByFile(sourceFile string) error {
	return h.DeleteEntitiesByFileTx(h.db.Instance, sourceFile)
}

// DeleteEntitiesByFileTx is DeleteEntitiesByFile running on the given Querier.
func (h *EntitiesDBHandler) DeleteEntitiesByFileTx(q Querier, sourceFile string) error {
	_, err := q.Exec(
		`SELECT delete_entities_by_file($1)`,
		sourceFile,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// scanEntity scans a single entity row without the similarity column
func scanEntity(row interface{ Scan(dest ...any) error }, entity *model.CodeEntity) error {
	err := row.Scan(
		&entity.UID,
		&entity.Name,
		&entity.Kind,
		&entity.SourceFile,
		&entity.Summary,
		pq.Array(&entity.Tags),
		pq.Array(&entity.Dependencies),
		&entity.Quality,
		&entity.Metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	return nil
}

func scanEntities(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*model.CodeEntity, error) {
	var entities []*model.CodeEntity
	for rows.Next() {
		entity := &model.CodeEntity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}
