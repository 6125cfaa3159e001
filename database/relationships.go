package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	"github.com/codegraphio/codegraph/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for relationship database operations.
type RelationshipsDBHandlerFunctions interface {
	UpsertRelationship(kind model.RelationKind, fromUID string, toUID string) error
	SelectRelationshipsFrom(fromUID string, kind model.RelationKind) ([]*model.Relationship, error)
	SelectRelationshipsTo(toUID string, kind model.RelationKind) ([]*model.Relationship, error)
	TraverseDependencies(startUID string, maxDepth int) ([]*model.DependencyRef, error)
	CountRelationships() (int64, error)
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// The entities table must exist before this handler is created because the
// relationships table references entities by uid.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := sql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// UpsertRelationship adds an edge. Adding an edge that already exists is a
// no-op, so edge insertion has set semantics.
func (h *RelationshipsDBHandler) UpsertRelationship(kind model.RelationKind, fromUID string, toUID string) error {
	return h.UpsertRelationshipTx(h.db.Instance, kind, fromUID, toUID)
}

// UpsertRelationshipTx is UpsertRelationship running on the given Querier.
func (h *RelationshipsDBHandler) UpsertRelationshipTx(q Querier, kind model.RelationKind, fromUID string, toUID string) error {
	_, err := q.Exec(
		`SELECT upsert_relationship($1, $2, $3)`,
		kind,
		fromUID,
		toUID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectRelationshipsFrom retrieves all edges leaving an entity.
// An empty kind matches all relation types.
func (h *RelationshipsDBHandler) SelectRelationshipsFrom(fromUID string, kind model.RelationKind) ([]*model.Relationship, error) {
	return h.selectRelationships(`SELECT * FROM select_relationships_from($1, $2)`, fromUID, kind)
}

// SelectRelationshipsTo retrieves all edges entering an entity.
// An empty kind matches all relation types.
func (h *RelationshipsDBHandler) SelectRelationshipsTo(toUID string, kind model.RelationKind) ([]*model.Relationship, error) {
	return h.selectRelationships(`SELECT * FROM select_relationships_to($1, $2)`, toUID, kind)
}

func (h *RelationshipsDBHandler) selectRelationships(query string, uid string, kind model.RelationKind) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.Query(query, uid, kind)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relationships []*model.Relationship
	for rows.Next() {
		relationship := &model.Relationship{}
		err := rows.Scan(
			&relationship.Kind,
			&relationship.FromUID,
			&relationship.ToUID,
			&relationship.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relationships = append(relationships, relationship)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}

// TraverseDependencies returns the transitive DEPENDS_ON closure of an entity
// up to maxDepth, breadth first, each entity at its minimum depth.
func (h *RelationshipsDBHandler) TraverseDependencies(startUID string, maxDepth int) ([]*model.DependencyRef, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM traverse_dependencies($1, $2)`,
		startUID,
		maxDepth,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var refs []*model.DependencyRef
	for rows.Next() {
		ref := &model.DependencyRef{}
		err := rows.Scan(
			&ref.UID,
			&ref.Name,
			&ref.Kind,
			&ref.SourceFile,
			&ref.Depth,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		refs = append(refs, ref)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return refs, nil
}

// CountRelationships returns the total number of edges in the graph
func (h *RelationshipsDBHandler) CountRelationships() (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(`SELECT count_relationships()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}
