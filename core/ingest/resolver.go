package ingest

import (
	"database/sql"

	"github.com/codegraphio/codegraph/database"
	"github.com/codegraphio/codegraph/model"
)

// declaration pairs one enriched node with the entity it persists as and the
// declaration that lexically contains it.
type declaration struct {
	entity *model.CodeEntity
	node   *model.EnrichedNode
	parent *declaration
}

// collectDeclarations flattens the enriched tree into declarations in
// depth-first source order. Every node becomes an entity, namespaces and
// properties included.
func collectDeclarations(sourceFile string, roots []*model.EnrichedNode) []*declaration {
	var decls []*declaration
	for _, root := range roots {
		decls = appendDeclarations(decls, sourceFile, root, nil)
	}
	return decls
}

func appendDeclarations(decls []*declaration, sourceFile string, node *model.EnrichedNode, parent *declaration) []*declaration {
	decl := &declaration{
		entity: entityFromNode(sourceFile, node),
		node:   node,
		parent: parent,
	}
	decls = append(decls, decl)

	for _, child := range node.Children {
		decls = appendDeclarations(decls, sourceFile, child, decl)
	}
	return decls
}

func entityFromNode(sourceFile string, node *model.EnrichedNode) *model.CodeEntity {
	entity := &model.CodeEntity{
		UID:        model.EntityUID(sourceFile, node.Kind, node.Name),
		Name:       node.Name,
		Kind:       node.Kind,
		SourceFile: sourceFile,
		Metadata:   metadataFromNode(node),
	}

	if node.Enrichment != nil {
		entity.Summary = node.Enrichment.Summary
		entity.Tags = node.Enrichment.Tags
		entity.Dependencies = node.Enrichment.Dependencies
		entity.Quality = node.Enrichment.Quality
	}

	return entity
}

func metadataFromNode(node *model.EnrichedNode) model.Metadata {
	metadata := model.Metadata{}
	if node.StartLine > 0 {
		metadata["startLine"] = node.StartLine
	}
	if node.EndLine > 0 {
		metadata["endLine"] = node.EndLine
	}
	if len(node.Modifiers) > 0 {
		metadata["modifiers"] = node.Modifiers
	}
	if node.ReturnType != "" {
		metadata["returnType"] = node.ReturnType
	}
	return metadata
}

// resolver maps dependency names to entity uids within one ingestion
// transaction. Resolution order: a declaration from the file being ingested,
// then any already-declared entity by name, then a freshly created stub.
type resolver struct {
	entities     *database.EntitiesDBHandler
	tx           *sql.Tx
	local        map[string]string
	cache        map[string]string
	stubsCreated int
}

func newResolver(entities *database.EntitiesDBHandler, tx *sql.Tx, decls []*declaration) *resolver {
	local := make(map[string]string, len(decls))
	for _, decl := range decls {
		// First declaration wins so a class shadows its constructor
		if _, ok := local[decl.entity.Name]; !ok {
			local[decl.entity.Name] = decl.entity.UID
		}
	}

	return &resolver{
		entities: entities,
		tx:       tx,
		local:    local,
		cache:    map[string]string{},
	}
}

func (r *resolver) resolve(name string) (string, error) {
	if uid, ok := r.local[name]; ok {
		return uid, nil
	}
	if uid, ok := r.cache[name]; ok {
		return uid, nil
	}

	matches, err := r.entities.SelectEntitiesByNameTx(r.tx, name)
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		// Declared entities sort before stubs, so a real declaration is
		// always preferred when both exist
		uid := matches[0].UID
		r.cache[name] = uid
		return uid, nil
	}

	uid := model.StubUID(name)
	err = r.entities.UpsertStubTx(r.tx, uid, name)
	if err != nil {
		return "", err
	}
	r.stubsCreated++
	r.cache[name] = uid
	return uid, nil
}
