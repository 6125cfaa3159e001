package model

import (
	"time"
)

// RelationKind is the type of a relationship between two code entities
type RelationKind string

const (
	RelationContains     RelationKind = "CONTAINS"
	RelationDependsOn    RelationKind = "DEPENDS_ON"
	RelationInheritsFrom RelationKind = "INHERITS_FROM"
	RelationImplements   RelationKind = "IMPLEMENTS"
	RelationReturns      RelationKind = "RETURNS"
	RelationHasParameter RelationKind = "HAS_PARAMETER"
)

// EntityUID builds the composite identity key "sourceFile:kind:name".
// It is globally unique by construction: no two logical entities may share
// a uid, and ingestion never creates two stored entities for one uid.
func EntityUID(sourceFile string, kind string, name string) string {
	return sourceFile + ":" + kind + ":" + name
}

// StubUID builds the uid for an unresolved dependency name. The source-file
// component is empty because the defining file is unknown at creation time.
func StubUID(name string) string {
	return EntityUID("", NodeKindUnknown, name)
}

// CodeEntity is a persisted node of the code graph
type CodeEntity struct {
	UID          string    `json:"uid"`
	Name         string    `json:"name"`
	Kind         string    `json:"type"`
	SourceFile   string    `json:"source_file"`
	Summary      string    `json:"summary,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Quality      Quality   `json:"quality,omitempty"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// IsStub reports whether the entity is an unresolved-dependency placeholder
func (e *CodeEntity) IsStub() bool {
	return e.Kind == NodeKindUnknown
}

// Relationship is a persisted edge between two code entities. Edges are
// idempotent sets: re-adding an existing (kind, from, to) triple is a no-op.
type Relationship struct {
	Kind      RelationKind `json:"kind"`
	FromUID   string       `json:"from"`
	ToUID     string       `json:"to"`
	CreatedAt time.Time    `json:"created_at"`
}

// DependencyRef is one entity reached by a transitive dependency traversal,
// with the minimum depth at which it was reached.
type DependencyRef struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Kind       string `json:"type"`
	SourceFile string `json:"source_file"`
	Depth      int    `json:"depth"`
}

// FileRecord is the persisted per-file aggregate row
type FileRecord struct {
	SourceFile     string         `json:"source_file"`
	Summary        string         `json:"summary,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	ProcessingInfo ProcessingInfo `json:"processing_info"`
	ContentHash    string         `json:"content_hash,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
