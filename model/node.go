package model

import (
	"encoding/json"
	"fmt"
)

// Node kinds produced by the external parser
const (
	NodeKindNamespace   = "Namespace"
	NodeKindClass       = "Class"
	NodeKindInterface   = "Interface"
	NodeKindEnum        = "Enum"
	NodeKindEnumMember  = "EnumMember"
	NodeKindMethod      = "Method"
	NodeKindConstructor = "Constructor"
	NodeKindProperty    = "Property"
	NodeKindUnknown     = "Unknown"
)

// Parameter represents a single method parameter
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SyntaxNode is one node of the parsed syntax tree. It is produced by the
// external parser and never mutated; Children models lexical nesting
// (namespace to classes, class to methods).
type SyntaxNode struct {
	Kind       string        `json:"type"`
	Name       string        `json:"name"`
	StartLine  int           `json:"startLine,omitempty"`
	EndLine    int           `json:"endLine,omitempty"`
	Modifiers  []string      `json:"modifiers,omitempty"`
	ReturnType string        `json:"returnType,omitempty"`
	Parameters []Parameter   `json:"parameters,omitempty"`
	BaseTypes  []string      `json:"baseTypes,omitempty"`
	Children   []*SyntaxNode `json:"body,omitempty"`
}

// Signature builds a method signature string like "void GetAll(int id)"
func (n *SyntaxNode) Signature() string {
	if n.Kind != NodeKindMethod && n.Kind != NodeKindConstructor {
		return ""
	}
	returnType := n.ReturnType
	if returnType == "" {
		returnType = "void"
	}
	params := ""
	for i, p := range n.Parameters {
		if i > 0 {
			params += ", "
		}
		if p.Type != "" {
			params += p.Type + " "
		}
		params += p.Name
	}
	return fmt.Sprintf("%s %s(%s)", returnType, n.Name, params)
}

// ParseInputError reports a malformed syntax tree. It is fatal for the file
// it occurred in and is never retried.
type ParseInputError struct {
	Reason string
}

func (e *ParseInputError) Error() string {
	return "invalid syntax tree: " + e.Reason
}

// ParseSyntaxTree decodes the external parser's JSON output into a validated
// tree. Enum members lacking an explicit type are normalized to EnumMember,
// matching the parser's known output quirk.
func ParseSyntaxTree(data []byte) ([]*SyntaxNode, error) {
	var nodes []*SyntaxNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, &ParseInputError{Reason: fmt.Sprintf("decode: %v", err)}
	}

	for _, node := range nodes {
		if err := validateNode(node); err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

func validateNode(node *SyntaxNode) error {
	if node == nil {
		return &ParseInputError{Reason: "null node"}
	}
	if node.Kind == "" && node.Name != "" && node.StartLine > 0 {
		node.Kind = NodeKindEnumMember
	}
	if node.Kind == "" {
		return &ParseInputError{Reason: fmt.Sprintf("node %q has no type", node.Name)}
	}
	if node.Name == "" {
		return &ParseInputError{Reason: fmt.Sprintf("%s node at line %d has no name", node.Kind, node.StartLine)}
	}
	for _, child := range node.Children {
		if err := validateNode(child); err != nil {
			return err
		}
	}
	return nil
}

// EnrichedNode mirrors a SyntaxNode with its optional enrichment attached.
// An enriched tree always has the same node count and order as its input.
type EnrichedNode struct {
	Kind       string            `json:"type"`
	Name       string            `json:"name"`
	StartLine  int               `json:"startLine,omitempty"`
	EndLine    int               `json:"endLine,omitempty"`
	Modifiers  []string          `json:"modifiers,omitempty"`
	ReturnType string            `json:"returnType,omitempty"`
	Parameters []Parameter       `json:"parameters,omitempty"`
	BaseTypes  []string          `json:"baseTypes,omitempty"`
	Enrichment *EnrichmentResult `json:"enrichment,omitempty"`
	Children   []*EnrichedNode   `json:"body,omitempty"`
}

// NewEnrichedNode copies the structural fields of a SyntaxNode, recursively
// mirroring its children without any enrichment attached yet.
func NewEnrichedNode(node *SyntaxNode) *EnrichedNode {
	enriched := &EnrichedNode{
		Kind:       node.Kind,
		Name:       node.Name,
		StartLine:  node.StartLine,
		EndLine:    node.EndLine,
		Modifiers:  node.Modifiers,
		ReturnType: node.ReturnType,
		Parameters: node.Parameters,
		BaseTypes:  node.BaseTypes,
	}
	for _, child := range node.Children {
		enriched.Children = append(enriched.Children, NewEnrichedNode(child))
	}
	return enriched
}

// Walk visits the node and all descendants in depth-first source order
func (n *EnrichedNode) Walk(visit func(node *EnrichedNode)) {
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// CountNodes returns the total node count of the tree
func (n *EnrichedNode) CountNodes() int {
	count := 0
	n.Walk(func(*EnrichedNode) { count++ })
	return count
}
