package pipeline

import (
	"github.com/codegraphio/codegraph/model"
)

// BuildChunks splits a parsed syntax tree into enrichment chunks. Every
// container (class, interface, enum) yields exactly one class chunk and every
// method or constructor yields exactly one method chunk, so chunk results can
// be folded back onto the tree without gaps or duplicates.
func BuildChunks(nodes []*model.SyntaxNode) []*Chunk {
	var chunks []*Chunk
	for i, node := range nodes {
		chunks = appendChunks(chunks, node, []int{i}, "")
	}
	return chunks
}

func appendChunks(chunks []*Chunk, node *model.SyntaxNode, path []int, enclosing string) []*Chunk {
	switch node.Kind {
	case model.NodeKindNamespace:
		for i, child := range node.Children {
			chunks = appendChunks(chunks, child, childPath(path, i), enclosing)
		}
	case model.NodeKindClass, model.NodeKindInterface, model.NodeKindEnum:
		chunks = append(chunks, &Chunk{
			Kind:        ChunkClass,
			Node:        node,
			Path:        path,
			MethodNames: memberNames(node),
		})
		for i, child := range node.Children {
			chunks = appendChunks(chunks, child, childPath(path, i), node.Name)
		}
	case model.NodeKindMethod, model.NodeKindConstructor:
		chunks = append(chunks, &Chunk{
			Kind:      ChunkMethod,
			Node:      node,
			Path:      path,
			ClassName: enclosing,
		})
	}
	return chunks
}

func memberNames(node *model.SyntaxNode) []string {
	names := []string{}
	for _, child := range node.Children {
		if child.Kind == model.NodeKindMethod || child.Kind == model.NodeKindConstructor {
			names = append(names, child.Name)
		}
	}
	return names
}

func childPath(path []int, index int) []int {
	next := make([]int, len(path), len(path)+1)
	copy(next, path)
	return append(next, index)
}
