package model

import "strings"

// builtinTypes are language and framework types that never resolve to code
// entities in the graph, so they are dropped from dependency lists.
var builtinTypes = map[string]struct{}{
	"void": {}, "int": {}, "uint": {}, "long": {}, "ulong": {}, "short": {},
	"byte": {}, "char": {}, "bool": {}, "double": {}, "float": {}, "decimal": {},
	"string": {}, "object": {}, "var": {}, "dynamic": {},
	"String": {}, "Int32": {}, "Int64": {}, "Boolean": {}, "Object": {},
	"Task": {}, "ValueTask": {}, "List": {}, "IList": {}, "IEnumerable": {},
	"ICollection": {}, "IReadOnlyList": {}, "Dictionary": {}, "IDictionary": {},
	"Guid": {}, "DateTime": {}, "DateTimeOffset": {}, "TimeSpan": {},
	"IActionResult": {}, "ActionResult": {}, "HttpContext": {},
}

// TypeDependencies extracts candidate entity names from type references.
// Generic wrappers and array markers are split apart, builtins are dropped
// and duplicates collapse while preserving first-seen order.
func TypeDependencies(typeRefs ...string) []string {
	seen := map[string]struct{}{}
	deps := []string{}

	for _, ref := range typeRefs {
		for _, token := range splitTypeTokens(ref) {
			if _, builtin := builtinTypes[token]; builtin {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			deps = append(deps, token)
		}
	}

	return deps
}

func splitTypeTokens(ref string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range ref {
		if r == '<' || r == '>' || r == ',' || r == '[' || r == ']' || r == '?' || r == ' ' || r == '.' {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}
