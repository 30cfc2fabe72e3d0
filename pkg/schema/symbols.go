package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Type reference strategy names, in the order they are tried.
const (
	StrategyQualified  = "qualified"
	StrategyScope      = "scope"
	StrategySimpleName = "simple-name"
)

// TypeResolution is the audit record for one symbolic type reference left
// behind by a file that parsed but did not link.
type TypeResolution struct {
	// Site names where the reference appears, e.g. "shop.Cart.items" or
	// "shop.CartService.Get request".
	Site     string    `json:"site"`
	Ref      string    `json:"ref"`
	Scope    string    `json:"scope"`
	Resolved string    `json:"resolved,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

type typeStrategy struct {
	name string
	try  func(s *symbolTable, ref, scope string) (string, []Attempt)
}

var typeStrategies = []typeStrategy{
	{StrategyQualified, (*symbolTable).qualified},
	{StrategyScope, (*symbolTable).scoped},
	{StrategySimpleName, (*symbolTable).simpleName},
}

type symbolTable struct {
	tree    *Tree
	byShort map[string][]string
}

func newSymbolTable(tree *Tree) *symbolTable {
	st := &symbolTable{tree: tree, byShort: make(map[string][]string)}
	for name, n := range tree.types {
		st.byShort[n.Name] = append(st.byShort[n.Name], name)
	}
	for _, names := range st.byShort {
		sort.Strings(names)
	}
	return st
}

// resolve runs the strategies in order and stops at the first hit.
func (s *symbolTable) resolve(site, ref, scope string) TypeResolution {
	res := TypeResolution{Site: site, Ref: ref, Scope: scope}
	for _, strategy := range typeStrategies {
		name, attempts := strategy.try(s, ref, scope)
		res.Attempts = append(res.Attempts, attempts...)
		if name != "" {
			res.Resolved = name
			res.Strategy = strategy.name
			return res
		}
	}
	return res
}

func (s *symbolTable) has(name string) bool {
	_, ok := s.tree.types[name]
	return ok
}

func (s *symbolTable) qualified(ref, _ string) (string, []Attempt) {
	name := strings.TrimPrefix(ref, ".")
	if s.has(name) {
		return name, nil
	}
	return "", []Attempt{{Strategy: StrategyQualified, Candidate: name, Reason: "no such type"}}
}

// scoped applies protobuf scoping: the innermost enclosing scope first, then
// each parent up to the root package.
func (s *symbolTable) scoped(ref, scope string) (string, []Attempt) {
	if strings.HasPrefix(ref, ".") {
		return "", []Attempt{{Strategy: StrategyScope, Candidate: ref, Reason: "absolute reference"}}
	}
	var attempts []Attempt
	for scope != "" {
		candidate := scope + "." + ref
		if s.has(candidate) {
			return candidate, attempts
		}
		attempts = append(attempts, Attempt{Strategy: StrategyScope, Candidate: candidate, Reason: "no such type"})
		i := strings.LastIndex(scope, ".")
		if i < 0 {
			break
		}
		scope = scope[:i]
	}
	return "", attempts
}

func (s *symbolTable) simpleName(ref, _ string) (string, []Attempt) {
	short := ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		short = ref[i+1:]
	}
	matches := s.byShort[short]
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", []Attempt{{Strategy: StrategySimpleName, Candidate: short, Reason: "no type with this name"}}
	default:
		return "", []Attempt{{
			Strategy:  StrategySimpleName,
			Candidate: short,
			Reason:    fmt.Sprintf("ambiguous: %s", strings.Join(matches, ", ")),
		}}
	}
}
