// Package stratify implements spec.md §4.3: dependency-graph analysis
// that partitions intensional predicates into ordered strata, rejecting
// programs with recursion through negation (or aggregation, modeled as
// negative per spec.md §9's accepted coarse rule).
package stratify

import (
	"fmt"
	"sort"
	"strings"

	"dlcore/internal/ir"
	"dlcore/internal/program"
)

// Error is a stratification failure: spec.md §7's "program cannot be
// stratified" kind. It names the predicate and the cycle it was found in
// so a caller can report something actionable.
type Error struct {
	Predicate string
	Cycle     []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("program cannot be stratified: %s has a negative dependency within its own cycle {%s}",
		e.Predicate, strings.Join(e.Cycle, ", "))
}

// Stratified is the output of Stratify: an ordered list of strata (each a
// set of predicates) plus the reverse index. Predicates with no rules
// (pure extensional) are absent from both, per spec.md §4.3.
type Stratified struct {
	Strata    [][]ir.NameId
	StratumOf map[ir.NameId]int
}

// Recursive reports whether stratum index i contains more than one
// predicate, or a single predicate with a self-edge — i.e. whether the
// evaluator must run it to a fixed point rather than once (spec.md §4.6).
func (s *Stratified) Recursive(i int, p *program.Program) bool {
	stratum := s.Strata[i]
	inStratum := make(map[ir.NameId]bool, len(stratum))
	for _, pred := range stratum {
		inStratum[pred] = true
	}
	for _, pred := range stratum {
		for _, ruleId := range p.RulesByHead[pred] {
			rule := p.Container.Get(ruleId)
			for _, premId := range rule.RulePremises {
				prem := p.Container.Get(premId)
				var atomId ir.InstId
				switch prem.Kind {
				case ir.KAtom:
					atomId = premId
				case ir.KNegAtom:
					atomId = prem.AtomIdx
				default:
					continue
				}
				if inStratum[p.Container.Get(atomId).NameH] {
					return true
				}
			}
		}
	}
	return false
}

type edgeSet map[ir.NameId]map[ir.NameId]bool // from -> to -> isNegative

func (e edgeSet) add(from, to ir.NameId, negative bool) {
	if e[from] == nil {
		e[from] = make(map[ir.NameId]bool)
	}
	// "Edges combine by precedence: once an edge is negative, later
	// positive additions do not downgrade it."
	e[from][to] = e[from][to] || negative
}

func sortedNames(m map[ir.NameId]bool) []ir.NameId {
	out := make([]ir.NameId, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedSuccessors(m map[ir.NameId]bool) []ir.NameId {
	out := make([]ir.NameId, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stratify builds the dependency graph over p's intensional predicates,
// computes its SCCs (Kosaraju), rejects any SCC containing a negative
// self-loop, and returns the strata in dependency order.
func Stratify(p *program.Program) (*Stratified, error) {
	c := p.Container

	nodes := make(map[ir.NameId]bool, len(p.RulesByHead))
	for pred := range p.RulesByHead {
		nodes[pred] = true
	}
	nodeList := sortedNames(nodes)

	edges := make(edgeSet)
	for pred, rules := range p.RulesByHead {
		for _, ruleId := range rules {
			rule := c.Get(ruleId)
			hasDo := false
			for _, trId := range rule.RuleTransforms {
				if !c.Get(trId).HasVar {
					hasDo = true
					break
				}
			}
			for _, premId := range rule.RulePremises {
				prem := c.Get(premId)
				switch prem.Kind {
				case ir.KAtom:
					q := c.Get(premId).NameH
					if nodes[q] {
						edges.add(pred, q, hasDo)
					}
				case ir.KNegAtom:
					q := c.Get(prem.AtomIdx).NameH
					if nodes[q] {
						edges.add(pred, q, true)
					}
				}
			}
		}
	}

	adj := make(map[ir.NameId][]ir.NameId, len(nodeList))
	for from, tos := range edges {
		adj[from] = sortedSuccessors(tos)
	}

	radj := make(map[ir.NameId][]ir.NameId)
	for from, tos := range edges {
		for to := range tos {
			radj[to] = append(radj[to], from)
		}
	}
	for to := range radj {
		sort.Slice(radj[to], func(i, j int) bool { return radj[to][i] < radj[to][j] })
	}

	comps, compOf := kosaraju(nodeList, adj, radj)

	for ci, comp := range comps {
		inComp := make(map[ir.NameId]bool, len(comp))
		for _, n := range comp {
			inComp[n] = true
		}
		for _, from := range comp {
			for to, negative := range edges[from] {
				if negative && compOf[to] == ci {
					cycle := make([]string, len(comp))
					for i, n := range comp {
						cycle[i] = c.NameString(n)
					}
					sort.Strings(cycle)
					return nil, &Error{Predicate: c.NameString(from), Cycle: cycle}
				}
			}
		}
	}

	order := condensationPostorder(comps, compOf, edges)

	stratified := &Stratified{StratumOf: make(map[ir.NameId]int, len(nodeList))}
	for _, ci := range order {
		comp := append([]ir.NameId(nil), comps[ci]...)
		idx := len(stratified.Strata)
		stratified.Strata = append(stratified.Strata, comp)
		for _, n := range comp {
			stratified.StratumOf[n] = idx
		}
	}
	return stratified, nil
}

// kosaraju computes strongly connected components: a first DFS postorder
// on the forward graph, then a second DFS on the transpose popping from
// that postorder, per spec.md §4.3.
func kosaraju(nodes []ir.NameId, adj, radj map[ir.NameId][]ir.NameId) (comps [][]ir.NameId, compOf map[ir.NameId]int) {
	visited := make(map[ir.NameId]bool, len(nodes))
	var order []ir.NameId

	var dfs1 func(n ir.NameId)
	dfs1 = func(n ir.NameId) {
		visited[n] = true
		for _, m := range adj[n] {
			if !visited[m] {
				dfs1(m)
			}
		}
		order = append(order, n)
	}
	for _, n := range nodes {
		if !visited[n] {
			dfs1(n)
		}
	}

	visited2 := make(map[ir.NameId]bool, len(nodes))
	compOf = make(map[ir.NameId]int, len(nodes))

	var dfs2 func(n ir.NameId, comp *[]ir.NameId)
	dfs2 = func(n ir.NameId, comp *[]ir.NameId) {
		visited2[n] = true
		*comp = append(*comp, n)
		for _, m := range radj[n] {
			if !visited2[m] {
				dfs2(m, comp)
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if !visited2[n] {
			var comp []ir.NameId
			dfs2(n, &comp)
			sort.Slice(comp, func(a, b int) bool { return comp[a] < comp[b] })
			ci := len(comps)
			comps = append(comps, comp)
			for _, m := range comp {
				compOf[m] = ci
			}
		}
	}
	return comps, compOf
}

// condensationPostorder runs a second DFS, this time over the
// condensation graph (one super-node per SCC, edges inherited from
// member edges), and returns SCC indices in postorder. Because a
// postorder DFS appends a node only after all of its successors are
// finished, and edges point from a dependent predicate to its
// dependency, this directly yields "dependency's stratum before
// dependent's stratum" — spec.md §4.3's required ordering — with no
// extra reversal needed.
func condensationPostorder(comps [][]ir.NameId, compOf map[ir.NameId]int, edges edgeSet) []int {
	n := len(comps)
	succ := make([][]int, n)
	seen := make([]map[int]bool, n)
	for i := range seen {
		seen[i] = make(map[int]bool)
	}
	for from, tos := range edges {
		for to := range tos {
			a, b := compOf[from], compOf[to]
			if a != b && !seen[a][b] {
				seen[a][b] = true
				succ[a] = append(succ[a], b)
			}
		}
	}
	for i := range succ {
		sort.Ints(succ[i])
	}

	visited := make([]bool, n)
	var order []int
	var dfs func(i int)
	dfs = func(i int) {
		visited[i] = true
		for _, j := range succ[i] {
			if !visited[j] {
				dfs(j)
			}
		}
		order = append(order, i)
	}
	for i := 0; i < n; i++ {
		if !visited[i] {
			dfs(i)
		}
	}
	return order
}
