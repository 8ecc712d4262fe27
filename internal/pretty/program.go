package pretty

import (
	"sort"
	"strings"

	"dlcore/internal/ir"
	"dlcore/internal/program"
	"dlcore/internal/store"
)

// Program renders every declaration then every rule in a Program, sorted
// by predicate name for deterministic output (the teacher's
// `rust/ast/src/pretty.rs` Unit renderer iterates in declaration order;
// a Program has already folded possibly-many units together, so there is
// no single natural source order left to preserve).
func Program(p *program.Program) string {
	pp := New(p.Container)
	var b strings.Builder

	declPreds := make([]ir.NameId, 0, len(p.Decls))
	for pred := range p.Decls {
		declPreds = append(declPreds, pred)
	}
	sort.Slice(declPreds, func(i, j int) bool {
		return p.Container.NameString(declPreds[i]) < p.Container.NameString(declPreds[j])
	})
	for _, pred := range declPreds {
		b.WriteString(pp.Decl(p.Decls[pred]))
		b.WriteByte('\n')
	}

	rulePreds := make([]ir.NameId, 0, len(p.RulesByHead))
	for pred := range p.RulesByHead {
		rulePreds = append(rulePreds, pred)
	}
	sort.Slice(rulePreds, func(i, j int) bool {
		return p.Container.NameString(rulePreds[i]) < p.Container.NameString(rulePreds[j])
	})
	for _, pred := range rulePreds {
		for _, ruleId := range p.RulesByHead[pred] {
			b.WriteString(pp.Rule(ruleId))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// Store renders every relation a Program knows about (extensional and
// intensional) as one fact per line, `pred(arg1, arg2).`, sorted by
// relation name and then by the arguments' textual form, for stable
// `dlc run`/`dlc watch` output.
func Store(p *program.Program, st store.Store) (string, error) {
	names := make(map[string]bool)
	for pred := range p.Extensional {
		names[p.Container.NameString(pred)] = true
	}
	for pred := range p.RulesByHead {
		names[p.Container.NameString(pred)] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var b strings.Builder
	for _, name := range sorted {
		rows, err := st.Scan(name)
		if err != nil {
			return "", err
		}
		lines := make([]string, len(rows))
		for i, row := range rows {
			args := make([]string, len(row))
			for j, v := range row {
				args[j] = v.String()
			}
			lines[i] = name + "(" + strings.Join(args, ", ") + ")."
		}
		sort.Strings(lines)
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
