package buildfile

import (
	"path/filepath"
	"sort"
)

// Resolver expands the two non-glob pattern kinds and glob patterns
// against the mirror. internal/graph's buildfilenode.go supplies a
// Resolver backed by the live node graph; tests supply a static one.
type Resolver interface {
	Glob(pattern string) ([]string, error)
	Group(name string) ([]string, error)
	Bin(name string) ([]string, error)
}

// CompiledCommand is one command-node-to-be: resolved input paths, the
// script text (with {bin} expansions already substituted by the caller if
// desired), and resolved output paths. internal/graph turns each of these
// into a CommandNode plus its GeneratedFileNode outputs.
type CompiledCommand struct {
	Inputs  []string
	Script  string
	Outputs []string
	Rule    Rule
}

// Warning is a non-fatal compilation note, e.g. a foreach rule whose input
// pattern matched nothing (spec §9 Open Question, resolved in
// SPEC_FULL.md/DESIGN.md: emit a warning, produce zero commands, do not
// fail the build).
type Warning struct {
	Rule    Rule
	Message string
}

// Compile walks the AST and resolves each rule's patterns into concrete
// paths, producing one CompiledCommand per rule, or one per matched input
// when the rule is `foreach`.
func Compile(f *File, r Resolver) ([]CompiledCommand, []Warning, error) {
	if err := detectRuleCycle(f.Rules); err != nil {
		return nil, nil, err
	}

	var commands []CompiledCommand
	var warnings []Warning

	for _, rule := range f.Rules {
		included, excluded, err := resolveInputs(rule.Inputs, r)
		if err != nil {
			return nil, nil, err
		}
		outputs, err := resolveOutputs(rule.Outputs, r)
		if err != nil {
			return nil, nil, err
		}
		filtered := subtract(included, excluded)

		if rule.Foreach {
			if len(filtered) == 0 {
				warnings = append(warnings, Warning{Rule: rule, Message: "foreach rule matched zero inputs"})
				continue
			}
			for _, in := range filtered {
				commands = append(commands, CompiledCommand{
					Inputs:  []string{in},
					Script:  rule.Script,
					Outputs: perInputOutputs(outputs, in),
					Rule:    rule,
				})
			}
			continue
		}

		commands = append(commands, CompiledCommand{
			Inputs:  filtered,
			Script:  rule.Script,
			Outputs: outputs,
			Rule:    rule,
		})
	}
	return commands, warnings, nil
}

func resolveInputs(patterns []Pattern, r Resolver) (included, excluded []string, err error) {
	for _, p := range patterns {
		matches, err := resolvePattern(p, r)
		if err != nil {
			return nil, nil, err
		}
		if p.Excluded {
			excluded = append(excluded, matches...)
		} else {
			included = append(included, matches...)
		}
	}
	sort.Strings(included)
	return included, excluded, nil
}

func resolveOutputs(patterns []Pattern, r Resolver) ([]string, error) {
	var out []string
	for _, p := range patterns {
		matches, err := resolvePattern(p, r)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

func resolvePattern(p Pattern, r Resolver) ([]string, error) {
	switch p.Kind {
	case PatternGroup:
		return r.Group(p.Text)
	case PatternBin:
		return r.Bin(p.Text)
	default:
		return r.Glob(p.Text)
	}
}

func subtract(all, excluded []string) []string {
	if len(excluded) == 0 {
		return all
	}
	ex := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		ex[e] = true
	}
	out := make([]string, 0, len(all))
	for _, a := range all {
		if !ex[a] {
			out = append(out, a)
		}
	}
	return out
}

// perInputOutputs substitutes the matched input's file stem for a literal
// "%" in each output pattern, mirroring how per-input output paths are
// usually expressed in a foreach rule (e.g. "generated/%.obj" from
// "src/%.cpp").
func perInputOutputs(outputs []string, input string) []string {
	stem := stemOf(input)
	out := make([]string, len(outputs))
	for i, o := range outputs {
		out[i] = substitutePercent(o, stem)
	}
	return out
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

func substitutePercent(pattern, stem string) string {
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '%' {
			out = append(out, stem...)
			continue
		}
		out = append(out, pattern[i])
	}
	return string(out)
}
