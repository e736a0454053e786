// Package config reads the two plain-text configuration surfaces spec §6
// defines: the repositories config and each repository's name file. The
// repositories config grammar is pinned down at field level in the spec,
// so it gets a hand-written recursive-descent reader mirroring
// internal/buildfile's tokenizer structure rather than a generic parsing
// library.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yam-build/yam/internal/graph"
)

// Entry is one parsed repositories-config record:
// `name = ID dir = PATH type = {Integrated|Coupled|Tracked|Ignored} [inputs = ID+] ;`
type Entry struct {
	Name   string
	Dir    string
	Type   graph.RepositoryType
	Inputs []string
	Line   int
}

// HomeRepositoryID is the reserved name for the home repository.
const HomeRepositoryID = "."

// ParseRepositories reads the repositories config grammar from src. It does
// not resolve relative `dir` fields; ResolveDir joins them against the home
// repository root. Absolute dirs are also accepted.
func ParseRepositories(src string) ([]Entry, error) {
	toks := tokenizeConfig(src)
	p := &configParser{toks: toks}
	entries, err := p.parseEntries()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return nil, fmt.Errorf("line %d: duplicate repository name %q", e.Line, e.Name)
		}
		seen[e.Name] = true
		if !filepath.IsAbs(e.Dir) && !isRelativeClean(e.Dir) {
			return nil, fmt.Errorf("line %d: repository %q has an invalid dir %q", e.Line, e.Name, e.Dir)
		}
	}
	return entries, nil
}

func isRelativeClean(dir string) bool {
	return dir != "" && !strings.HasPrefix(dir, "..")
}

// ResolveDir joins a relative entry.Dir against the home repository root;
// an absolute dir passes through unchanged (spec §6: "dir is relative to
// the home repository or absolute").
func ResolveDir(homeRoot string, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(homeRoot, dir)
}

type configToken struct {
	text string
	line int
}

func tokenizeConfig(src string) []configToken {
	var toks []configToken
	line := 1
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, configToken{text: cur.String(), line: line})
			cur.Reset()
		}
	}
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			flush()
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			flush()
			i++
		case c == ';' || c == '=':
			flush()
			toks = append(toks, configToken{text: string(c), line: line})
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return toks
}

type configParser struct {
	toks []configToken
	pos  int
}

func (p *configParser) peek() (configToken, bool) {
	if p.pos >= len(p.toks) {
		return configToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *configParser) advance() (configToken, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *configParser) expectWord(word string) error {
	t, ok := p.advance()
	if !ok || t.text != word {
		return fmt.Errorf("expected %q, got %q", word, t.text)
	}
	return nil
}

func (p *configParser) expectValue() (string, error) {
	t, ok := p.advance()
	if !ok {
		return "", fmt.Errorf("unexpected end of input")
	}
	return t.text, nil
}

func (p *configParser) parseEntries() ([]Entry, error) {
	var entries []Entry
	for {
		t, ok := p.peek()
		if !ok {
			return entries, nil
		}
		entry, err := p.parseEntry()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", t.line, err)
		}
		entries = append(entries, *entry)
	}
}

func (p *configParser) parseEntry() (*Entry, error) {
	start, _ := p.peek()
	e := &Entry{Line: start.line}

	if err := p.expectWord("name"); err != nil {
		return nil, err
	}
	if err := p.expectEquals(); err != nil {
		return nil, err
	}
	name, err := p.expectValue()
	if err != nil {
		return nil, err
	}
	e.Name = name

	if err := p.expectWord("dir"); err != nil {
		return nil, err
	}
	if err := p.expectEquals(); err != nil {
		return nil, err
	}
	dir, err := p.expectValue()
	if err != nil {
		return nil, err
	}
	e.Dir = dir

	if err := p.expectWord("type"); err != nil {
		return nil, err
	}
	if err := p.expectEquals(); err != nil {
		return nil, err
	}
	typeStr, err := p.expectValue()
	if err != nil {
		return nil, err
	}
	rt, err := parseRepositoryType(typeStr)
	if err != nil {
		return nil, err
	}
	e.Type = rt

	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated entry, expected ';'")
		}
		if t.text == ";" {
			p.advance()
			return e, nil
		}
		if t.text == "inputs" {
			p.advance()
			if err := p.expectEquals(); err != nil {
				return nil, err
			}
			for {
				t, ok := p.peek()
				if !ok || t.text == ";" {
					break
				}
				v, _ := p.advance()
				e.Inputs = append(e.Inputs, v.text)
			}
			continue
		}
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}

func (p *configParser) expectEquals() error {
	t, ok := p.advance()
	if !ok || t.text != "=" {
		return fmt.Errorf("expected '='")
	}
	return nil
}

func parseRepositoryType(s string) (graph.RepositoryType, error) {
	switch s {
	case "Integrated":
		return graph.Integrated, nil
	case "Coupled":
		return graph.Coupled, nil
	case "Tracked":
		return graph.Tracked, nil
	case "Ignored":
		return graph.Ignored, nil
	default:
		return 0, fmt.Errorf("unknown repository type %q", s)
	}
}
