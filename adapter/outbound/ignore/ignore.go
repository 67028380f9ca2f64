// Package ignore implements the PathFilter port with glob patterns.
//
// A pattern without a separator is matched against every path component, so
// "*.tmp" and "node_modules" apply at any depth. A pattern containing a
// separator is matched against the full path and each of its parents. A
// leading "!" re-includes what an earlier pattern would drop. Patterns are
// evaluated in order and the first match decides.
package ignore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/ajkula/GoNotify/domain/port/outbound"
)

type pattern struct {
	source  string
	match   glob.Glob
	include bool
	anchor  bool
}

type Matcher struct {
	patterns []pattern
	mu       sync.RWMutex
}

var _ outbound.PathFilter = (*Matcher)(nil)

// New compiles patterns. Blank lines and lines starting with "//" or "#"
// are skipped.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.Load(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Load replaces the pattern set.
func (m *Matcher) Load(lines []string) error {
	compiled := make([]pattern, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		p := pattern{source: line}
		if strings.HasPrefix(line, "!") {
			p.include = true
			line = line[1:]
		}
		line = filepath.ToSlash(line)
		p.anchor = strings.Contains(line, "/")

		var err error
		p.match, err = glob.Compile(line, '/')
		if err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", p.source, err)
		}
		compiled = append(compiled, p)
	}

	m.mu.Lock()
	m.patterns = compiled
	m.mu.Unlock()
	return nil
}

// Patterns returns the pattern sources in evaluation order.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = p.source
	}
	return out
}

// Ignore reports whether path should be dropped.
func (m *Matcher) Ignore(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.patterns) == 0 {
		return false
	}

	slashed := filepath.ToSlash(path)
	components := strings.Split(strings.Trim(slashed, "/"), "/")

	for _, p := range m.patterns {
		if p.matches(slashed, components) {
			return !p.include
		}
	}
	return false
}

func (p pattern) matches(path string, components []string) bool {
	if !p.anchor {
		for _, c := range components {
			if p.match.Match(c) {
				return true
			}
		}
		return false
	}

	for current := path; current != "" && current != "/" && current != "."; {
		if p.match.Match(current) {
			return true
		}
		parent := pathDir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return false
}

func pathDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
