package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// UndefinedVariableError is returned when a placeholder names a variable
// that has not been assigned yet.
type UndefinedVariableError struct {
	Name string
	Line InputLine
}

func (e *UndefinedVariableError) Error() string {
	if e.Line.Number == 0 {
		return fmt.Sprintf("undefined variable <%s>", e.Name)
	}
	return fmt.Sprintf("undefined variable <%s> in %s", e.Name, e.Line.Location())
}

// DuplicatePathError is returned when two dependencies resolve to the same
// directory.
type DuplicatePathError struct {
	Path   string
	First  InputLine
	Second InputLine
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("dependency %s listed twice: %s and %s", e.Path, e.First.Location(), e.Second.Location())
}

// ReplaceVariables substitutes every <name> placeholder in s with its value
// from vars. Substitution is not recursive. An unterminated '<' is kept as
// is, and of two '<' before a '>' only the second one opens a placeholder.
func ReplaceVariables(s string, vars Variables) (string, error) {
	var b strings.Builder
	idx := 0
	for {
		open := strings.IndexByte(s[idx:], '<')
		if open < 0 {
			b.WriteString(s[idx:])
			return b.String(), nil
		}
		open += idx
		b.WriteString(s[idx:open])
		idx = open + 1

		closing := strings.IndexByte(s[idx:], '>')
		if closing < 0 {
			b.WriteString(s[open:])
			return b.String(), nil
		}
		closing += idx

		if strings.IndexByte(s[idx:closing], '<') >= 0 {
			b.WriteByte('<')
			continue
		}

		name := s[idx:closing]
		value, ok := vars[name]
		if !ok {
			return "", &UndefinedVariableError{Name: name}
		}
		b.WriteString(value)
		idx = closing + 1
	}
}

// Resolve substitutes vars into the path, ref and URL of the line.
func (d DependencySpec) Resolve(vars Variables) (Dependency, error) {
	dep := Dependency{Line: d.Line}
	fields := []struct {
		in  string
		out *string
	}{
		{d.Path, &dep.Path},
		{d.Ref, &dep.CommitIsh},
		{d.URL, &dep.CloneURL},
	}
	for _, f := range fields {
		v, err := ReplaceVariables(f.in, vars)
		if err != nil {
			var uv *UndefinedVariableError
			if errors.As(err, &uv) {
				uv.Line = d.Line
			}
			return Dependency{}, err
		}
		*f.out = v
	}
	return dep, nil
}

// Step advances the substitution table over one line. For a dependency line
// it also returns the resolved Dependency; for other lines the Dependency is
// nil.
func Step(vars Variables, line Line) (Variables, *Dependency, error) {
	switch l := line.(type) {
	case AssignmentLine:
		return l.Bind(vars), nil, nil
	case DependencySpec:
		dep, err := l.Resolve(vars)
		if err != nil {
			return vars, nil, err
		}
		return vars, &dep, nil
	default:
		return vars, nil, nil
	}
}

// BuildDependencies resolves every dependency line. Assignments only affect
// the lines that follow them.
func BuildDependencies(lines []Line) ([]Dependency, error) {
	var deps []Dependency
	seen := make(map[string]InputLine)
	vars := Variables{}
	for _, line := range lines {
		next, dep, err := Step(vars, line)
		if err != nil {
			return nil, err
		}
		vars = next
		if dep == nil {
			continue
		}

		key := filepath.Clean(dep.Path)
		if first, dup := seen[key]; dup {
			return nil, &DuplicatePathError{Path: dep.Path, First: first, Second: dep.Line}
		}
		seen[key] = dep.Line
		deps = append(deps, *dep)
	}
	return deps, nil
}
