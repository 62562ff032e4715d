package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// maxLineLength bounds a single manifest line.
const maxLineLength = 1 << 20

var assignmentRE = regexp.MustCompile(`^#=\s*<(\w+)>\s*=\s*(.*\S)\s*$`)

// ParseError reports a malformed manifest line.
type ParseError struct {
	Msg  string
	Line InputLine
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error: %s in %s.", e.Msg, e.Line.Location())
}

// ParseLine classifies a single input line.
func ParseLine(in InputLine) (Line, error) {
	stripped := strings.TrimSpace(in.Text)

	// "#=" has to be tested before "#".
	if strings.HasPrefix(stripped, assignmentPrefix) {
		m := assignmentRE.FindStringSubmatch(stripped)
		if m == nil {
			return nil, &ParseError{
				Msg:  fmt.Sprintf("Invalid assignment syntax, expected '%s <var> = value'", assignmentPrefix),
				Line: in,
			}
		}
		return AssignmentLine{Line: in, Name: m[1], Value: m[2]}, nil
	}

	if stripped == "" || strings.HasPrefix(stripped, commentPrefix) {
		return CommentLine{Line: in}, nil
	}

	parts := strings.Fields(stripped)
	if len(parts) == 0 || len(parts) > 3 {
		return nil, &ParseError{Msg: fmt.Sprintf("Can't parse '%s'", in.Text), Line: in}
	}
	spec := DependencySpec{Line: in, Path: parts[0]}
	if len(parts) > 1 {
		spec.Ref = parts[1]
	}
	if len(parts) > 2 {
		spec.URL = parts[2]
	}
	return spec, nil
}

// Parse reads a whole manifest. name is used in error locations.
func Parse(name string, r io.Reader) (*Manifest, error) {
	m := &Manifest{Name: name}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSuffix(sc.Text(), "\r")
		line, err := ParseLine(InputLine{Text: text, Number: n, Source: name})
		if err != nil {
			return nil, err
		}
		m.Lines = append(m.Lines, line)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			msg := fmt.Sprintf("line longer than %d bytes", maxLineLength)
			return nil, &ParseError{Msg: msg, Line: InputLine{Text: "...", Number: n + 1, Source: name}}
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(path, f)
}
