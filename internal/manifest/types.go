package manifest

import "fmt"

// DefaultFileName is the manifest name used when none is given.
const DefaultFileName = "Dependencies.txt"

const (
	commentPrefix    = "#"
	assignmentPrefix = commentPrefix + "="
)

// InputLine is one raw line of a manifest together with where it came from.
type InputLine struct {
	Text   string
	Number int
	Source string // file name, empty for anonymous input
}

// Location formats the line for error messages.
func (l InputLine) Location() string {
	if l.Source == "" {
		return fmt.Sprintf("line %d: '%s'", l.Number, l.Text)
	}
	return fmt.Sprintf("%s(%d): '%s'", l.Source, l.Number, l.Text)
}

// Line is a parsed manifest line: a CommentLine, an AssignmentLine or a
// DependencySpec.
type Line interface {
	Input() InputLine
	isLine()
}

// CommentLine is a blank line or a line starting with '#'.
type CommentLine struct {
	Line InputLine
}

// AssignmentLine defines or overwrites a substitution variable:
//
//	#= <name> = value
type AssignmentLine struct {
	Line  InputLine
	Name  string
	Value string
}

// DependencySpec is a dependency line before variable substitution.
// Ref and URL are empty when the line has fewer tokens.
type DependencySpec struct {
	Line InputLine
	Path string
	Ref  string
	URL  string
}

func (c CommentLine) Input() InputLine    { return c.Line }
func (a AssignmentLine) Input() InputLine { return a.Line }
func (d DependencySpec) Input() InputLine { return d.Line }

func (CommentLine) isLine()    {}
func (AssignmentLine) isLine() {}
func (DependencySpec) isLine() {}

// Variables is the substitution table accumulated while walking a manifest.
type Variables map[string]string

// Bind returns a copy of vars with the assignment applied. The input table is
// left untouched.
func (a AssignmentLine) Bind(vars Variables) Variables {
	next := make(Variables, len(vars)+1)
	for k, v := range vars {
		next[k] = v
	}
	next[a.Name] = a.Value
	return next
}

// Dependency is a DependencySpec with all variables substituted.
type Dependency struct {
	// Path is the directory of the dependency, relative to the directory
	// containing the main project.
	Path string
	// CommitIsh is the requested tag, branch or (partial) hexsha. Empty means
	// the repository only has to exist.
	CommitIsh string
	// CloneURL is empty when the repository must already exist locally.
	CloneURL string
	// Line is the manifest line the dependency was built from.
	Line InputLine
}

// Manifest is a parsed dependency file, one Line per input line.
type Manifest struct {
	Name  string
	Lines []Line
}

// Dependencies substitutes variables and returns the dependencies in file
// order.
func (m *Manifest) Dependencies() ([]Dependency, error) {
	return BuildDependencies(m.Lines)
}
