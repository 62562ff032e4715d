package engine

import (
	"fmt"
	"strings"
)

// Kind is what a requested commit-ish turned out to be.
type Kind int

const (
	KindUnknown Kind = iota
	KindTag
	KindBranch
	KindHexsha
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindBranch:
		return "branch"
	case KindHexsha:
		return "hexsha"
	default:
		return "unknown"
	}
}

// Tally counts what a run did, for the summary line.
type Tally struct {
	Dependencies int
	Cloned       int
	Branches     int
	Tags         int
	Hexshas      int
}

// Add counts one dependency of the given kind. Unknown counts nowhere.
func (t *Tally) Add(k Kind) {
	switch k {
	case KindTag:
		t.Tags++
	case KindBranch:
		t.Branches++
	case KindHexsha:
		t.Hexshas++
	}
}

// Pluralize prefixes word with n, in plural form unless n is 1.
func Pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	switch {
	case strings.HasSuffix(word, "y"):
		word = strings.TrimSuffix(word, "y") + "ies"
	case strings.HasSuffix(word, "ch"):
		word += "es"
	default:
		word += "s"
	}
	return fmt.Sprintf("%d %s", n, word)
}

// RepoResult records what checkout did to one dependency.
type RepoResult struct {
	Path    string
	Dir     string
	Kind    Kind
	Head    string
	Cloned  bool
	Stashed bool
}

// CheckoutResult holds the outcome of a checkout run.
type CheckoutResult struct {
	Repos []RepoResult
	Tally Tally
}

// Summary renders the end-of-run line.
func (r *CheckoutResult) Summary() string {
	t := r.Tally
	return fmt.Sprintf("%s: cloned %s, checked out %s, %s and %s",
		Pluralize(t.Dependencies, "dependency"),
		Pluralize(t.Cloned, "repository"),
		Pluralize(t.Branches, "branch"),
		Pluralize(t.Hexshas, "Hexsha"),
		Pluralize(t.Tags, "tag"))
}

// FreezeResult holds the rewritten manifest. After a failure it holds the
// lines produced before the failing dependency.
type FreezeResult struct {
	Lines []string
	Tally Tally
}

// Summary renders the end-of-run line.
func (r *FreezeResult) Summary() string {
	t := r.Tally
	return fmt.Sprintf("Summary: %s, %s, %s, %s",
		Pluralize(t.Dependencies, "dependency"),
		Pluralize(t.Tags, "tag"),
		Pluralize(t.Branches, "branch"),
		Pluralize(t.Hexshas, "hexsha"))
}

// Content joins the lines with trailing whitespace removed, one per line.
func (r *FreezeResult) Content() []byte {
	var b strings.Builder
	for _, l := range r.Lines {
		b.WriteString(strings.TrimRight(l, " \t"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
