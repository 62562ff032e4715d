package engine

import (
	"fmt"
	"io"
	"strings"
)

// Reporter writes human-readable progress as it happens. A nil Reporter
// discards everything.
type Reporter struct {
	w       io.Writer
	headers int
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w}
}

// Header prints s underlined with dashes, separated from the previous
// section by a blank line.
func (r *Reporter) Header(s string) {
	if r == nil {
		return
	}
	if r.headers > 0 {
		fmt.Fprintln(r.w)
	}
	r.headers++
	fmt.Fprintln(r.w, s)
	fmt.Fprintln(r.w, strings.Repeat("-", len(s)))
}

// Printf prints one line.
func (r *Reporter) Printf(format string, args ...any) {
	if r == nil {
		return
	}
	fmt.Fprintf(r.w, format+"\n", args...)
}
