// Package cc holds the state shared across an entire compilation: the
// target descriptor, the interned type universe, and the diagnostic sink.
// It keeps no file table: each Loc carries its file name as a plain
// string. It is passed explicitly through the pipeline rather than
// stashed in a global or thread-local, per the core's "Cross-module global
// state" design note.
package cc

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

// Loc is a source location, as reported by a frontend. The core never
// inspects file contents; it only ever carries Locs through for diagnostics.
type Loc struct {
	File string
	Line int
	Col  int
}

func (l Loc) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Severity distinguishes user-facing diagnostics from notes.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "diagnostic"
	}
}

// Diagnostic is a single user-facing message attached to a source location.
type Diagnostic struct {
	Severity Severity
	Loc      Loc
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
}

// ICE is an internal compiler error: a violated invariant or a reached but
// unimplemented path. It is always fatal. Construction sites panic with an
// ICE value; the CLI driver recovers it at the top level (see cmd/lcc).
type ICE struct {
	Invariant string
	Loc       Loc
}

func (e ICE) Error() string {
	return fmt.Sprintf("internal compiler error at %s: %s", e.Loc, e.Invariant)
}

// Fatal panics with an ICE carrying the given invariant description. Use
// for "should never happen" conditions (failed type checks on instruction
// construction, unreachable switch defaults in passes, unimplemented
// backend cases).
func Fatal(loc Loc, format string, args ...any) {
	panic(ICE{Invariant: fmt.Sprintf(format, args...), Loc: loc})
}

// Context carries the target, the type universe, and the diagnostic sink
// for one compilation. Context.Types is append-only for the duration of the
// compilation (see types.Universe doc).
type Context struct {
	Target *target.Target
	Types  *types.Universe

	Verbose     bool
	diagnostics []Diagnostic
}

func NewContext(tgt *target.Target) *Context {
	return &Context{
		Target: tgt,
		Types:  types.NewUniverse(tgt),
	}
}

// Error records a user-facing error diagnostic. The pipeline checks
// HasError() at each stage boundary and aborts without writing output if
// any stage recorded one.
func (c *Context) Error(loc Loc, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Severity: Error, Loc: loc, Message: fmt.Sprintf(format, args...)})
}

func (c *Context) Warn(loc Loc, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Severity: Warning, Loc: loc, Message: fmt.Sprintf(format, args...)})
}

func (c *Context) HasError() bool {
	for _, d := range c.diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (c *Context) Diagnostics() []Diagnostic { return c.diagnostics }

// CheckStage returns a wrapped error if the context has accumulated any
// error diagnostic; call at each pipeline boundary named in spec.md §7
// (post-frontend, post-optimizer, post-ISel, post-RA).
func (c *Context) CheckStage(stage string) error {
	if !c.HasError() {
		return nil
	}
	var last Diagnostic
	for _, d := range c.diagnostics {
		if d.Severity == Error {
			last = d
		}
	}
	return errors.New("%s: aborting due to %d diagnostic(s), last: %s", stage, len(c.diagnostics), last)
}
