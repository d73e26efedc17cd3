// Package kip implements the Knowledge Interaction Protocol parser and
// planner (spec.md §4.5): a shared lexical layer for the KQL (read),
// KML (write), and META (introspection) sub-languages, typed `$name`
// parameter substitution, and a planner that evaluates a parsed
// statement's patterns, in the order written, as calls against a
// GraphStore. Grounded on
// github.com/alecthomas/participle/v2, a struct-tag grammar library
// present in the retrieved pack's dependency surface (cuemby-warren) —
// a far better fit for a small declarative DSL than a hand-rolled
// character pusher.
package kip

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/andalabs/andadb/internal/errors"
)

var kipLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Number", Pattern: `[-+]?\d+(?:\.\d+)?`},
	{Name: "Variable", Pattern: `\?[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}()\[\],:.]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

var kipParser = participle.MustBuild[Statement](
	participle.Lexer(kipLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(8),
)

// Parse parses one KQL, KML, or META statement. src must already have
// `$name` parameters substituted (see SubstituteParams) — the grammar
// has no notion of parameters, only literal values.
func Parse(src string) (*Statement, error) {
	stmt, err := kipParser.ParseString("", src)
	if err != nil {
		return nil, errors.Wrap(errors.Parse, err)
	}
	return stmt, nil
}
