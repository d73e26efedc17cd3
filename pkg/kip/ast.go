package kip

// Statement is the top-level grammar alternation: exactly one of KQL's
// FIND, KML's UPSERT/DELETE, or META's DESCRIBE.
type Statement struct {
	Find              *FindStatement              `parser:"(  @@"`
	Upsert            *UpsertStatement            `parser:" | @@"`
	DeleteConcept     *DeleteConceptStatement     `parser:" | @@"`
	DeleteProposition *DeletePropositionStatement `parser:" | @@"`
	Describe          *DescribeStatement          `parser:" | @@ )"`
}

// --- shared JSON-literal grammar (concept/proposition bodies, metadata,
// attribute patches) — mirrors participle's canonical JSON example.

// Value is one JSON-like literal: exactly one field is non-nil/non-zero.
type Value struct {
	Object *Object  `parser:"(  @@"`
	Array  *Array   `parser:" | @@"`
	Str    *string  `parser:" | @String"`
	Number *float64 `parser:" | @Number"`
	Bool   *Boolean `parser:" | @(\"true\" | \"false\")"`
	Null   bool     `parser:" | @\"null\" )"`
}

// Object is a brace-delimited, comma-separated field list.
type Object struct {
	Fields []*Field `parser:"\"{\" (@@ (\",\" @@)*)? \"}\""`
}

// Field is one key:value pair. Keys may be bare identifiers (type,
// name, confidence) or quoted strings.
type Field struct {
	Key   string `parser:"(@Ident | @String)"`
	Value *Value `parser:"\":\" @@"`
}

// Array is a bracket-delimited, comma-separated value list.
type Array struct {
	Elements []*Value `parser:"\"[\" (@@ (\",\" @@)*)? \"]\""`
}

// Boolean implements participle's Capture interface so the literal
// tokens "true"/"false" parse directly into a bool.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// Term is one slot of a triple pattern (subject or object): a variable,
// an inline object reference ({type:"Drug", name:"Aspirin"} or just
// {name:"Aspirin"}), or a bare quoted name.
type Term struct {
	Var    *string `parser:"(  @Variable"`
	Object *Object `parser:" | @@"`
	Str    *string `parser:" | @String )"`
}

// --- KQL: FIND(...) WHERE {...} [ORDER BY] [LIMIT] [OFFSET]

// Projection is one FIND(...) element: a bound variable, optionally
// narrowed to a single field (?drug.name) or left bare for the whole
// concept (?drug).
type Projection struct {
	Var   string  `parser:"@Variable"`
	Field *string `parser:"(\".\" @Ident)?"`
}

// Pattern is one WHERE-clause element: a concept pattern or a triple
// pattern.
type Pattern struct {
	Concept *ConceptPattern `parser:"(  @@"`
	Triple  *TriplePattern  `parser:" | @@ )"`
}

// ConceptPattern binds Var to the concepts matching Body's "type" (and
// "name", when given); other Body fields are not matched (spec.md §4.5:
// `?var {type: "T", name: "N", ...}`).
type ConceptPattern struct {
	Var  string `parser:"@Variable"`
	Body *Object `parser:"@@"`
}

// TriplePattern binds Subject/Object across a named predicate edge
// (spec.md §4.5: `(?subj, "predicate", ?obj)`).
type TriplePattern struct {
	Subject   *Term  `parser:"\"(\" @@"`
	Predicate string `parser:"\",\" @String"`
	Object    *Term  `parser:"\",\" @@ \")\""`
}

// WhereClause is the brace-delimited pattern conjunction all KQL/KML
// statements filter against.
type WhereClause struct {
	Patterns []*Pattern `parser:"\"{\" @@+ \"}\""`
}

// OrderByClause sorts FIND results by one bound field.
type OrderByClause struct {
	Var   string  `parser:"\"ORDER\" \"BY\" @Variable"`
	Field *string `parser:"(\".\" @Ident)?"`
	Desc  bool    `parser:"@\"DESC\"?"`
}

// FindStatement is a complete KQL read.
type FindStatement struct {
	Projections []*Projection  `parser:"\"FIND\" \"(\" @@ (\",\" @@)* \")\""`
	Where       *WhereClause   `parser:"\"WHERE\" @@"`
	OrderBy     *OrderByClause `parser:"@@?"`
	Limit       *int           `parser:"(\"LIMIT\" @Number)?"`
	Offset      *int           `parser:"(\"OFFSET\" @Number)?"`
}

// --- KML: UPSERT {...} WITH METADATA {...}

// PropositionSpec is one `(predicate, target)` edge attached to an
// UPSERT capsule's concept head.
type PropositionSpec struct {
	Predicate string `parser:"\"(\" @String"`
	Target    *Term  `parser:"\",\" @@ \")\""`
}

// UpsertConcept is one `CONCEPT ?x {head} SET ATTRIBUTES {...} SET
// PROPOSITIONS {...}` block within an UPSERT capsule.
type UpsertConcept struct {
	Var           string             `parser:"\"CONCEPT\" @Variable"`
	Head          *Object            `parser:"@@"`
	Attributes    *Object            `parser:"(\"SET\" \"ATTRIBUTES\" @@)?"`
	Propositions  []*PropositionSpec `parser:"(\"SET\" \"PROPOSITIONS\" \"{\" @@+ \"}\")?"`
}

// UpsertStatement is a complete KML write capsule: one or more concept
// blocks sharing one transaction and one metadata record (spec.md §4.5).
type UpsertStatement struct {
	Concepts []*UpsertConcept `parser:"\"UPSERT\" \"{\" @@+ \"}\""`
	Metadata *Object          `parser:"(\"WITH\" \"METADATA\" @@)?"`
}

// DeleteConceptStatement removes a concept, optionally cascading to
// every proposition mentioning it (spec.md §4.5 `DELETE CONCEPT ?x
// [DETACH] WHERE {...}`).
type DeleteConceptStatement struct {
	Var    string       `parser:"\"DELETE\" \"CONCEPT\" @Variable"`
	Detach bool         `parser:"@\"DETACH\"?"`
	Where  *WhereClause `parser:"\"WHERE\" @@"`
}

// DeletePropositionStatement removes the proposition(s) matching Triple,
// further constrained by an optional WHERE clause that binds any
// variables Triple references (spec.md §4.5 `DELETE PROPOSITION (...)
// WHERE {...}`).
type DeletePropositionStatement struct {
	Triple *TriplePattern `parser:"\"DELETE\" \"PROPOSITION\" @@"`
	Where  *WhereClause   `parser:"(\"WHERE\" @@)?"`
}

// --- META: DESCRIBE {...}

// DescribeStatement names the thing a META statement introspects. Exactly one
// field is set.
type DescribeStatement struct {
	ConceptTypes     bool    `parser:"\"DESCRIBE\" \"{\" (  @(\"CONCEPT\" \"TYPES\")"`
	PropositionTypes bool    `parser:" | @(\"PROPOSITION\" \"TYPES\")"`
	Primer           bool    `parser:" | @\"PRIMER\""`
	ConceptTypeName  *string `parser:" | \"CONCEPT\" \"TYPE\" @String )  \"}\""`
}
