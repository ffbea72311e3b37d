// Package ast defines the arena-backed syntax tree of the script language.
//
// Nodes live in slices owned by an Arena and refer to one another through
// integer handles. Handle 0 is the nil handle for every node kind. After
// deduplication several slots may hold the same expression handle, so the
// expression graph is a DAG rather than a tree.
package ast

import (
	"github.com/badgermind/scriptc/pkg/token"
)

type (
	ExprID  int32
	StmtID  int32
	ParamID int32
)

// Kind discriminates the Expression variants.
type Kind uint8

const (
	Numeric Kind = iota
	String
	Binary
	Identifier
	StatementExpr
	Paren
	Negative
	Absolute
	Add
	Subtract
	Multiply
	Divide
)

var kindNames = [...]string{
	Numeric:       "Numeric",
	String:        "String",
	Binary:        "Binary",
	Identifier:    "Identifier",
	StatementExpr: "Statement",
	Paren:         "Paren",
	Negative:      "Negative",
	Absolute:      "Absolute",
	Add:           "Add",
	Subtract:      "Subtract",
	Multiply:      "Multiply",
	Divide:        "Divide",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsLeaf reports whether expressions of kind k carry only text.
func (k Kind) IsLeaf() bool { return k <= Identifier }

// IsUnary reports whether k has a single Lhs operand.
func (k Kind) IsUnary() bool { return k == Paren || k == Negative || k == Absolute }

// IsBinary reports whether k has both Lhs and Rhs operands.
func (k Kind) IsBinary() bool { return k >= Add && k <= Divide }

// IsCommutative reports whether operand order is irrelevant for k.
func (k Kind) IsCommutative() bool { return k == Add || k == Multiply }

type Expression struct {
	Kind Kind
	Tok  token.Token

	// Text holds the numeric token text, the string value, the hex digits of
	// a binary literal or the identifier, depending on Kind.
	Text string
	// Scale multiplies a Numeric at emission time; 0 means unset.
	Scale float64

	Stmt StmtID
	Lhs  ExprID
	Rhs  ExprID
}

type Statement struct {
	Name   string
	Tok    token.Token
	Params ParamID
	Next   StmtID

	lastParam ParamID
}

type Parameter struct {
	Name string
	Tok  token.Token
	Expr ExprID
	Next ParamID
}

// Document is the parse result: the head of the statement list plus the
// arena that owns every node.
type Document struct {
	Arena *Arena
	Root  StmtID
	Error bool

	tail StmtID
}

func NewDocument(arena *Arena) *Document {
	return &Document{Arena: arena}
}

// Append links s at the end of the top-level statement list.
func (d *Document) Append(s StmtID) {
	if d.Root == 0 {
		d.Root = s
	} else {
		d.Arena.Stmt(d.tail).Next = s
	}
	d.tail = s
}

// Statements returns the top-level statements in link order.
func (d *Document) Statements() []StmtID {
	var out []StmtID
	for s := d.Root; s != 0; s = d.Arena.Stmt(s).Next {
		out = append(out, s)
	}
	return out
}
