package ast

import (
	"github.com/badgermind/scriptc/pkg/token"
)

// Arena allocates nodes from growable slices. Pointers returned by Expr,
// Stmt and Param are only valid until the next allocation; hold handles
// across allocations instead. Index 0 of every slice is a placeholder so the
// zero handle never names a node.
type Arena struct {
	exprs  []Expression
	stmts  []Statement
	params []Parameter
}

func NewArena() *Arena {
	return &Arena{
		exprs:  make([]Expression, 1, 256),
		stmts:  make([]Statement, 1, 64),
		params: make([]Parameter, 1, 128),
	}
}

// Reset clears the arena for reuse, keeping backing memory allocated.
func (a *Arena) Reset() {
	a.exprs = a.exprs[:1]
	a.stmts = a.stmts[:1]
	a.params = a.params[:1]
}

// NumExprs, NumStmts and NumParams return the number of allocated nodes,
// live or not. Valid handles range from 1 to the returned count.
func (a *Arena) NumExprs() int  { return len(a.exprs) - 1 }
func (a *Arena) NumStmts() int  { return len(a.stmts) - 1 }
func (a *Arena) NumParams() int { return len(a.params) - 1 }

func (a *Arena) Expr(id ExprID) *Expression { return &a.exprs[id] }
func (a *Arena) Stmt(id StmtID) *Statement  { return &a.stmts[id] }
func (a *Arena) Param(id ParamID) *Parameter {
	return &a.params[id]
}

func (a *Arena) newExpr(e Expression) ExprID {
	a.exprs = append(a.exprs, e)
	return ExprID(len(a.exprs) - 1)
}

func (a *Arena) NewNumeric(tok token.Token, text string, scale float64) ExprID {
	return a.newExpr(Expression{Kind: Numeric, Tok: tok, Text: text, Scale: scale})
}

func (a *Arena) NewString(tok token.Token, value string) ExprID {
	return a.newExpr(Expression{Kind: String, Tok: tok, Text: value})
}

// NewBinary creates a binary literal from its hex digits.
func (a *Arena) NewBinary(tok token.Token, hexDigits string) ExprID {
	return a.newExpr(Expression{Kind: Binary, Tok: tok, Text: hexDigits})
}

func (a *Arena) NewIdentifier(tok token.Token, name string) ExprID {
	return a.newExpr(Expression{Kind: Identifier, Tok: tok, Text: name})
}

// NewStatementExpr wraps a nested statement so it can appear as a value.
func (a *Arena) NewStatementExpr(tok token.Token, s StmtID) ExprID {
	return a.newExpr(Expression{Kind: StatementExpr, Tok: tok, Stmt: s})
}

// NewUnary creates a Paren, Negative or Absolute expression.
func (a *Arena) NewUnary(tok token.Token, kind Kind, operand ExprID) ExprID {
	if !kind.IsUnary() {
		panic("ast: NewUnary called with " + kind.String())
	}
	return a.newExpr(Expression{Kind: kind, Tok: tok, Lhs: operand})
}

// NewBinaryOp creates an Add, Subtract, Multiply or Divide expression.
func (a *Arena) NewBinaryOp(tok token.Token, kind Kind, lhs, rhs ExprID) ExprID {
	if !kind.IsBinary() {
		panic("ast: NewBinaryOp called with " + kind.String())
	}
	return a.newExpr(Expression{Kind: kind, Tok: tok, Lhs: lhs, Rhs: rhs})
}

func (a *Arena) NewStatement(tok token.Token, name string) StmtID {
	a.stmts = append(a.stmts, Statement{Name: name, Tok: tok})
	return StmtID(len(a.stmts) - 1)
}

// AddParam appends a parameter to the end of s's parameter list.
func (a *Arena) AddParam(s StmtID, tok token.Token, name string, e ExprID) ParamID {
	a.params = append(a.params, Parameter{Name: name, Tok: tok, Expr: e})
	p := ParamID(len(a.params) - 1)
	st := a.Stmt(s)
	if st.Params == 0 {
		st.Params = p
	} else {
		a.Param(st.lastParam).Next = p
	}
	st.lastParam = p
	return p
}

// Params returns the parameters of s in insertion order.
func (a *Arena) Params(s StmtID) []ParamID {
	var out []ParamID
	for p := a.Stmt(s).Params; p != 0; p = a.Param(p).Next {
		out = append(out, p)
	}
	return out
}
