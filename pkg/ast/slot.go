package ast

import "fmt"

type SlotKind uint8

const (
	SlotParam SlotKind = iota
	SlotLhs
	SlotRhs
)

// Slot names a storage location holding an expression handle: a parameter's
// value or one operand of an expression.
type Slot struct {
	Kind  SlotKind
	Owner int32
}

func ParamSlot(p ParamID) Slot { return Slot{Kind: SlotParam, Owner: int32(p)} }
func LhsSlot(e ExprID) Slot    { return Slot{Kind: SlotLhs, Owner: int32(e)} }
func RhsSlot(e ExprID) Slot    { return Slot{Kind: SlotRhs, Owner: int32(e)} }

func (s Slot) String() string {
	switch s.Kind {
	case SlotParam:
		return fmt.Sprintf("param#%d", s.Owner)
	case SlotLhs:
		return fmt.Sprintf("expr#%d.lhs", s.Owner)
	default:
		return fmt.Sprintf("expr#%d.rhs", s.Owner)
	}
}

func (a *Arena) Load(s Slot) ExprID {
	switch s.Kind {
	case SlotParam:
		return a.Param(ParamID(s.Owner)).Expr
	case SlotLhs:
		return a.Expr(ExprID(s.Owner)).Lhs
	default:
		return a.Expr(ExprID(s.Owner)).Rhs
	}
}

func (a *Arena) Store(s Slot, id ExprID) {
	switch s.Kind {
	case SlotParam:
		a.Param(ParamID(s.Owner)).Expr = id
	case SlotLhs:
		a.Expr(ExprID(s.Owner)).Lhs = id
	default:
		a.Expr(ExprID(s.Owner)).Rhs = id
	}
}

// VisitSlots calls visit for every expression slot reachable from the
// statement chain starting at s, including nested statements. The operands
// of an expression are visited only when visit returns true for it.
func (a *Arena) VisitSlots(s StmtID, visit func(slot Slot, id ExprID) bool) {
	seen := make(map[StmtID]bool)
	var stmtChain func(StmtID)
	var expr func(Slot)

	expr = func(slot Slot) {
		id := a.Load(slot)
		if id == 0 || !visit(slot, id) {
			return
		}
		e := a.Expr(id)
		switch {
		case e.Kind == StatementExpr:
			stmtChain(e.Stmt)
		case e.Kind.IsUnary():
			expr(LhsSlot(id))
		case e.Kind.IsBinary():
			expr(LhsSlot(id))
			expr(RhsSlot(id))
		}
	}

	stmtChain = func(s StmtID) {
		for ; s != 0 && !seen[s]; s = a.Stmt(s).Next {
			seen[s] = true
			for p := a.Stmt(s).Params; p != 0; p = a.Param(p).Next {
				expr(ParamSlot(p))
			}
		}
	}

	stmtChain(s)
}

// Reachable returns the distinct expressions reachable from s in first-visit
// order.
func (a *Arena) Reachable(s StmtID) []ExprID {
	seen := make(map[ExprID]bool)
	var out []ExprID
	a.VisitSlots(s, func(_ Slot, id ExprID) bool {
		if seen[id] {
			return false
		}
		seen[id] = true
		out = append(out, id)
		return true
	})
	return out
}
