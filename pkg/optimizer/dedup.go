// Package optimizer merges semantically identical expressions so that every
// equivalence class is represented by a single canonical node.
package optimizer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/cespare/xxhash/v2"
)

// Stats summarizes one Deduplicate run.
type Stats struct {
	Scans     int
	Merges    int
	Tracked   int
	Surviving int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d expressions, %d merged in %d scans, %d remain", s.Tracked, s.Merges, s.Scans, s.Surviving)
}

type tracker struct {
	arena *ast.Arena
	slots map[ast.ExprID][]ast.Slot
	order []ast.ExprID
	buf   []byte
}

// Deduplicate rewrites doc in place until no two reachable expressions are
// equal. Equality of composite expressions compares operand handles, so the
// pass repeats until a full scan makes no merge. The lowest handle of each
// class survives; merged-away nodes stay in the arena unreferenced.
func Deduplicate(doc *ast.Document) Stats {
	if doc == nil || doc.Root == 0 {
		return Stats{}
	}
	t := collect(doc)
	stats := Stats{Tracked: len(t.order)}
	for {
		stats.Scans++
		merged := t.scan()
		stats.Merges += merged
		if merged == 0 {
			break
		}
	}
	stats.Surviving = len(doc.Arena.Reachable(doc.Root))
	return stats
}

// collect records every reachable expression with the slots referring to it.
// Each slot holding an expression is listed in that expression's set; merges
// keep this true.
func collect(doc *ast.Document) *tracker {
	t := &tracker{
		arena: doc.Arena,
		slots: make(map[ast.ExprID][]ast.Slot),
		buf:   make([]byte, 0, 64),
	}
	doc.Arena.VisitSlots(doc.Root, func(slot ast.Slot, id ast.ExprID) bool {
		_, seen := t.slots[id]
		t.slots[id] = append(t.slots[id], slot)
		if !seen {
			t.order = append(t.order, id)
		}
		return !seen
	})
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

// scan buckets live expressions by fingerprint and merges equal pairs within
// each bucket. It returns the number of merges made.
func (t *tracker) scan() int {
	buckets := make(map[uint64][]ast.ExprID)
	var keys []uint64
	for _, id := range t.order {
		if len(t.slots[id]) == 0 {
			continue
		}
		h := t.fingerprint(id)
		if _, ok := buckets[h]; !ok {
			keys = append(keys, h)
		}
		buckets[h] = append(buckets[h], id)
	}

	merges := 0
	for _, h := range keys {
		ids := buckets[h]
		for i, a := range ids {
			if len(t.slots[a]) == 0 {
				continue
			}
			for _, b := range ids[i+1:] {
				if len(t.slots[b]) == 0 || !t.equal(a, b) {
					continue
				}
				t.redirect(b, a)
				merges++
			}
		}
	}
	return merges
}

// redirect points every slot holding from at to and hands them over.
func (t *tracker) redirect(from, to ast.ExprID) {
	for _, slot := range t.slots[from] {
		t.arena.Store(slot, to)
	}
	t.slots[to] = append(t.slots[to], t.slots[from]...)
	t.slots[from] = nil
}

func (t *tracker) equal(a, b ast.ExprID) bool {
	x, y := t.arena.Expr(a), t.arena.Expr(b)
	if x.Kind != y.Kind {
		return false
	}
	switch {
	case x.Kind == ast.Numeric:
		return x.Text == y.Text && x.Scale == y.Scale
	case x.Kind.IsLeaf():
		return x.Text == y.Text
	case x.Kind == ast.StatementExpr:
		return t.sameStatement(x.Stmt, y.Stmt)
	case x.Kind.IsUnary():
		return x.Lhs == y.Lhs
	case x.Kind.IsCommutative():
		return (x.Lhs == y.Lhs && x.Rhs == y.Rhs) || (x.Lhs == y.Rhs && x.Rhs == y.Lhs)
	default:
		return x.Lhs == y.Lhs && x.Rhs == y.Rhs
	}
}

// sameStatement compares names, chained statements and parameter lists by
// name and current expression handle.
func (t *tracker) sameStatement(a, b ast.StmtID) bool {
	if a == b {
		return true
	}
	sa, sb := t.arena.Stmt(a), t.arena.Stmt(b)
	if sa.Name != sb.Name || sa.Next != sb.Next {
		return false
	}
	pa, pb := sa.Params, sb.Params
	for pa != 0 && pb != 0 {
		x, y := t.arena.Param(pa), t.arena.Param(pb)
		if x.Name != y.Name || x.Expr != y.Expr {
			return false
		}
		pa, pb = x.Next, y.Next
	}
	return pa == 0 && pb == 0
}

// fingerprint hashes exactly the fields equal compares, so equal expressions
// always share a bucket.
func (t *tracker) fingerprint(id ast.ExprID) uint64 {
	e := t.arena.Expr(id)
	b := append(t.buf[:0], byte(e.Kind))

	switch {
	case e.Kind.IsLeaf():
		b = append(b, e.Text...)
		b = append(b, 0)
		if e.Kind == ast.Numeric {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(e.Scale))
		}
	case e.Kind == ast.StatementExpr:
		s := t.arena.Stmt(e.Stmt)
		b = append(b, s.Name...)
		b = append(b, 0)
		b = binary.LittleEndian.AppendUint32(b, uint32(s.Next))
		for p := s.Params; p != 0; p = t.arena.Param(p).Next {
			param := t.arena.Param(p)
			b = append(b, param.Name...)
			b = append(b, 0)
			b = binary.LittleEndian.AppendUint32(b, uint32(param.Expr))
		}
	case e.Kind.IsUnary():
		b = binary.LittleEndian.AppendUint32(b, uint32(e.Lhs))
	default:
		lhs, rhs := e.Lhs, e.Rhs
		if e.Kind.IsCommutative() && rhs < lhs {
			lhs, rhs = rhs, lhs
		}
		b = binary.LittleEndian.AppendUint32(b, uint32(lhs))
		b = binary.LittleEndian.AppendUint32(b, uint32(rhs))
	}

	t.buf = b
	return xxhash.Sum64(b)
}
