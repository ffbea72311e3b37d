package optimizer

import (
	"bytes"
	"testing"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/lexer"
	"github.com/badgermind/scriptc/pkg/parser"
	"github.com/badgermind/scriptc/pkg/util"
	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, src string) *ast.Document {
	t.Helper()
	var diag bytes.Buffer
	old := util.Stderr
	util.Stderr = &diag
	t.Cleanup(func() { util.Stderr = old })

	cfg := config.NewConfig()
	doc := parser.NewParser(lexer.NewLexer([]rune(src), 0, cfg).Tokenize(), ast.NewArena(), cfg).Parse()
	if doc.Error {
		t.Fatalf("parse %q:\n%s", src, diag.String())
	}
	return doc
}

// param returns the expression held by the named parameter of the n-th
// top-level statement.
func param(t *testing.T, doc *ast.Document, n int, name string) ast.ExprID {
	t.Helper()
	s := doc.Statements()[n]
	for _, p := range doc.Arena.Params(s) {
		if doc.Arena.Param(p).Name == name {
			return doc.Arena.Param(p).Expr
		}
	}
	t.Fatalf("statement %d has no parameter %q", n, name)
	return 0
}

func TestSharedLiteral(t *testing.T) {
	doc := parse(t, "(A x:1 y:1) (B x:1 y:1)")
	stats := Deduplicate(doc)

	first := param(t, doc, 0, "x")
	for _, ref := range []struct {
		stmt int
		name string
	}{{0, "y"}, {1, "x"}, {1, "y"}} {
		if got := param(t, doc, ref.stmt, ref.name); got != first {
			t.Errorf("statement %d %s holds %d, want canonical %d", ref.stmt, ref.name, got, first)
		}
	}
	want := Stats{Scans: 2, Merges: 3, Tracked: 4, Surviving: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestEquivalenceClasses(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		surviving int
	}{
		{"distinct leaves", `(A a:1 b:2 c:"1" d:x e:#01)`, 5},
		{"numeric text is compared literally", "(A a:1 b:1.0 c:0x1)", 3},
		{"scale distinguishes", "(A a:90 b:90deg c:90deg)", 2},
		{"strings and identifiers differ", `(A a:x b:"x")`, 2},
		{"add commutes", "(A a:(+ x y) b:(+ y x))", 3},
		{"multiply commutes", "(A a:(* x 2) b:(* 2 x))", 3},
		{"subtract does not commute", "(A a:(- x y) b:(- y x))", 4},
		{"divide does not commute", "(A a:(/ x y) b:(/ y x))", 4},
		{"nested operators merge bottom up", "(A a:(+ (* x 2) 1) b:(+ 1 (* 2 x)))", 5},
		{"unary kinds", "(A a:(- x) b:(- x) c:(| x) d:(x))", 4},
		{"nested statements merge", "(A a:(S v:1) b:(S v:1))", 2},
		{"nested statements with other values stay", "(A a:(S v:1) b:(S v:2))", 4},
		{"parameter names matter", "(A a:(S v:1) b:(S w:1))", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.src)
			stats := Deduplicate(doc)
			if stats.Surviving != tt.surviving {
				t.Errorf("Surviving = %d, want %d (%s)", stats.Surviving, tt.surviving, stats)
			}
			if got := len(doc.Arena.Reachable(doc.Root)); got != tt.surviving {
				t.Errorf("reachable expressions = %d, want %d", got, tt.surviving)
			}
		})
	}
}

func TestCommutativeMergeSharesOperands(t *testing.T) {
	doc := parse(t, "(A a:(+ x y) b:(+ y x))")
	Deduplicate(doc)
	a, b := param(t, doc, 0, "a"), param(t, doc, 0, "b")
	if a != b {
		t.Fatalf("a and b were not merged: %d vs %d", a, b)
	}
	// The canonical node keeps its own operand order.
	e := doc.Arena.Expr(a)
	if doc.Arena.Expr(e.Lhs).Text != "x" || doc.Arena.Expr(e.Rhs).Text != "y" {
		t.Errorf("canonical operands are %q, %q", doc.Arena.Expr(e.Lhs).Text, doc.Arena.Expr(e.Rhs).Text)
	}
}

func TestIdempotent(t *testing.T) {
	src := "(A a:(+ (* x 2) 1) b:(+ 1 (* 2 x)) c:(S v:(- x)))\n(B a:(S v:(- x)) b:1 c:x)"
	doc := parse(t, src)
	first := Deduplicate(doc)
	before := doc.Arena.Reachable(doc.Root)

	second := Deduplicate(doc)
	if second.Merges != 0 {
		t.Errorf("second run merged %d expressions", second.Merges)
	}
	if second.Surviving != first.Surviving {
		t.Errorf("Surviving changed from %d to %d", first.Surviving, second.Surviving)
	}
	if diff := cmp.Diff(before, doc.Arena.Reachable(doc.Root)); diff != "" {
		t.Errorf("second run changed the graph (-before +after):\n%s", diff)
	}
}

func TestNoTwoSurvivorsEqual(t *testing.T) {
	doc := parse(t, "(A a:(+ (+ 1 2) (+ 2 1)) b:(+ (+ 1 2) 3) c:(* 3 (+ 2 1)) d:(- 3))")
	Deduplicate(doc)
	tr := collect(doc)
	live := doc.Arena.Reachable(doc.Root)
	for i, x := range live {
		for _, y := range live[i+1:] {
			if tr.equal(x, y) {
				t.Errorf("expressions %d and %d are equal after deduplication", x, y)
			}
		}
	}
}

func TestEmptyDocument(t *testing.T) {
	doc := ast.NewDocument(ast.NewArena())
	if diff := cmp.Diff(Stats{}, Deduplicate(doc)); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}
