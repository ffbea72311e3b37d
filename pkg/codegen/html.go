package codegen

import (
	"bytes"
	"strings"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/config"
	"golang.org/x/net/html"
)

// textBackend pretty-prints the statement graph. With html set the listing
// is wrapped in a minimal document and its text is escaped.
type textBackend struct {
	html bool
}

func NewHTMLBackend() Backend { return &textBackend{html: true} }

// NewTreeBackend returns the plain-text form of the HTML listing.
func NewTreeBackend() Backend { return &textBackend{} }

type printer struct {
	out   *bytes.Buffer
	arena *ast.Arena
	html  bool
	exprs marks
	stmts marks
}

func (b *textBackend) Generate(doc *ast.Document, cfg *config.Config) (*bytes.Buffer, error) {
	var out bytes.Buffer
	if b.html {
		out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<title>")
		out.WriteString(html.EscapeString(cfg.HTMLTitle))
		out.WriteString("</title>\n<style>body { white-space: pre; font-family: monospace; }</style>\n</head>\n<body>")
	}
	if doc != nil && doc.Root != 0 {
		p := &printer{
			out:   &out,
			arena: doc.Arena,
			html:  b.html,
			exprs: newMarks(doc.Arena.NumExprs()),
			stmts: newMarks(doc.Arena.NumStmts()),
		}
		p.statements(doc.Root, 0)
		out.WriteByte('\n')
	}
	if b.html {
		out.WriteString("</body>\n</html>\n")
	}
	return &out, nil
}

func (p *printer) text(s string) {
	if p.html {
		s = html.EscapeString(s)
	}
	p.out.WriteString(s)
}

func (p *printer) indent(level int) {
	for ; level > 0; level-- {
		p.out.WriteByte(' ')
	}
}

// statements prints a chain of sibling statements separated by blank lines.
// Parameter values are indented past their names so nested statements line
// up under the value column.
func (p *printer) statements(id ast.StmtID, level int) {
	var printed []ast.StmtID
	defer func() {
		for _, s := range printed {
			p.stmts.end(int(s))
		}
	}()
	for first := true; id != 0; first = false {
		if !first {
			p.out.WriteString("\n\n")
		}
		if !p.stmts.begin(int(id)) {
			p.out.WriteString("...")
			return
		}
		printed = append(printed, id)
		st := p.arena.Stmt(id)
		p.out.WriteByte('(')
		p.text(st.Name)
		p.out.WriteByte('\n')

		for param := st.Params; param != 0; {
			prm := p.arena.Param(param)
			p.indent(level + 2)
			p.out.WriteByte(' ')
			p.text(prm.Name)
			p.out.WriteString(": ")
			p.expression(prm.Expr, strings.Contains(prm.Name, "URI"), level+4+len(prm.Name))
			if param = prm.Next; param != 0 {
				p.out.WriteByte('\n')
			}
		}
		p.out.WriteByte(')')
		id = st.Next
	}
}

// expression prints one value. Shared subexpressions are printed at every
// use; a node reached again while it is being printed is shown as "...".
func (p *printer) expression(id ast.ExprID, isURI bool, level int) {
	if id == 0 {
		return
	}
	if !p.exprs.begin(int(id)) {
		p.out.WriteString("...")
		return
	}
	defer p.exprs.end(int(id))

	x := p.arena.Expr(id)
	switch x.Kind {
	case ast.Numeric, ast.Identifier:
		p.text(x.Text)
	case ast.String:
		p.out.WriteByte('"')
		if isURI && p.html {
			p.out.WriteString(`<a href="`)
			p.text(x.Text)
			p.out.WriteString(`">`)
			p.text(x.Text)
			p.out.WriteString(`</a>`)
		} else {
			p.text(x.Text)
		}
		p.out.WriteByte('"')
	case ast.Binary:
		p.text("<Binary Data>")
	case ast.StatementExpr:
		p.statements(x.Stmt, level+1)
	case ast.Paren:
		p.out.WriteByte('(')
		p.expression(x.Lhs, false, level+1)
		p.out.WriteByte(')')
	case ast.Negative:
		p.out.WriteByte('-')
		p.expression(x.Lhs, false, level+1)
	case ast.Absolute:
		p.out.WriteByte('|')
		p.expression(x.Lhs, false, level+1)
		p.out.WriteByte('|')
	case ast.Add, ast.Subtract, ast.Multiply, ast.Divide:
		p.expression(x.Lhs, false, level+1)
		p.out.WriteString(operatorText[x.Kind])
		p.expression(x.Rhs, false, level+1)
	}
}

var operatorText = map[ast.Kind]string{
	ast.Add:      " + ",
	ast.Subtract: " - ",
	ast.Multiply: " * ",
	ast.Divide:   " / ",
}
