package lexer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type lexed struct {
	Type  token.Type
	Value string
}

func lex(t *testing.T, cfg *config.Config, src string) ([]lexed, *Lexer, string) {
	t.Helper()
	var diag bytes.Buffer
	old := util.Stderr
	util.Stderr, util.Color = &diag, false
	t.Cleanup(func() { util.Stderr = old })

	l := NewLexer([]rune(src), 0, cfg)
	var out []lexed
	for _, tok := range l.Tokenize() {
		out = append(out, lexed{tok.Type, tok.Value})
	}
	return out, l, diag.String()
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []lexed
	}{
		{
			name: "statement",
			src:  "(Light color:base)",
			want: []lexed{
				{token.LParen, ""}, {token.Ident, "Light"}, {token.Ident, "color"}, {token.Colon, ""},
				{token.Ident, "base"}, {token.RParen, ""}, {token.EOF, ""},
			},
		},
		{
			name: "operators",
			src:  "(+ 1 2)(- x)(* a b)(/ a b)(| d)",
			want: []lexed{
				{token.LParen, ""}, {token.Plus, ""}, {token.Number, "1"}, {token.Number, "2"}, {token.RParen, ""},
				{token.LParen, ""}, {token.Minus, ""}, {token.Ident, "x"}, {token.RParen, ""},
				{token.LParen, ""}, {token.Star, ""}, {token.Ident, "a"}, {token.Ident, "b"}, {token.RParen, ""},
				{token.LParen, ""}, {token.Slash, ""}, {token.Ident, "a"}, {token.Ident, "b"}, {token.RParen, ""},
				{token.LParen, ""}, {token.Pipe, ""}, {token.Ident, "d"}, {token.RParen, ""},
				{token.EOF, ""},
			},
		},
		{
			name: "numbers",
			src:  "0 12 3.25 .5 1e3 2.5E-2 0x1F",
			want: []lexed{
				{token.Number, "0"}, {token.Number, "12"}, {token.Number, "3.25"}, {token.Number, ".5"},
				{token.Number, "1e3"}, {token.Number, "2.5E-2"}, {token.Number, "0x1F"}, {token.EOF, ""},
			},
		},
		{
			name: "strings and binary",
			src:  `"a\"b\n" #00ff`,
			want: []lexed{{token.String, "a\"b\n"}, {token.Binary, "00ff"}, {token.EOF, ""}},
		},
		{
			name: "comments are skipped",
			src:  "; leading\n(A) ; trailing\n",
			want: []lexed{{token.LParen, ""}, {token.Ident, "A"}, {token.RParen, ""}, {token.EOF, ""}},
		},
		{
			name: "directive",
			src:  "; [script]: -Wall -Fno-optimize\n(A)",
			want: []lexed{
				{token.Directive, "-Wall -Fno-optimize"}, {token.LParen, ""}, {token.Ident, "A"}, {token.RParen, ""}, {token.EOF, ""},
			},
		},
		{
			name: "dotted identifier",
			src:  "mesh.lod0",
			want: []lexed{{token.Ident, "mesh.lod0"}, {token.EOF, ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, l, diag := lex(t, config.NewConfig(), tt.src)
			if l.Errors != 0 {
				t.Fatalf("unexpected errors:\n%s", diag)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	l := NewLexer([]rune("(A\n  x:12)"), 3, config.NewConfig())
	toks := l.Tokenize()
	want := []token.Token{
		{Type: token.LParen, FileIndex: 3, Line: 1, Column: 1, Len: 1},
		{Type: token.Ident, Value: "A", FileIndex: 3, Line: 1, Column: 2, Len: 1},
		{Type: token.Ident, Value: "x", FileIndex: 3, Line: 2, Column: 3, Len: 1},
		{Type: token.Colon, FileIndex: 3, Line: 2, Column: 4, Len: 1},
		{Type: token.Number, Value: "12", FileIndex: 3, Line: 2, Column: 5, Len: 2},
		{Type: token.RParen, FileIndex: 3, Line: 2, Column: 7, Len: 1},
	}
	if diff := cmp.Diff(want, toks, cmpopts.IgnoreSliceElements(func(tok token.Token) bool { return tok.Type == token.EOF })); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestDegreeSuffix(t *testing.T) {
	l := NewLexer([]rune("90deg"), 0, config.NewConfig())
	tok := l.Next()
	if tok.Type != token.Number || tok.Value != "90" || tok.Scale != config.Degrees {
		t.Errorf("got %+v, want number 90 with degree scale", tok)
	}

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatDegrees, false)
	_, l, diag := lex(t, cfg, "90deg")
	if l.Errors != 1 || !strings.Contains(diag, "Unit suffixes are not enabled") {
		t.Errorf("expected a disabled-feature error, got %d errors:\n%s", l.Errors, diag)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"bad suffix", "12px", "Invalid suffix 'px'"},
		{"unterminated string", `"abc`, "Unterminated string literal"},
		{"bad binary digit", "#12zz", "Invalid character 'z'"},
		{"stray character", "@", "Unexpected character"},
		{"exponent without digits", "1e+", "exponent has no digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, l, diag := lex(t, config.NewConfig(), tt.src)
			if l.Errors == 0 {
				t.Fatalf("%q: expected an error", tt.src)
			}
			if !strings.Contains(diag, tt.msg) {
				t.Errorf("%q: diagnostics do not mention %q:\n%s", tt.src, tt.msg, diag)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ApplyFlag("-Wall")

	_, l, diag := lex(t, cfg, `"a\q" #abc`)
	if l.Errors != 0 {
		t.Fatalf("unexpected errors:\n%s", diag)
	}
	for _, want := range []string{"[-Wu-esc]", "[-Wodd-binary]"} {
		if !strings.Contains(diag, want) {
			t.Errorf("missing warning %s in:\n%s", want, diag)
		}
	}
}

func TestCCommentsAndDirectiveSwitches(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatCComments, true)
	got, _, _ := lex(t, cfg, "// note\n(A)")
	want := []lexed{{token.LParen, ""}, {token.Ident, "A"}, {token.RParen, ""}, {token.EOF, ""}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("c-comments mismatch (-want +got):\n%s", diff)
	}

	cfg = config.NewConfig()
	cfg.SetFeature(config.FeatNoDirectives, true)
	got, _, _ = lex(t, cfg, "; [script]: -Wall\n")
	if diff := cmp.Diff([]lexed{{token.EOF, ""}}, got); diff != "" {
		t.Errorf("no-directives mismatch (-want +got):\n%s", diff)
	}
}

func TestQuietLexer(t *testing.T) {
	var diag bytes.Buffer
	old := util.Stderr
	util.Stderr = &diag
	defer func() { util.Stderr = old }()

	l := NewLexer([]rune("@ 12px"), 0, config.NewConfig())
	l.Quiet = true
	l.Tokenize()
	if l.Errors != 2 {
		t.Errorf("Errors = %d, want 2", l.Errors)
	}
	if diag.Len() != 0 {
		t.Errorf("quiet lexer wrote diagnostics:\n%s", diag.String())
	}
}
