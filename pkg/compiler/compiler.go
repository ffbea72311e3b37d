// Package compiler runs the whole pipeline from script sources to emitted
// output: directive scan, lexing, parsing, deduplication, emission and
// optional compression.
package compiler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/codegen"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/lexer"
	"github.com/badgermind/scriptc/pkg/optimizer"
	"github.com/badgermind/scriptc/pkg/parser"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
)

// ErrInvalidInput is returned when lexing, parsing or a directive failed.
// The individual problems have already been reported as diagnostics.
var ErrInvalidInput = errors.New("input has errors")

// Source is one named input file.
type Source struct {
	Name    string
	Content []byte
}

// Result is what Compile produced.
type Result struct {
	Doc    *ast.Document
	Stats  optimizer.Stats
	Output []byte
}

// ScanDirectives applies every in-source directive of sources to cfg. It
// runs before the real lexing pass because directives may switch lexer
// features such as c-comments.
func ScanDirectives(sources []Source, cfg *config.Config) error {
	failed := false
	for i, src := range sources {
		l := lexer.NewLexer([]rune(string(src.Content)), i, cfg)
		l.Quiet = true
		for tok := l.Next(); tok.Type != token.EOF; tok = l.Next() {
			if tok.Type != token.Directive {
				continue
			}
			if err := cfg.ProcessDirectiveFlags(tok.Value); err != nil {
				util.Report(tok, "invalid directive: %v", err)
				failed = true
			}
		}
	}
	if failed {
		return ErrInvalidInput
	}
	return nil
}

// Parse lexes and parses sources as one statement list. The returned
// document is usable for inspection even when an error is returned.
func Parse(sources []Source, cfg *config.Config) (*ast.Document, error) {
	records := make([]util.SourceFileRecord, 0, len(sources))
	var tokens []token.Token
	lexErrors := 0

	for i, src := range sources {
		runes := []rune(string(src.Content))
		records = append(records, util.SourceFileRecord{Name: src.Name, Content: runes})
		l := lexer.NewLexer(runes, i, cfg)
		for tok := l.Next(); tok.Type != token.EOF; tok = l.Next() {
			tokens = append(tokens, tok)
		}
		lexErrors += l.Errors
	}
	util.SetSourceFiles(records)
	tokens = append(tokens, token.Token{Type: token.EOF, FileIndex: max(len(sources)-1, 0)})

	doc := parser.NewParser(tokens, ast.NewArena(), cfg).Parse()
	if lexErrors > 0 || doc.Error {
		return doc, ErrInvalidInput
	}
	return doc, nil
}

// Emit serializes doc in cfg.Format and applies cfg.Compress.
func Emit(doc *ast.Document, cfg *config.Config) ([]byte, error) {
	backend, err := codegen.SelectBackend(cfg.Format)
	if err != nil {
		return nil, err
	}
	var out *bytes.Buffer
	if out, err = backend.Generate(doc, cfg); err != nil {
		return nil, err
	}
	return Compress(out.Bytes(), cfg.Compress)
}

// Compile runs the full pipeline over sources.
func Compile(sources []Source, cfg *config.Config) (*Result, error) {
	if err := ScanDirectives(sources, cfg); err != nil {
		return nil, err
	}
	doc, err := Parse(sources, cfg)
	if err != nil {
		return &Result{Doc: doc}, err
	}

	res := &Result{Doc: doc}
	if cfg.IsFeatureEnabled(config.FeatOptimize) {
		res.Stats = optimizer.Deduplicate(doc)
	}
	if res.Output, err = Emit(doc, cfg); err != nil {
		return res, fmt.Errorf("%s output: %w", cfg.Format, err)
	}
	return res, nil
}
