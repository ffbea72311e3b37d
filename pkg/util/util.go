package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/token"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var (
	sourceFiles []SourceFileRecord

	// Stderr receives every diagnostic. Exit is called by Error.
	Stderr io.Writer = os.Stderr
	Exit             = os.Exit

	// Color enables ANSI colors in diagnostics.
	Color = true
)

// SetSourceFiles stores the source code for all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

func paint(code, s string) string {
	if !Color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// printErrorLine prints the source line and a caret under the token
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), paint("32", caret))
}

func report(kind, color string, tok token.Token, format string, args ...any) {
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Stderr, "%s:%d:%d: %s ", filename, line, col, paint(color, kind+":"))
	fmt.Fprintf(Stderr, format, args...)
	fmt.Fprintln(Stderr)
	printErrorLine(Stderr, tok)
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...any) {
	report("error", "31", tok, format, args...)
	Exit(1)
}

// Report prints a formatted error message without exiting; the caller is
// responsible for recording the failure.
func Report(tok token.Token, format string, args ...any) {
	report("error", "31", tok, format, args...)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...any) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	report("warning", "33", tok, format+" [-W%s]", append(args, cfg.Warnings[wt].Name)...)
}
