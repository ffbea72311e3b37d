package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/badgermind/scriptc/pkg/cli"
	"github.com/badgermind/scriptc/pkg/compiler"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/peterh/liner"
)

const (
	prompt             = "script> "
	continuationPrompt = "   ...> "
)

var replCommands = []string{":format ", ":pointer-width ", ":stats", ":help", ":quit"}

// runREPL reads statements interactively, compiles each complete input on
// its own and prints the result in the current format.
func runREPL(cfg *config.Config, in *os.File, out io.Writer) error {
	if !cli.IsTerminal(in) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		var matches []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, l) {
				matches = append(matches, c)
			}
		}
		return matches
	})

	historyFile := filepath.Join(os.TempDir(), ".scriptc_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, "Type statements such as (Light color:(* 2 base)); ':help' lists commands.")

	var input strings.Builder
	showStats := false
	for {
		p := prompt
		if input.Len() > 0 {
			p = continuationPrompt
		}
		text, err := line.Prompt(p)
		if err == liner.ErrPromptAborted {
			input.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(text)
		if input.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			if trimmed == ":quit" {
				return nil
			}
			if trimmed == ":stats" {
				showStats = !showStats
				fmt.Fprintf(out, "stats %v\n", showStats)
				continue
			}
			if err := replCommand(cfg, trimmed, out); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}
		if input.Len() == 0 && trimmed == "" {
			continue
		}

		input.WriteString(text)
		input.WriteByte('\n')
		if parenDepth(input.String()) > 0 {
			continue
		}

		source := input.String()
		input.Reset()
		line.AppendHistory(strings.TrimSpace(source))

		res, err := compileInput(cfg, source)
		if err != nil {
			if err != compiler.ErrInvalidInput {
				fmt.Fprintln(out, err)
			}
			continue
		}
		if showStats && cfg.IsFeatureEnabled(config.FeatOptimize) {
			fmt.Fprintln(out, res.Stats)
		}
		if cfg.Format == config.FormatBinary || cfg.Compress != config.CompressNone {
			fmt.Fprint(out, hex.Dump(res.Output))
		} else {
			fmt.Fprint(out, string(res.Output))
		}
	}
}

// compileInput compiles one REPL entry. Directives in the entry only apply
// to that entry, so it runs against a copy of the session config.
func compileInput(cfg *config.Config, source string) (*compiler.Result, error) {
	return compiler.Compile([]compiler.Source{{Name: "<repl>", Content: []byte(source)}}, cfg.Clone())
}

func replCommand(cfg *config.Config, cmd string, out io.Writer) error {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":format":
		return cfg.SetFormat(arg)
	case ":pointer-width":
		bits, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid pointer width '%s'", arg)
		}
		return cfg.SetPointerWidth(bits)
	case ":help":
		fmt.Fprintln(out, ":format binary|html|tree   select the output format")
		fmt.Fprintln(out, ":pointer-width 32|64       select the binary pointer width")
		fmt.Fprintln(out, ":stats                     toggle deduplication statistics")
		fmt.Fprintln(out, ":quit                      leave the session")
		return nil
	}
	return fmt.Errorf("unknown command '%s'", name)
}

// parenDepth returns how many parentheses are still open in src, ignoring
// those inside strings and comments.
func parenDepth(src string) int {
	depth := 0
	inString, inComment := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == ';':
			inComment = true
		case c == '"':
			inString = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth
}
