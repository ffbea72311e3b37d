package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/badgermind/scriptc/pkg/cli"
	"github.com/badgermind/scriptc/pkg/codegen"
	"github.com/badgermind/scriptc/pkg/compiler"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/optimizer"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
	"github.com/cespare/xxhash/v2"
)

func main() {
	if err := newApp().Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp("scriptc")
	app.Synopsis = "[options] <input.script> ..."
	app.Description = "Compiles statement scripts into relocatable binary blobs for the engine runtime, or into an indented HTML or text listing for inspection."
	app.Authors = []string{"Badgermind"}
	app.Repository = "<https://github.com/badgermind/scriptc>"

	var (
		outFile     string
		format      string
		compress    string
		configPath  string
		pointerBits int
		checksum    bool
		verify      bool
		verbose     bool
		interactive bool
		wall        bool
		pedantic    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "-", "Place the output into <file>; '-' writes to standard output.", "file")
	fs.String(&format, "format", "f", "", "Output format: binary, html or tree (default binary).", "format")
	fs.Int(&pointerBits, "pointer-width", "p", 0, "Pointer width of the binary format in bits: 32 or 64 (default 32).", "bits")
	fs.String(&compress, "compress", "z", "", "Wrap the output in a container: none, gzip or zstd (default none).", "method")
	fs.String(&configPath, "config", "c", "", "Read settings from a YAML file (default "+config.DefaultFile+" if present).", "file")
	fs.Bool(&checksum, "checksum", "", false, "Print the xxhash64 of the output to standard error.")
	fs.Bool(&verify, "verify", "", false, "Re-read the relocation table of a binary output and check it.")
	fs.Bool(&verbose, "verbose", "v", false, "Print the pipeline stages as they run.")
	fs.Bool(&interactive, "interactive", "i", false, "Start an interactive session.")
	fs.Bool(&wall, "Wall", "", false, "Enable most warnings.")
	fs.Bool(&pedantic, "pedantic", "", false, "Enable every warning.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if !cli.IsTerminal(os.Stderr) {
			util.Color = false
		}

		// Settings are layered: config file, then flags, then directives.
		if err := cfg.LoadFile(configPath); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		if format != "" {
			if err := cfg.SetFormat(format); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}
		if pointerBits != 0 {
			if err := cfg.SetPointerWidth(pointerBits); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}
		if compress != "" {
			if err := cfg.SetCompress(compress); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}
		if wall {
			cfg.ApplyFlag("-Wall")
		}
		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if interactive {
			return runREPL(cfg, os.Stdin, app.Stdout)
		}
		if len(inputFiles) == 0 {
			util.Error(token.Token{FileIndex: -1}, "no input files specified.")
		}

		logf := func(format string, args ...any) {
			if verbose {
				fmt.Fprintf(app.Stderr, format+"\n", args...)
			}
		}

		sources := readSources(inputFiles)
		logf("Scanning %d source file(s) for directives...", len(sources))
		if err := compiler.ScanDirectives(sources, cfg); err != nil {
			util.Exit(1)
		}

		logf("Parsing...")
		doc, err := compiler.Parse(sources, cfg)
		if err != nil {
			util.Exit(1)
		}

		if cfg.IsFeatureEnabled(config.FeatOptimize) {
			logf("Optimizing expressions...")
			logf("  %s", optimizer.Deduplicate(doc))
		}

		logf("Emitting %s output (%d-bit pointers)...", cfg.Format, cfg.PointerBits())
		output, err := compiler.Emit(doc, cfg)
		if err != nil {
			var emitErr *codegen.EmitError
			if errors.As(err, &emitErr) {
				util.Error(emitErr.Tok, "%s", emitErr.Msg)
			}
			util.Error(token.Token{FileIndex: -1}, "code generation failed: %v", err)
		}

		if verify && cfg.Format == config.FormatBinary {
			logf("Verifying relocation table...")
			if err := verifyBinary(output, cfg); err != nil {
				util.Error(token.Token{FileIndex: -1}, "verification failed: %v", err)
			}
		}

		if err := writeOutput(outFile, output, app.Stdout); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		if checksum {
			fmt.Fprintf(app.Stderr, "%016x  %s\n", xxhash.Sum64(output), outFile)
		}
		logf("Done: %d bytes.", len(output))
		return nil
	}

	return app
}

func readSources(paths []string) []compiler.Source {
	sources := make([]compiler.Source, 0, len(paths))
	for _, path := range paths {
		var content []byte
		var err error
		if path == "-" {
			content, err = io.ReadAll(os.Stdin)
			path = "<stdin>"
		} else {
			content, err = os.ReadFile(path)
		}
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
		}
		sources = append(sources, compiler.Source{Name: path, Content: content})
	}
	return sources
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "-" || path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}

const verifyBase = 1 << 16

// verifyBinary checks that every recorded pointer field of the blob points
// backwards into the blob, which holds for anything EmitBinary writes.
func verifyBinary(output []byte, cfg *config.Config) error {
	blob, err := compiler.Decompress(output, cfg.Compress)
	if err != nil {
		return err
	}
	positions, root, err := codegen.ReadPointerTable(blob, cfg.PointerSize)
	if err != nil {
		return err
	}
	relocated, err := codegen.Relocate(blob, cfg.PointerSize, verifyBase)
	if err != nil {
		return err
	}
	for _, at := range positions {
		var v uint64
		for i := cfg.PointerSize - 1; i >= 0; i-- {
			v = v<<8 | uint64(relocated[at+uint64(i)])
		}
		if v -= verifyBase; v == 0 || v >= at {
			return fmt.Errorf("pointer at offset %d refers to %d", at, v)
		}
	}
	if len(blob) > len(codegen.Magic) && root < uint64(len(codegen.Magic)) {
		return fmt.Errorf("root statement offset %d lies inside the header", root)
	}
	return nil
}
