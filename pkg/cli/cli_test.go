package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type options struct {
	out     string
	format  string
	width   int
	verbose bool
	wall    bool
}

func newTestSet(o *options) *FlagSet {
	fs := NewFlagSet("test")
	fs.String(&o.out, "output", "o", "-", "Output file", "file")
	fs.String(&o.format, "format", "f", "binary", "Output format", "name")
	fs.Int(&o.width, "pointer-width", "p", 0, "Pointer width", "bits")
	fs.Bool(&o.verbose, "verbose", "v", false, "Verbose")
	fs.Bool(&o.wall, "Wall", "", false, "All warnings")
	return fs
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
		rest []string
	}{
		{
			name: "defaults",
			args: []string{"a.script"},
			want: options{out: "-", format: "binary"},
			rest: []string{"a.script"},
		},
		{
			name: "long forms",
			args: []string{"--output=out.bin", "--format", "html", "--pointer-width=64", "--verbose", "x"},
			want: options{out: "out.bin", format: "html", width: 64, verbose: true},
			rest: []string{"x"},
		},
		{
			name: "short forms",
			args: []string{"-oout.bin", "-f", "tree", "-p", "32", "-v"},
			want: options{out: "out.bin", format: "tree", width: 32, verbose: true},
			rest: []string{},
		},
		{
			name: "single dash long name",
			args: []string{"-Wall", "-", "b.script"},
			want: options{out: "-", format: "binary", wall: true},
			rest: []string{"-", "b.script"},
		},
		{
			name: "double dash ends flags",
			args: []string{"-v", "--", "-f", "x"},
			want: options{out: "-", format: "binary", verbose: true},
			rest: []string{"-f", "x"},
		},
		{
			name: "explicit bool value",
			args: []string{"--verbose=false"},
			want: options{out: "-", format: "binary"},
			rest: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got options
			fs := newTestSet(&got)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(options{})); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.rest, fs.Args()); diff != "" {
				t.Errorf("Args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string][]string{
		"unknown long":     {"--nope"},
		"unknown short":    {"-x"},
		"missing argument": {"--output"},
		"missing short":    {"-f"},
		"bad integer":      {"-p", "wide"},
		"bad bool":         {"--verbose=maybe"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var o options
			if err := newTestSet(&o).Parse(args); err == nil {
				t.Errorf("Parse(%q) succeeded", args)
			}
		})
	}
}

func TestRedefinitionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("redefining a flag did not panic")
		}
	}()
	var o options
	fs := newTestSet(&o)
	fs.Bool(&o.verbose, "verbose", "", false, "again")
}

func TestFlagGroup(t *testing.T) {
	fs := NewFlagSet("test")
	entries := []FlagGroupEntry{
		{Name: "extra", Prefix: "W", Usage: "Extra warnings", Enabled: new(bool), Disabled: new(bool)},
		{Name: "u-esc", Prefix: "W", Usage: "Escapes", Enabled: new(bool), Disabled: new(bool), Default: true},
	}
	fs.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", entries)
	if err := fs.Parse([]string{"-Wextra", "-Wno-u-esc"}); err != nil {
		t.Fatal(err)
	}
	if !*entries[0].Enabled || *entries[0].Disabled || *entries[1].Enabled || !*entries[1].Disabled {
		t.Errorf("group state: extra %v/%v, u-esc %v/%v",
			*entries[0].Enabled, *entries[0].Disabled, *entries[1].Enabled, *entries[1].Disabled)
	}
}

func TestHelp(t *testing.T) {
	var o options
	var stdout, stderr bytes.Buffer
	app := NewApp("scriptc")
	app.Synopsis = "[options] <input.script>..."
	app.FlagSet = newTestSet(&o)
	app.Stdout, app.Stderr = &stdout, &stderr
	app.FlagSet.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", []FlagGroupEntry{
		{Name: "extra", Prefix: "W", Usage: "Extra warnings", Enabled: new(bool), Disabled: new(bool)},
	})
	called := false
	app.Action = func([]string) error { called = true; return nil }

	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Errorf("--help ran the action")
	}
	help := stdout.String()
	for _, want := range []string{"Synopsis", "--output", "-o <file>", "-W<warning>", "-Wno-<warning>", "extra", "|-|"} {
		if !strings.Contains(help, want) {
			t.Errorf("help is missing %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "--Wextra") {
		t.Errorf("group flags are listed as options:\n%s", help)
	}
}

func TestRunReportsBadFlags(t *testing.T) {
	var o options
	var stderr bytes.Buffer
	app := NewApp("scriptc")
	app.FlagSet = newTestSet(&o)
	app.Stderr = &stderr
	app.Action = func([]string) error {
		t.Errorf("action ran after a parse error")
		return nil
	}
	if err := app.Run([]string{"--bogus"}); err == nil {
		t.Errorf("Run accepted --bogus")
	}
	if !strings.Contains(stderr.String(), "unknown flag: --bogus") || !strings.Contains(stderr.String(), "Usage: scriptc") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10)
	if diff := cmp.Diff([]string{"the quick", "brown fox", "jumps"}, got); diff != "" {
		t.Errorf("wrapText mismatch (-want +got):\n%s", diff)
	}
	if got := wrapText("   ", 10); len(got) != 0 {
		t.Errorf("blank text wrapped to %q", got)
	}
}
