package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/badgermind/scriptc/pkg/codegen"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/util"
	"github.com/google/go-cmp/cmp"
)

type exitCode int

// run drives the scriptc command in process and returns what it wrote and
// the exit status util.Exit was called with (0 when it returned normally).
func run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, diag bytes.Buffer
	oldErr, oldExit, oldColor := util.Stderr, util.Exit, util.Color
	util.Stderr = &diag
	util.Exit = func(c int) { panic(exitCode(c)) }
	t.Cleanup(func() {
		util.Stderr, util.Exit, util.Color = oldErr, oldExit, oldColor
		util.SetSourceFiles(nil)
	})

	app := newApp()
	app.Stdout, app.Stderr = &out, &diag
	code = func() (code int) {
		defer func() {
			if r := recover(); r != nil {
				c, ok := r.(exitCode)
				if !ok {
					panic(r)
				}
				code = int(c)
			}
		}()
		if err := app.Run(args); err != nil {
			return 1
		}
		return 0
	}()
	return out.String(), diag.String(), code
}

func script(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "tests", name))
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// sharedBlob is shared.script at 32 bits: the literal 1 is written once and
// all four parameters point at it.
const sharedBlob = `
	bad9e201 aaaaaa 0001000000
	42 3a78 3a79 00 aaaa 07000000 07000000 00000000
	41 3a78 3a79 00 aaaa 07000000 07000000 0c000000
	050104010100 aaaa 34000000 20000000`

func TestScriptsBinary(t *testing.T) {
	out, diag, code := run(t, "-o", "-", "--verify", script(t, "shared.script"))
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, diag)
	}
	if diff := cmp.Diff(mustHex(t, sharedBlob), []byte(out)); diff != "" {
		t.Errorf("shared.script mismatch (-want +got):\n%s", diff)
	}

	out, _, code = run(t, "-o", "-", script(t, "empty.script"))
	if code != 0 || !bytes.Equal([]byte(out), codegen.Magic[:]) {
		t.Errorf("empty.script: exit %d, output % x", code, out)
	}

	for _, name := range []string{"arith.script", "literals.script"} {
		for _, args := range [][]string{{"-p", "32"}, {"-p", "64"}, {"-Fno-optimize"}} {
			args = append([]string{"-o", "-", "--verify"}, args...)
			if _, diag, code := run(t, append(args, script(t, name))...); code != 0 {
				t.Errorf("%s %v: exit %d:\n%s", name, args, code, diag)
			}
		}
	}
}

func TestScriptsTree(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"shared.script", "(A\n   x: 1\n   y: 1)\n\n(B\n   x: 1\n   y: 1)\n"},
		{"empty.script", ""},
		{"arith.script", "(A\n   v: 1 + 2)\n\n(Light\n" +
			"   color: base + 0.5 * 2\n" +
			"   angle: 90\n" +
			"   offset: width - 3\n" +
			"   flip: -scale\n" +
			"   size: |delta|\n" +
			"   ratio: 1 / 3 / 4\n" +
			"   sum: 1 + 2)\n"},
		{"literals.script", "(Texture\n" +
			"   sourceURI: \"textures/stone.png\"\n" +
			"   name: \"stone \"wall\"\"\n" +
			"   data: <Binary Data>\n" +
			"   big: 70000\n" +
			"   neg: -2\n" +
			"   hex: 0x10\n" +
			"   nested: (Sampler\n" +
			"              filter: linear\n" +
			"              wrap: (Wrap\n" +
			"                       u: repeat\n" +
			"                       v: clamp)))\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			out, diag, code := run(t, "-o", "-", "-f", "tree", script(t, tt.file))
			if code != 0 {
				t.Fatalf("exit %d:\n%s", code, diag)
			}
			if diff := cmp.Diff(tt.want, out); diff != "" {
				t.Errorf("tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScriptsHTML(t *testing.T) {
	out, diag, code := run(t, "-o", "-", "-f", "html", script(t, "literals.script"))
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, diag)
	}
	for _, want := range []string{
		`<a href="textures/stone.png">textures/stone.png</a>`,
		`&#34;stone &#34;wall&#34;&#34;`,
		"&lt;Binary Data&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("html output is missing %q:\n%s", want, out)
		}
	}
}

func TestScriptsWarnings(t *testing.T) {
	_, diag, code := run(t, "-o", "-", script(t, "literals.script"))
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, diag)
	}
	if got := strings.Count(diag, "[-Wint-range]"); got != 1 {
		t.Errorf("got %d int-range warnings, want 1 (for 70000):\n%s", got, diag)
	}
	if !strings.Contains(diag, "literal 70000") || strings.Contains(diag, "literal -2") {
		t.Errorf("int-range warning on the wrong literal:\n%s", diag)
	}
}

func TestScriptsErrors(t *testing.T) {
	out, diag, code := run(t, "-o", "-", script(t, "errors.script"))
	if code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if out != "" {
		t.Errorf("output written for invalid input: %q", out)
	}
	for _, want := range []string{"errors.script:2:", "errors.script:3:"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics are missing %s:\n%s", want, diag)
		}
	}
}

func TestDefaultConfigFileIsOptional(t *testing.T) {
	src := script(t, "shared.script")
	dir := t.TempDir()
	testChdir(t, dir)

	out, diag, code := run(t, "-o", "-", src)
	if code != 0 {
		t.Fatalf("exit %d without %s:\n%s", code, config.DefaultFile, diag)
	}
	if diff := cmp.Diff(mustHex(t, sharedBlob), []byte(out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	// Once present, the default file is picked up and flags still win.
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFile), []byte("format: tree\npointer_width: 64\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, diag, code = run(t, "-o", "-", src)
	if code != 0 || !strings.HasPrefix(out, "(A\n") {
		t.Errorf("default config not applied: exit %d, output %q\n%s", code, out, diag)
	}
	out, _, code = run(t, "-o", "-", "-f", "binary", src)
	if code != 0 || !bytes.HasPrefix([]byte(out), codegen.Magic[:]) {
		t.Errorf("-f binary did not override the config file: exit %d", code)
	}

	_, diag, code = run(t, "-o", "-", "--config", filepath.Join(dir, "missing.yaml"), src)
	if code != 1 || !strings.Contains(diag, "failed to read config") {
		t.Errorf("missing explicit config: exit %d\n%s", code, diag)
	}
}

// testChdir changes the working directory for the rest of the test and
// restores it on cleanup, like testing.T.Chdir (Go 1.24+).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
