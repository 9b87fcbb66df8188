package sandbox_test

import (
	"reflect"
	"testing"

	"execoj/internal/execution/model"
	"execoj/internal/execution/sandbox"
	appErr "execoj/pkg/errors"
)

func TestDefaultToolchainsCoverEveryLanguage(t *testing.T) {
	tcs := sandbox.NewToolchains(nil)
	for _, lang := range model.Languages() {
		tc, err := tcs.Get(lang)
		if err != nil {
			t.Fatalf("missing toolchain for %s: %v", lang, err)
		}
		if tc.Image == "" {
			t.Fatalf("toolchain %s has no image", lang)
		}
	}
	if err := tcs.Validate(); err != nil {
		t.Fatalf("default toolchains invalid: %v", err)
	}
}

func TestToolchainExpandsPlaceholdersAfterSplitting(t *testing.T) {
	tcs := sandbox.NewToolchains(nil)
	tc, err := tcs.Get(model.LanguageJava)
	if err != nil {
		t.Fatalf("get java: %v", err)
	}
	paths := sandbox.Paths{Source: "/work dir/Solution.java", Binary: "/work dir/solution", Output: "/work dir"}

	compile, err := tc.CompileArgs(paths)
	if err != nil {
		t.Fatalf("compile args: %v", err)
	}
	want := []string{"javac", "-d", "/work dir", "/work dir/Solution.java"}
	if !reflect.DeepEqual(compile, want) {
		t.Fatalf("compile args = %v, want %v", compile, want)
	}
	run, err := tc.RunArgs(paths)
	if err != nil {
		t.Fatalf("run args: %v", err)
	}
	if !reflect.DeepEqual(run, []string{"java", "-cp", "/work dir", "Solution"}) {
		t.Fatalf("unexpected run args: %v", run)
	}
	if !tc.NeedsCompile() {
		t.Fatalf("java should need compile")
	}
}

func TestToolchainQuotedTemplate(t *testing.T) {
	tc, err := sandbox.NewToolchains(nil).Get(model.LanguageSQL)
	if err != nil {
		t.Fatalf("get sql: %v", err)
	}
	args, err := tc.RunArgs(sandbox.Paths{Source: "/s/solution.sql"})
	if err != nil {
		t.Fatalf("run args: %v", err)
	}
	want := []string{"sh", "-c", "cat - /s/solution.sql | sqlite3 -batch :memory:"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("run args = %v, want %v", args, want)
	}
}

func TestToolchainOverridesMergeOverDefaults(t *testing.T) {
	tcs := sandbox.NewToolchains([]sandbox.Toolchain{
		{Language: "Python", RunCmd: "pypy3 {src}"},
	})
	tc, err := tcs.Get(model.LanguagePython)
	if err != nil {
		t.Fatalf("get python: %v", err)
	}
	if tc.RunCmd != "pypy3 {src}" {
		t.Fatalf("override not applied: %q", tc.RunCmd)
	}
	if tc.SourceFile != "solution.py" || tc.Image == "" {
		t.Fatalf("defaults lost: %+v", tc)
	}
}

func TestToolchainEnvironExpandsOutputDir(t *testing.T) {
	tc, err := sandbox.NewToolchains(nil).Get(model.LanguageGo)
	if err != nil {
		t.Fatalf("get go: %v", err)
	}
	env := tc.Environ(sandbox.Paths{Output: "/sandbox/out"})
	if len(env) == 0 || env[0] != "GOCACHE=/sandbox/out/.gocache" {
		t.Fatalf("unexpected env: %v", env)
	}
}

func TestToolchainsRejectUnknownLanguage(t *testing.T) {
	_, err := sandbox.NewToolchains(nil).Get(model.Language("cobol"))
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestToolchainBadTemplate(t *testing.T) {
	tc := sandbox.Toolchain{Language: model.LanguagePython, RunCmd: "sh -c 'unterminated"}
	if _, err := tc.RunArgs(sandbox.Paths{}); !appErr.Is(err, appErr.EnvironmentError) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := sandbox.ParseMode(""); err != nil || m != sandbox.ModeLocal {
		t.Fatalf("empty mode should default to local: %v %v", m, err)
	}
	if m, err := sandbox.ParseMode("container"); err != nil || m != sandbox.ModeContainer {
		t.Fatalf("unexpected container mode: %v %v", m, err)
	}
	if _, err := sandbox.ParseMode("vm"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
