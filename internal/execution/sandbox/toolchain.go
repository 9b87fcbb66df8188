package sandbox

import (
	"fmt"
	"strings"

	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"

	"github.com/google/shlex"
)

// Template placeholders expanded in toolchain commands and env entries.
const (
	placeholderSource = "{src}"
	placeholderBinary = "{bin}"
	placeholderOutput = "{out}"
)

// Toolchain describes how one language is built and run.
type Toolchain struct {
	Language   model.Language `yaml:"language"`
	SourceFile string         `yaml:"sourceFile"`
	BinaryName string         `yaml:"binaryName"`
	CompileCmd string         `yaml:"compileCmd"`
	RunCmd     string         `yaml:"runCmd"`
	Image      string         `yaml:"image"`
	Env        []string       `yaml:"env"`
}

// Paths locate the source file, the built binary and the writable output directory.
type Paths struct {
	Source string
	Binary string
	Output string
}

// NeedsCompile reports whether the toolchain has a build step.
func (t Toolchain) NeedsCompile() bool {
	return strings.TrimSpace(t.CompileCmd) != ""
}

// CompileArgs expands the compile template.
func (t Toolchain) CompileArgs(p Paths) ([]string, error) {
	return expandCommand(t.CompileCmd, p)
}

// RunArgs expands the run template.
func (t Toolchain) RunArgs(p Paths) ([]string, error) {
	return expandCommand(t.RunCmd, p)
}

// Environ expands the env entries.
func (t Toolchain) Environ(p Paths) []string {
	if len(t.Env) == 0 {
		return nil
	}
	r := p.replacer()
	env := make([]string, 0, len(t.Env))
	for _, kv := range t.Env {
		env = append(env, r.Replace(kv))
	}
	return env
}

func (t Toolchain) binaryName() string {
	if t.BinaryName != "" {
		return t.BinaryName
	}
	return defaultBinaryName
}

func (p Paths) replacer() *strings.Replacer {
	return strings.NewReplacer(
		placeholderSource, p.Source,
		placeholderBinary, p.Binary,
		placeholderOutput, p.Output,
	)
}

// expandCommand splits before substituting so paths are never re-tokenized.
func expandCommand(template string, p Paths) ([]string, error) {
	parts, err := shlex.Split(template)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.EnvironmentError, "invalid command template %q", template)
	}
	if len(parts) == 0 {
		return nil, appErr.Newf(appErr.EnvironmentError, "empty command template")
	}
	r := p.replacer()
	for i, part := range parts {
		parts[i] = r.Replace(part)
	}
	return parts, nil
}

// DefaultToolchains returns the built-in toolchain for every supported language.
func DefaultToolchains() []Toolchain {
	return []Toolchain{
		{Language: model.LanguagePython, SourceFile: "solution.py", RunCmd: "python3 {src}", Image: "python:3.11-slim"},
		{Language: model.LanguageJavaScript, SourceFile: "solution.js", RunCmd: "node {src}", Image: "node:22-slim"},
		{Language: model.LanguageTypeScript, SourceFile: "solution.ts", RunCmd: "node --experimental-strip-types --no-warnings {src}", Image: "node:22-slim"},
		{Language: model.LanguageJava, SourceFile: "Solution.java", CompileCmd: "javac -d {out} {src}", RunCmd: "java -cp {out} Solution", Image: "eclipse-temurin:17-jdk"},
		{Language: model.LanguageC, SourceFile: "solution.c", CompileCmd: "gcc -O2 -o {bin} {src} -lm", RunCmd: "{bin}", Image: "gcc:13"},
		{Language: model.LanguageCPP, SourceFile: "solution.cpp", CompileCmd: "g++ -O2 -std=c++17 -o {bin} {src}", RunCmd: "{bin}", Image: "gcc:13"},
		{Language: model.LanguageRust, SourceFile: "solution.rs", CompileCmd: "rustc -O -o {bin} {src}", RunCmd: "{bin}", Image: "rust:1.79-slim"},
		{
			Language:   model.LanguageGo,
			SourceFile: "main.go",
			CompileCmd: "go build -o {bin} {src}",
			RunCmd:     "{bin}",
			Image:      "golang:1.22",
			Env:        []string{"GOCACHE={out}/.gocache", "GOPATH={out}/.gopath", "GO111MODULE=off", "CGO_ENABLED=0"},
		},
		{Language: model.LanguageSQL, SourceFile: "solution.sql", RunCmd: "sh -c 'cat - {src} | sqlite3 -batch :memory:'", Image: "keinos/sqlite3:latest"},
	}
}

// Toolchains resolves languages to toolchains.
type Toolchains struct {
	byLanguage map[model.Language]Toolchain
}

// NewToolchains overlays overrides on the defaults. Overrides only need the
// fields they change.
func NewToolchains(overrides []Toolchain) *Toolchains {
	m := make(map[model.Language]Toolchain)
	for _, tc := range DefaultToolchains() {
		m[tc.Language] = tc
	}
	for _, o := range overrides {
		lang := model.Language(strings.ToLower(strings.TrimSpace(string(o.Language))))
		base := m[lang]
		base.Language = lang
		if o.SourceFile != "" {
			base.SourceFile = o.SourceFile
		}
		if o.BinaryName != "" {
			base.BinaryName = o.BinaryName
		}
		if o.CompileCmd != "" {
			base.CompileCmd = o.CompileCmd
		}
		if o.RunCmd != "" {
			base.RunCmd = o.RunCmd
		}
		if o.Image != "" {
			base.Image = o.Image
		}
		if len(o.Env) > 0 {
			base.Env = o.Env
		}
		m[lang] = base
	}
	return &Toolchains{byLanguage: m}
}

// Get returns the toolchain for lang.
func (t *Toolchains) Get(lang model.Language) (Toolchain, error) {
	tc, ok := t.byLanguage[lang]
	if !ok || tc.RunCmd == "" || tc.SourceFile == "" {
		return Toolchain{}, appErr.Newf(appErr.LanguageNotSupported, "no toolchain for language %s", lang)
	}
	return tc, nil
}

// Validate checks every template parses.
func (t *Toolchains) Validate() error {
	for lang, tc := range t.byLanguage {
		if tc.RunCmd == "" {
			return fmt.Errorf("toolchain %s: run command is required", lang)
		}
		if _, err := shlex.Split(tc.RunCmd); err != nil {
			return fmt.Errorf("toolchain %s: run command: %w", lang, err)
		}
		if tc.NeedsCompile() {
			if _, err := shlex.Split(tc.CompileCmd); err != nil {
				return fmt.Errorf("toolchain %s: compile command: %w", lang, err)
			}
		}
	}
	return nil
}
