// Package sandbox runs untrusted programs in an isolated working area.
//
// A Sandbox moves through Created -> Prepared -> (Compiled) -> Running -> Finalized.
// Cleanup reaches Finalized from any state and is safe to call repeatedly.
package sandbox

import (
	"context"
	"time"

	"execoj/internal/execution/model"
)

const (
	defaultCompileTimeout = 10 * time.Second
	defaultRunTimeout     = 5 * time.Second
	defaultMaxOutputBytes = 64 * 1024
	defaultBinaryName     = "solution"
)

// Sandbox is the per-execution lifecycle contract.
type Sandbox interface {
	// Prepare materializes the working area for code.
	Prepare(ctx context.Context, code string, language model.Language) error
	// Compile builds the program. It is a no-op for interpreted toolchains.
	Compile(ctx context.Context) error
	// Run executes the program once with input on stdin.
	Run(ctx context.Context, input string) (RunOutput, error)
	// Cleanup releases everything Prepare acquired.
	Cleanup(ctx context.Context) error
}

// RunOutput is what one program run produced.
type RunOutput struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	MemoryKB  int64
	Truncated bool
}

type state int

const (
	stateCreated state = iota
	statePrepared
	stateCompiled
	stateFinalized
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case statePrepared:
		return "prepared"
	case stateCompiled:
		return "compiled"
	default:
		return "finalized"
	}
}
