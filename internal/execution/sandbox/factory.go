package sandbox

import (
	"fmt"

	"execoj/internal/execution/model"
)

// Mode selects the isolation strategy.
type Mode string

const (
	ModeLocal     Mode = "local"
	ModeContainer Mode = "container"
)

// Factory builds one sandbox per execution.
type Factory interface {
	New(language model.Language, opts model.Options) (Sandbox, error)
}

// LocalFactory builds LocalSandboxes.
type LocalFactory struct {
	cfg        LocalConfig
	toolchains *Toolchains
}

func NewLocalFactory(cfg LocalConfig, toolchains *Toolchains) *LocalFactory {
	return &LocalFactory{cfg: cfg, toolchains: toolchains}
}

func (f *LocalFactory) New(language model.Language, opts model.Options) (Sandbox, error) {
	tc, err := f.toolchains.Get(language)
	if err != nil {
		return nil, err
	}
	return NewLocalSandbox(f.cfg, tc, opts), nil
}

// ContainerFactory builds ContainerSandboxes sharing one runtime.
type ContainerFactory struct {
	runtime    ContainerRuntime
	cfg        ContainerConfig
	toolchains *Toolchains
}

func NewContainerFactory(runtime ContainerRuntime, cfg ContainerConfig, toolchains *Toolchains) *ContainerFactory {
	return &ContainerFactory{runtime: runtime, cfg: cfg, toolchains: toolchains}
}

func (f *ContainerFactory) New(language model.Language, opts model.Options) (Sandbox, error) {
	tc, err := f.toolchains.Get(language)
	if err != nil {
		return nil, err
	}
	return NewContainerSandbox(f.runtime, f.cfg, tc, opts), nil
}

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLocal:
		return ModeLocal, nil
	case ModeContainer:
		return ModeContainer, nil
	}
	return "", fmt.Errorf("unknown sandbox mode %q", s)
}
