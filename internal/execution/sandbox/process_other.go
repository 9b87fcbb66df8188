//go:build !linux

package sandbox

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}

func peakMemoryKB(*os.ProcessState) int64 { return 0 }

func terminatingSignal(*os.ProcessState) string { return "" }
