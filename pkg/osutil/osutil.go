// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil provides process spawning helpers for driver-owned
// children. Children are placed in their own process group so that a recipe
// runner and everything it spawns can be killed together, leaving no
// orphaned KV services behind.
package osutil

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Command creates a command running in its own process group.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// KillProcessGroup kills the whole process group of a started command.
// The command must still be reaped with cmd.Wait by the caller.
func KillProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil || pgid != cmd.Process.Pid {
		// The child changed its group or is already gone; fall back to
		// killing just the direct child.
		cmd.Process.Kill()
		return
	}
	unix.Kill(-pgid, unix.SIGKILL)
}
