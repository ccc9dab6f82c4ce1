// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kvproc

import (
	"io"
	"os"
	"os/exec"

	"github.com/josehu07/madkv/pkg/kverror"
	"github.com/josehu07/madkv/pkg/osutil"
)

// startPiped launches a recipe-runner child with stdin/stdout piped and
// stderr forwarded to the parent's stderr.
func startPiped(runner string, args []string) (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
	cmd := osutil.Command(runner, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdin, stdout, nil
}

// Server is a handle to a long-running KV service child. It does no I/O
// multiplexing; the service is reached by clients over its own transport.
type Server struct {
	cmd *exec.Cmd
}

// NewServer launches a service child via the shell-recipe runner with the
// given arguments, inheriting the parent's stdio.
func NewServer(runner string, args []string) (*Server, error) {
	cmd := osutil.Command(runner, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, kverror.Wrap(kverror.Io, err)
	}
	return &Server{cmd: cmd}, nil
}

// Wait blocks until the service child exits on its own.
func (server *Server) Wait() error {
	return kverror.Wrap(kverror.Io, server.cmd.Wait())
}

// Stop kills the service child and reaps it.
func (server *Server) Stop() error {
	osutil.KillProcessGroup(server.cmd)
	server.cmd.Wait()
	return nil
}
