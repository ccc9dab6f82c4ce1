// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package kvproc owns KV client and server subprocesses. Each Client wraps
// one child process speaking the kvio text protocol on its stdin/stdout and
// multiplexes calls and responses through one private driver goroutine.
package kvproc

import (
	"bufio"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/josehu07/madkv/pkg/kverror"
	"github.com/josehu07/madkv/pkg/kvio"
	"github.com/josehu07/madkv/pkg/log"
	"github.com/josehu07/madkv/pkg/osutil"
)

const (
	// How long Stop waits for the final STOP handshake before killing.
	stopGrace = 10 * time.Second

	// Calls buffered towards the driver goroutine. The protocol is strict
	// request/response, so drivers rarely keep more than one in flight.
	callChanCap = 64
)

type respOrErr struct {
	resp kvio.Resp
	err  error
}

// Client is a concurrency-safe facade to one KV client child process.
// Responses are delivered in the exact order the child emits them, which the
// protocol requires to match call order.
type Client struct {
	cmd   *exec.Cmd
	stdin io.Closer

	sendMu sync.Mutex
	closed bool
	calls  chan kvio.Call
	resps  chan respOrErr

	killOnce sync.Once
}

// New spawns a client child via the shell-recipe runner with the given
// arguments, with stdin/stdout piped and stderr forwarded, and starts its
// driver goroutine. It returns immediately.
func New(runner string, args []string) (*Client, error) {
	cmd, stdin, stdout, err := startPiped(runner, args)
	if err != nil {
		return nil, kverror.Wrap(kverror.Io, err)
	}
	client := NewOverPipes(stdin, stdout)
	client.cmd = cmd
	client.stdin = stdin
	return client, nil
}

// NewOverPipes builds a Client over raw reader/writer halves. Used directly
// by tests with in-process pipes; New attaches a child process on top.
func NewOverPipes(w io.Writer, r io.Reader) *Client {
	client := &Client{
		calls: make(chan kvio.Call, callChanCap),
		resps: make(chan respOrErr, callChanCap),
	}
	go client.drive(w, r)
	return client
}

// drive serializes calls onto the child's stdin and forwards decoded
// responses. It exits on the first I/O or decoding error, or after
// forwarding the response to a Stop call; the exit surfaces to the owner as
// Chan errors from later WaitResp calls.
func (client *Client) drive(w io.Writer, r io.Reader) {
	defer close(client.resps)

	bw := bufio.NewWriter(w)
	dec := kvio.NewDecoder(r)
	for call := range client.calls {
		err := kvio.WriteCall(bw, call)
		if err == nil {
			err = kverror.Wrap(kverror.Io, bw.Flush())
		}
		var resp kvio.Resp
		if err == nil {
			resp, err = dec.ReadResp()
		}
		if err != nil {
			log.Logf(1, "client driver exiting: %v", err)
			client.resps <- respOrErr{err: err}
			return
		}
		client.resps <- respOrErr{resp: resp}
		if _, stopped := resp.(kvio.StopResp); stopped {
			return
		}
	}
}

// SendCall delivers a call to the driver goroutine without blocking.
// Per-handle call order is preserved.
func (client *Client) SendCall(call kvio.Call) error {
	client.sendMu.Lock()
	defer client.sendMu.Unlock()
	if client.closed {
		return kverror.Chanf("client already killed")
	}
	select {
	case client.calls <- call:
		return nil
	default:
		return kverror.Chanf("call channel full")
	}
}

// WaitResp blocks up to timeout for the next response.
func (client *Client) WaitResp(timeout time.Duration) (kvio.Resp, error) {
	select {
	case re, ok := <-client.resps:
		if !ok {
			return nil, kverror.Chanf("response channel closed")
		}
		if re.err != nil {
			return nil, re.err
		}
		return re.resp, nil
	case <-time.After(timeout):
		return nil, kverror.Chanf("timed out waiting %v for response", timeout)
	}
}

// Stop sends a Stop call, waits for the final STOP handshake within a grace
// period, then force-terminates the child either way.
func (client *Client) Stop() error {
	defer client.Kill()

	if err := client.SendCall(kvio.StopCall{}); err != nil {
		return err
	}
	deadline := time.Now().Add(stopGrace)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return kverror.Chanf("timed out waiting for stop handshake")
		}
		resp, err := client.WaitResp(remain)
		if err != nil {
			return err
		}
		if _, ok := resp.(kvio.StopResp); ok {
			return nil
		}
		// Responses to calls still in flight may arrive first; drain them.
		log.Logf(3, "drained response during stop: %s", kvio.RespString(resp))
	}
}

// Kill force-terminates the child process and reaps it, and releases the
// driver goroutine. Safe to call multiple times and after Stop.
func (client *Client) Kill() {
	client.killOnce.Do(func() {
		client.sendMu.Lock()
		client.closed = true
		close(client.calls)
		client.sendMu.Unlock()

		if client.stdin != nil {
			client.stdin.Close()
		}
		if client.cmd != nil {
			osutil.KillProcessGroup(client.cmd)
			client.cmd.Wait()
		}
	})
}
