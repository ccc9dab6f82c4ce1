// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ycsb

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/josehu07/madkv/pkg/kverror"
	"github.com/josehu07/madkv/pkg/kvproc"
	"github.com/josehu07/madkv/pkg/log"
	"github.com/josehu07/madkv/pkg/osutil"
	"github.com/josehu07/madkv/pkg/stats"
)

const (
	// RespTimeout bounds the synchronous per-call response wait of the
	// feeder; WaitTimeout bounds one whole generator phase.
	RespTimeout = 60 * time.Second
	WaitTimeout = 600 * time.Second
)

// ValidWorkloads are the YCSB core workload profile letters.
const ValidWorkloads = "abcdef"

// Driver owns one YCSB generator child plus the feeder goroutine that
// translates its output and feeds a KV client synchronously.
type Driver struct {
	cmd   *exec.Cmd
	doneC chan feederResult
}

type feederResult struct {
	stats *stats.Stats
	ikeys *KeySet
	err   error
}

// Launch starts the generator for one phase (load or run) of a workload and
// begins feeding the given client. The client's ownership moves to the
// driver, which stops it when the phase ends.
func Launch(bin string, profile string, numOps int, load bool,
	client *kvproc.Client, ikeys *KeySet) (*Driver, error) {
	phase := "run"
	if load {
		phase = "load"
	}
	cmd := osutil.Command(bin, phase, "basic",
		"-P", profile,
		"-p", fmt.Sprintf("operationcount=%d", numOps))
	// The generator's stderr is noise here; only its stdout matters.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, kverror.Wrap(kverror.Io, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, kverror.Wrap(kverror.Io, err)
	}

	d := &Driver{
		cmd:   cmd,
		doneC: make(chan feederResult, 1),
	}
	go d.feed(stdout, client, ikeys)
	return d, nil
}

// Wait blocks until the feeder finishes or the timeout fires, then kills
// the generator child either way. On success it returns the phase's
// statistics and the accumulated insert-key set.
func (d *Driver) Wait(timeout time.Duration) (*stats.Stats, *KeySet, error) {
	var res feederResult
	select {
	case res = <-d.doneC:
	case <-time.After(timeout):
		res.err = kverror.Chanf("timed out waiting %v for YCSB phase", timeout)
	}
	osutil.KillProcessGroup(d.cmd)
	d.cmd.Wait()
	return res.stats, res.ikeys, res.err
}

// feed translates generator output line by line. Every operation line is
// fed to the client synchronously: send the call, then block for its
// response before reading the next line. EOF marks successful completion.
func (d *Driver) feed(stdout io.Reader, client *kvproc.Client, ikeys *KeySet) {
	s := stats.New()
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var err error
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err = d.feedLine(line, client, ikeys, s); err != nil {
			if !kverror.IsKind(err, kverror.Chan) {
				log.Errorf("error in YCSB feeder: %v", err)
			}
			break
		}
	}
	if err == nil {
		err = kverror.Wrap(kverror.Io, scanner.Err())
	}

	if serr := client.Stop(); serr != nil {
		log.Errorf("error stopping client: %v", serr)
	}
	if err != nil {
		d.doneC <- feederResult{err: err}
		return
	}
	s.Merged = 1
	d.doneC <- feederResult{stats: s, ikeys: ikeys}
}

func (d *Driver) feedLine(line string, client *kvproc.Client, ikeys *KeySet, s *stats.Stats) error {
	call, ok, err := InterpretCall(line, ikeys)
	if err != nil {
		return err
	}
	if ok {
		if err := client.SendCall(call); err != nil {
			return err
		}
		if _, err := client.WaitResp(RespTimeout); err != nil {
			return err
		}
		return nil
	}
	if strings.HasPrefix(line, "[") {
		return RecordPerf(line, s)
	}
	if strings.Contains(line, "No such file") {
		// Most likely the workload profile path does not exist.
		return kverror.Iof("%s", line)
	}
	return nil
}
