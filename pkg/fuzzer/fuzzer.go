// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer drives N concurrent KV client subprocesses with randomized
// workloads and judges every harvested response against a real-time causal
// consistency model.
package fuzzer

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/josehu07/madkv/pkg/kvio"
	"github.com/josehu07/madkv/pkg/kvproc"
	"github.com/josehu07/madkv/pkg/log"
	"github.com/josehu07/madkv/pkg/stats"
)

const (
	// RespTimeout bounds each single response wait. It must be long enough
	// to never cut off a healthy but slow service.
	RespTimeout = 60 * time.Second

	// RemainThresh is the fairness guard: this many or more undecided checks
	// left after the final harvest mean some client lagged too far behind the
	// others for the round to be statistically sound.
	RemainThresh = 1000
)

// Client is the view of a KV client handle the driver needs. kvproc.Client
// implements it; tests substitute in-process oracles.
type Client interface {
	SendCall(call kvio.Call) error
	WaitResp(timeout time.Duration) (kvio.Resp, error)
	Stop() error
	Kill()
}

// Config parameterizes one fuzz round.
type Config struct {
	NumClients int
	NumKeys    int
	// NumOps is the average number of operations per client.
	NumOps int
	// Conflict shares one key pool across all clients instead of giving
	// each client a disjoint random pool.
	Conflict bool
	// Runner is the shell-recipe runner binary; ClientArgs its arguments.
	Runner     string
	ClientArgs []string
	// Seed fixes the random source when nonzero.
	Seed int64
}

func (cfg *Config) Validate() error {
	if cfg.NumClients < 1 {
		return fmt.Errorf("num_clis must be at least 1")
	}
	if cfg.NumKeys < 1 || cfg.NumKeys >= 100000 {
		return fmt.Errorf("num_keys must be in [1, 100000)")
	}
	if cfg.NumOps < 1000 {
		return fmt.Errorf("num_ops must be at least 1000")
	}
	return nil
}

// Outcome of a fuzz round.
type Outcome int

const (
	// Passed means every decidable response check passed and all clients
	// kept pace.
	Passed Outcome = iota
	// Unfair means no check failed, but too many responses stayed
	// undecidable because of client lag; the round is inconclusive.
	Unfair
	// Failed means a response was provably inconsistent, or a client
	// misbehaved at the protocol level.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "PASSED"
	case Unfair:
		return "UNFAIR"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result reports how a fuzz round ended.
type Result struct {
	Outcome   Outcome
	Remaining int

	// Failure details, valid when Outcome == Failed.
	Reason     string
	FailClient int
	FailTsCall uint64
	FailTsResp uint64
	FailResp   kvio.Resp
}

// RoundStats are per-round operation counts and key-touch frequencies.
type RoundStats struct {
	CntPut    int
	CntSwap   int
	CntGet    int
	CntScan   int
	CntDelete int
	KeysFreq  [][]int
}

func newRoundStats(keys [][]string) RoundStats {
	freq := make([][]int, len(keys))
	for i, cliKeys := range keys {
		freq[i] = make([]int, len(cliKeys))
	}
	return RoundStats{KeysFreq: freq}
}

// Format writes the human-readable per-round summary.
func (rs *RoundStats) Format(w io.Writer) {
	fmt.Fprintf(w, "  Ops stats:  Put %d  Swap %d  Get %d  Scan %d  Delete %d\n",
		rs.CntPut, rs.CntSwap, rs.CntGet, rs.CntScan, rs.CntDelete)
	for i, freq := range rs.KeysFreq {
		if i == 0 {
			fmt.Fprintf(w, "  Keys freq:  %v\n", freq)
		} else {
			fmt.Fprintf(w, "              %v\n", freq)
		}
	}
}

type callMemo struct {
	ts     uint64
	op     string
	key    string
	value  *string
	update bool
	wall   time.Time
}

// Fuzzer owns the clients, the history checker and all round state. It is
// single-threaded: every History mutation happens on the caller's
// goroutine, parallelism lives only in the per-client subprocess fan-out.
type Fuzzer struct {
	cfg     Config
	id      uuid.UUID
	rnd     *rand.Rand
	keys    [][]string
	clients []Client
	history *History

	Stats    RoundStats
	Latency  *stats.LatencyTracker
	Progress io.Writer
}

// GenKeyPools builds the per-client key pools: disjoint random strings by
// default, or one shared "key00000"-style pool in conflict mode.
func GenKeyPools(rnd *rand.Rand, cfg *Config) [][]string {
	keys := make([][]string, cfg.NumClients)
	for ci := range keys {
		keys[ci] = make([]string, cfg.NumKeys)
		for ki := range keys[ci] {
			if cfg.Conflict {
				keys[ci][ki] = fmt.Sprintf("key%0*d", KeyLen-3, ki)
			} else {
				keys[ci][ki] = RandString(rnd, KeyLen)
			}
		}
	}
	return keys
}

// New spawns the client subprocesses and prepares a round. The warmup sleep
// of ceil(0.3s x clients) lets just-in-time build checks settle before the
// round starts timing operations.
func New(cfg Config) (*Fuzzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	keys := GenKeyPools(rnd, &cfg)

	clients := make([]Client, 0, cfg.NumClients)
	for i := 0; i < cfg.NumClients; i++ {
		client, err := kvproc.New(cfg.Runner, cfg.ClientArgs)
		if err != nil {
			for _, c := range clients {
				c.Kill()
			}
			return nil, err
		}
		clients = append(clients, client)
	}
	time.Sleep(time.Duration(math.Ceil(0.3*float64(cfg.NumClients))) * time.Second)

	f := NewWithClients(cfg, keys, clients)
	f.rnd = rnd
	return f, nil
}

// NewWithClients prepares a round over caller-provided client handles.
func NewWithClients(cfg Config, keys [][]string, clients []Client) *Fuzzer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fuzzer{
		cfg:      cfg,
		id:       uuid.New(),
		rnd:      rand.New(rand.NewSource(seed)),
		keys:     keys,
		clients:  clients,
		history:  NewHistory(cfg.NumClients, keys),
		Stats:    newRoundStats(keys),
		Latency:  stats.NewLatencyTracker(),
		Progress: os.Stdout,
	}
}

// Close force-terminates any still-running clients.
func (f *Fuzzer) Close() {
	for _, client := range f.clients {
		client.Kill()
	}
}

func opName(call kvio.Call) string {
	switch call.(type) {
	case kvio.PutCall:
		return "Put"
	case kvio.SwapCall:
		return "Swap"
	case kvio.GetCall:
		return "Get"
	case kvio.ScanCall:
		return "Scan"
	case kvio.DeleteCall:
		return "Delete"
	}
	return "Stop"
}

// Run executes the round: alternate randomly between issuing calls and
// harvesting responses, feed every acknowledged response into the history
// checker, and stop all clients at the end. A returned error means the
// harness itself failed (spawn, I/O, timeout); checker verdicts are not
// errors but Result outcomes.
func (f *Fuzzer) Run() (*Result, error) {
	log.Logf(0, "fuzz round %v: %d clients, %d keys each, %d ops each",
		f.id, f.cfg.NumClients, f.cfg.NumKeys, f.cfg.NumOps)

	flying := newFlyingSet(f.cfg.NumClients)
	memo := make([]callMemo, f.cfg.NumClients)
	totalOps := f.cfg.NumOps * f.cfg.NumClients
	progressEvery := totalOps / 100
	if progressEvery == 0 {
		progressEvery = 1
	}

	var timestamp uint64
	opsCalled, opsWaited := 0, 0
	for opsWaited < totalOps {
		timestamp++

		if callVsHarvest(f.rnd, opsCalled, totalOps, flying) {
			cidx := randClient(f.rnd, flying, false)
			call := randCall(f.rnd, f.keys[cidx], &f.Stats, cidx)
			key, value, update := kvio.UpdateInfo(call)
			memo[cidx] = callMemo{
				ts:     timestamp,
				op:     opName(call),
				key:    key,
				value:  value,
				update: update,
				wall:   time.Now(),
			}

			if err := f.clients[cidx].SendCall(call); err != nil {
				return nil, err
			}
			stats.CallsIssued.WithLabelValues(memo[cidx].op).Inc()
			flying.set(cidx, true)
			opsCalled++
			continue
		}

		cidx := randClient(f.rnd, flying, true)
		resp, err := f.clients[cidx].WaitResp(RespTimeout)
		if err != nil {
			return nil, err
		}
		if _, ok := resp.(kvio.StopResp); ok {
			return &Result{
				Outcome:    Failed,
				Reason:     "unexpected stop response",
				FailClient: cidx,
				FailTsResp: timestamp,
				FailResp:   resp,
			}, nil
		}

		m := memo[cidx]
		tsCall, tsResp := m.ts, timestamp
		f.history.AddToQueue(tsCall, tsResp, resp)
		f.Latency.Record(m.op, time.Since(m.wall))
		stats.RespsHarvested.Inc()

		if m.update {
			status, bad := f.history.ApplyUpdate(cidx, tsCall, tsResp, m.key, m.value)
			switch status {
			case UpdateViolation:
				stats.Violations.Inc()
				return &Result{
					Outcome:    Failed,
					Reason:     "consistency violation",
					FailClient: cidx,
					FailTsCall: tsCall,
					FailTsResp: tsResp,
					FailResp:   bad,
				}, nil
			case UpdateUnexpectedKey:
				return &Result{
					Outcome:    Failed,
					Reason:     "unexpected update key",
					FailClient: cidx,
					FailTsCall: tsCall,
					FailTsResp: tsResp,
					FailResp:   resp,
				}, nil
			}
		}
		stats.CheckQueueDepth.Set(float64(f.history.QueueLen()))

		flying.set(cidx, false)
		opsWaited++
		if opsWaited%progressEvery == 0 || opsWaited == totalOps {
			fmt.Fprintf(f.Progress, "  Progress:  called %d / %d  waited %d / %d\r",
				opsCalled, totalOps, opsWaited, totalOps)
			if opsWaited == totalOps {
				fmt.Fprintln(f.Progress)
			}
		}
	}

	for _, client := range f.clients {
		if err := client.Stop(); err != nil {
			return nil, err
		}
	}
	remaining := f.history.QueueLen()
	return &Result{Outcome: outcomeFor(remaining), Remaining: remaining}, nil
}

// outcomeFor applies the fairness guard to the residual check queue length.
func outcomeFor(remaining int) Outcome {
	if remaining >= RemainThresh {
		return Unfair
	}
	return Passed
}

// QueueLen exposes the number of still-undecided queued responses.
func (f *Fuzzer) QueueLen() int {
	return f.history.QueueLen()
}
