// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// kv-fuzzer runs one randomized consistency-fuzzing round against a KV
// client recipe and reports PASSED, UNFAIR or FAILED.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/josehu07/madkv/pkg/config"
	"github.com/josehu07/madkv/pkg/fuzzer"
	"github.com/josehu07/madkv/pkg/kvio"
	"github.com/josehu07/madkv/pkg/log"
	"github.com/josehu07/madkv/pkg/stats"
)

var (
	flagNumClis     = flag.Int("num_clis", 1, "number of concurrent clients")
	flagNumKeys     = flag.Int("num_keys", 5, "number of keys touched by each client")
	flagNumOps      = flag.Int("num_ops", 5000, "average number of operations per client")
	flagConflict    = flag.Bool("conflict", false, "share one key pool across clients")
	flagSeed        = flag.Int64("seed", 0, "fixed random seed (0 = time-based)")
	flagConfig      = flag.String("config", "", "optional YAML run config file")
	flagMetricsAddr = flag.String("metrics_addr", "", "serve Prometheus metrics on this address")
	flagClientArgs  = flag.String("client_just_args", "", "client recipe invocation arguments")
)

var (
	banner = color.New(color.FgYellow, color.Bold)
	bad    = color.New(color.FgRed, color.Bold)
	good   = color.New(color.FgGreen, color.Bold)
)

func main() {
	flag.Parse()
	log.EnableVerbose()

	runCfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg := fuzzer.Config{
		NumClients: *flagNumClis,
		NumKeys:    *flagNumKeys,
		NumOps:     *flagNumOps,
		Conflict:   *flagConflict,
		Seed:       *flagSeed,
		Runner:     runCfg.Runner,
		ClientArgs: append(append([]string{}, runCfg.ClientArgs...),
			strings.Fields(*flagClientArgs)...),
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	if *flagMetricsAddr != "" {
		go func() {
			if err := stats.ServeMetrics(*flagMetricsAddr); err != nil {
				log.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	banner.Printf("Fuzz testing configuration:")
	fmt.Printf("  clis %d  keys %d  ops %d  conflict %v\n",
		cfg.NumClients, cfg.NumKeys, cfg.NumOps, cfg.Conflict)

	f, err := fuzzer.New(cfg)
	if err != nil {
		log.Fatalf("failed to launch clients: %v", err)
	}
	defer f.Close()

	banner.Println("Fuzzing starts...")
	result, err := f.Run()
	if err != nil {
		log.Fatalf("fuzz round aborted: %v", err)
	}
	f.Stats.Format(os.Stdout)
	f.Latency.Snapshot().Format(os.Stdout, "Fuzz")

	switch result.Outcome {
	case fuzzer.Passed:
		banner.Printf("Fuzz testing result: ")
		good.Println("PASSED")
		fmt.Printf("  Remaining checks queued:  %d  reasonable\n", result.Remaining)
	case fuzzer.Unfair:
		banner.Printf("Fuzz testing result: ")
		bad.Println("UNFAIR")
		fmt.Printf("  Remaining checks queued:  %d  too many!\n", result.Remaining)
	case fuzzer.Failed:
		bad.Printf("%s:  client %d  <%d - %d>\n",
			result.Reason, result.FailClient, result.FailTsCall, result.FailTsResp)
		if result.FailResp != nil {
			fmt.Printf("  Resp: %s\n", log.Shorten(kvio.RespString(result.FailResp), 1024))
		}
		banner.Printf("Fuzz testing result: ")
		bad.Println("FAILED")
		os.Exit(1)
	}
}
