// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// kv-bencher runs the YCSB load and run phases against N concurrent KV
// client recipes and prints the merged performance report.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/josehu07/madkv/pkg/config"
	"github.com/josehu07/madkv/pkg/kvproc"
	"github.com/josehu07/madkv/pkg/log"
	"github.com/josehu07/madkv/pkg/stats"
	"github.com/josehu07/madkv/pkg/ycsb"
)

var (
	flagNumClis    = flag.Int("num_clis", 1, "number of concurrent clients")
	flagNumOps     = flag.Int("num_ops", 10000, "number of operations per client")
	flagWorkload   = flag.String("workload", "a", "YCSB workload profile name ('a' to 'f')")
	flagConfig     = flag.String("config", "", "optional YAML run config file")
	flagClientArgs = flag.String("client_just_args", "", "client recipe invocation arguments")
)

var banner = color.New(color.FgYellow, color.Bold)

// runPhase launches one fresh client fleet, one YCSB driver per client, and
// merges the per-client statistics.
func runPhase(runCfg *config.Config, clientArgs []string, profile string,
	load bool, ikeys *ycsb.KeySet) (*stats.Stats, *ycsb.KeySet, error) {
	drivers := make([]*ycsb.Driver, 0, *flagNumClis)
	for i := 0; i < *flagNumClis; i++ {
		client, err := kvproc.New(runCfg.Runner, clientArgs)
		if err != nil {
			return nil, nil, err
		}
		// Each driver accumulates onto its own copy of the insert-key set.
		cliKeys := &ycsb.KeySet{}
		cliKeys.Extend(ikeys)
		driver, err := ycsb.Launch(runCfg.YcsbBin, profile, *flagNumOps, load, client, cliKeys)
		if err != nil {
			client.Kill()
			return nil, nil, err
		}
		drivers = append(drivers, driver)
	}
	// Let just-in-time build checks of the client recipes settle.
	time.Sleep(time.Duration(math.Ceil(0.3*float64(*flagNumClis))) * time.Second)
	fmt.Printf("  Launched %d YCSB drivers, now waiting...\n", len(drivers))

	merged := stats.New()
	mergedKeys := &ycsb.KeySet{}
	var mu sync.Mutex
	var g errgroup.Group
	for _, driver := range drivers {
		g.Go(func() error {
			cliStats, cliKeys, err := driver.Wait(ycsb.WaitTimeout)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			merged.Merge(cliStats)
			mergedKeys.Extend(cliKeys)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return merged, mergedKeys, nil
}

func main() {
	flag.Parse()
	log.EnableVerbose()

	if *flagNumClis < 1 {
		log.Fatalf("num_clis must be at least 1")
	}
	workload := *flagWorkload
	if len(workload) != 1 || !strings.Contains(ycsb.ValidWorkloads, workload) {
		log.Fatalf("workload must be one of 'a'..'f'")
	}
	runCfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("%v", err)
	}
	profile, err := runCfg.WorkloadProfile(workload[0])
	if err != nil {
		log.Fatalf("%v", err)
	}
	clientArgs := append(append([]string{}, runCfg.ClientArgs...),
		strings.Fields(*flagClientArgs)...)

	banner.Printf("YCSB benchmark configuration:")
	fmt.Printf("  clis %d  ops %d  workload %s\n", *flagNumClis, *flagNumOps, workload)

	banner.Println("Benchmarking [Load] phase...")
	statsLoad, ikeysLoad, err := runPhase(runCfg, clientArgs, profile, true, &ycsb.KeySet{})
	if err != nil {
		log.Fatalf("load phase failed: %v", err)
	}

	banner.Println("Benchmarking [Run] phase...")
	statsRun, _, err := runPhase(runCfg, clientArgs, profile, false, ikeysLoad)
	if err != nil {
		log.Fatalf("run phase failed: %v", err)
	}

	banner.Printf("Benchmarking results:")
	fmt.Printf("  YCSB-%s  %d clients\n", workload, *flagNumClis)
	statsLoad.Format(os.Stdout, "Load")
	statsRun.Format(os.Stdout, "Run")
}
