// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// kv-service launches a long-running KV service recipe and keeps it owned,
// so that killing the launcher also kills the service tree.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/josehu07/madkv/pkg/config"
	"github.com/josehu07/madkv/pkg/kvproc"
	"github.com/josehu07/madkv/pkg/log"
)

var (
	flagConfig   = flag.String("config", "", "optional YAML run config file")
	flagJustArgs = flag.String("just_args", "", "service recipe invocation arguments")
)

func main() {
	flag.Parse()
	log.EnableVerbose()

	runCfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("%v", err)
	}
	args := append(append([]string{}, runCfg.ServerArgs...), strings.Fields(*flagJustArgs)...)

	color.New(color.FgYellow, color.Bold).Printf("Service launch configuration:")
	fmt.Printf("  runner %s  args %v\n", runCfg.Runner, args)

	server, err := kvproc.NewServer(runCfg.Runner, args)
	if err != nil {
		log.Fatalf("failed to launch service: %v", err)
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigC
		server.Stop()
		os.Exit(0)
	}()

	if err := server.Wait(); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
