// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// capture-producer connects to a collector and emits synthetic capture
// events whenever the collector starts a capture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/capture-producer/internal/controller"
	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Same code the flag package exits with on parse errors.
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return exitSuccess
	}
	if err != nil {
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	syncLogger, err := setupLogging(cfg)
	if err != nil {
		return parseError("Failure to set up logging: %v", err)
	}
	defer syncLogger()

	if cfg.VerboseMode {
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err = cfg.Validate(); err != nil {
		return parseError("Invalid configuration: %v", err)
	}

	// Context to drive main goroutine and the event source.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	log.Infof("Starting capture producer %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	ctlr := controller.New(cfg)
	if err = ctlr.Start(mainCtx); err != nil {
		ctlr.Shutdown()
		return failure("Failed to start producing: %v", err)
	}

	<-mainCtx.Done()

	ctlr.Shutdown()
	log.Info("Exiting ...")
	return exitSuccess
}

// setupLogging installs the logger selected by cfg and returns a function
// flushing it.
func setupLogging(cfg *controller.Config) (func(), error) {
	if cfg.LogFormat != controller.LogFormatZap {
		if cfg.VerboseMode {
			log.SetDebugLogger()
		}
		return func() {}, nil
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.VerboseMode {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	z, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	log.SetZapLogger(z)
	return func() { _ = z.Sync() }, nil
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
