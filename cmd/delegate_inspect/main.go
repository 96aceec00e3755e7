// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// delegate_inspect loads graphs saved as JSON (see package fxjson), partitions and lowers them to
// the registered backends, and reports the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	_ "github.com/gomlx/delegate/backends/demo"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	var (
		verbosity int
		noColor   bool
	)
	app := &cli.Command{
		Name:  "delegate_inspect",
		Usage: "Partition graphs and inspect how they are delegated to backends",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "v", Usage: "klog verbosity level", Destination: &verbosity},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colors and styles in reports", Destination: &noColor},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := flag.Set("v", strconv.Itoa(verbosity)); err != nil {
				return ctx, err
			}
			if noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			printCmd(),
			lowerCmd(),
			backendsCmd(),
		},
	}

	err := app.Run(context.Background(), os.Args)
	klog.Flush()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
