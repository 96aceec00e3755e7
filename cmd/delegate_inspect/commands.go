// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gomlx/delegate/backends/demo"
	"github.com/gomlx/delegate/pkg/core/fx"
	"github.com/gomlx/delegate/pkg/core/fx/fxjson"
	"github.com/gomlx/delegate/pkg/core/ops"
	"github.com/gomlx/delegate/pkg/delegate"
	"github.com/gomlx/delegate/pkg/partitioner"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func graphArg(cmd *cli.Command) (*fx.Graph, error) {
	if cmd.Args().Len() != 1 {
		return nil, errors.Errorf("%s: expected exactly one graph file, got %d arguments", cmd.Name, cmd.Args().Len())
	}
	return fxjson.LoadFile(cmd.Args().First())
}

func printCmd() *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "Print a graph and the graphs of its lowered modules",
		ArgsUsage: "<graph.json>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			g, err := graphArg(cmd)
			if err != nil {
				return err
			}
			fmt.Print(delegate.PrintDelegatedGraph(g))
			return nil
		},
	}
}

func lowerCmd() *cli.Command {
	var (
		configPath string
		backendID  string
		outPath    string
		showGraph  bool
	)
	return &cli.Command{
		Name:      "lower",
		Usage:     "Partition a graph and lower the partitions to the configured backends",
		ArgsUsage: "<graph.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML file with the backends to lower to, their supported operators and compile specs",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "backend to lower to, if no configuration is given",
				Value:       demo.BackendID,
				Destination: &backendID,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "save the lowered graph as JSON to this file",
				Destination: &outPath,
			},
			&cli.BoolFlag{Name: "graph", Usage: "print the lowered graph", Destination: &showGraph},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			g, err := graphArg(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath, backendID)
			if err != nil {
				return err
			}
			numNodes := g.Len()
			lowered, err := lower(g, cfg)
			if err != nil {
				return err
			}
			reportLowering(g, numNodes, lowered)
			if showGraph {
				fmt.Println(titleStyle.Render("Lowered graph"))
				fmt.Print(delegate.PrintDelegatedGraph(g))
			}
			if outPath != "" {
				return saveGraph(g, outPath)
			}
			return nil
		},
	}
}

func backendsCmd() *cli.Command {
	return &cli.Command{
		Name:  "backends",
		Usage: "List the registered backends",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reportBackends()
			return nil
		},
	}
}

// nodeSupporter is implemented by backends that can tell which nodes they compile.
type nodeSupporter interface {
	IsSupported(node *fx.Node) bool
}

// lower partitions and lowers g for each configured backend in turn: later backends are offered
// the nodes earlier ones didn't take.
func lower(g *fx.Graph, cfg *Config) ([]*delegate.LoweredModule, error) {
	var lowered []*delegate.LoweredModule
	for ii, backendCfg := range cfg.Backends {
		backend, found := delegate.GetBackend(backendCfg.ID)
		if !found {
			return lowered, errors.Errorf("backend %q not registered, registered backends: %q",
				backendCfg.ID, delegate.RegisteredBackends())
		}
		supported := func(*fx.Node) bool { return true }
		switch {
		case len(backendCfg.SupportedOps) > 0:
			supported = partitioner.SupportedTargetNames(backendCfg.SupportedOps...)
		default:
			if s, ok := backend.(nodeSupporter); ok {
				supported = s.IsSupported
			}
		}
		p := &partitioner.CapabilityPartitioner{
			Supported: func(node *fx.Node) bool {
				return !ops.IsCall(node, ops.CallDelegate) && !delegate.IsDelegateGetItem(node) && supported(node)
			},
			TagPrefix: fmt.Sprintf("%s%d_", cfg.TagPrefix, ii),
		}
		tags, err := p.Partition(g)
		if err != nil {
			return lowered, err
		}
		klog.V(1).Infof("Backend %q: %d partitions", backend.ID(), len(tags))
		modules, err := delegate.LowerTaggedPartitions(g, delegate.ChooseByPrefix(p.TagPrefix, backend, backendCfg.compileSpecs()...))
		lowered = append(lowered, modules...)
		if err != nil {
			return lowered, errors.WithMessagef(err, "lowering to backend %q", backend.ID())
		}
	}
	return lowered, nil
}

func saveGraph(g *fx.Graph, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", path)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "closing %q", path)
		}
	}()
	return fxjson.Save(f, g)
}
