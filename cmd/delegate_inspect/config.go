// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/gomlx/delegate/pkg/delegate"
	"github.com/gomlx/delegate/pkg/partitioner"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config of the lowering, read from a YAML file. For example:
//
//	tag_prefix: demo
//	backends:
//	  - id: BackendWithCompilerDemo
//	    supported_ops: [aten.add.Tensor, aten.mm.default]
//	    compile_specs:
//	      - key: max_instructions
//	        value: "16"
type Config struct {
	TagPrefix string          `yaml:"tag_prefix"`
	Backends  []BackendConfig `yaml:"backends"`
}

// BackendConfig selects a registered backend and how it's used.
type BackendConfig struct {
	ID string `yaml:"id"`

	// SupportedOps lists the operators offered to the backend. If empty, the backend decides
	// if it implements an IsSupported(*fx.Node) bool method, otherwise every operator is offered.
	SupportedOps []string `yaml:"supported_ops"`

	CompileSpecs []CompileSpecConfig `yaml:"compile_specs"`
}

// CompileSpecConfig is a delegate.CompileSpec with a text value.
type CompileSpecConfig struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// loadConfig reads the configuration at path. An empty path returns the default configuration:
// the backend given by name with no options.
func loadConfig(path, backendID string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading configuration")
		}
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing configuration %q", path)
		}
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = []BackendConfig{{ID: backendID}}
	}
	if cfg.TagPrefix == "" {
		cfg.TagPrefix = partitioner.DefaultTagPrefix
	}
	return cfg, nil
}

// compileSpecs converts the configured compile specs.
func (c *BackendConfig) compileSpecs() []delegate.CompileSpec {
	specs := make([]delegate.CompileSpec, len(c.CompileSpecs))
	for ii, spec := range c.CompileSpecs {
		specs[ii] = delegate.CompileSpec{Key: spec.Key, Value: []byte(spec.Value)}
	}
	return specs
}
