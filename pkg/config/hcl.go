// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// Expressions can read the process environment through the env object,
// e.g. sdk_root = "${env.HOME}/sdk".
type HCLParser struct {
	// Environ overrides os.Environ, mostly for tests
	Environ func() []string
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// 📝 Parse parses the rules from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Rules, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "rules.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": p.envObject(),
		},
	}

	// Define HCL schema
	type hclRules struct {
		SDKRoot   string   `hcl:"sdk_root,optional"`
		WatchDir  string   `hcl:"watch_dir,optional"`
		Ignore    []string `hcl:"ignore,optional"`
		Platforms []struct {
			OS       string   `hcl:"os,label"`
			Source   string   `hcl:"source"`
			Files    []string `hcl:"files,optional"`
			Prefixes []string `hcl:"prefixes,optional"`
		} `hcl:"platform,block"`
	}

	var hclCfg hclRules
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	rules := &Rules{
		SDKRoot:   hclCfg.SDKRoot,
		WatchDir:  hclCfg.WatchDir,
		Ignore:    hclCfg.Ignore,
		Platforms: make(map[string]PlatformRule, len(hclCfg.Platforms)),
	}

	for _, pl := range hclCfg.Platforms {
		key := strings.ToLower(pl.OS)
		if _, dup := rules.Platforms[key]; dup {
			return nil, errors.Errorf("duplicate platform block %q", pl.OS)
		}
		rules.Platforms[key] = PlatformRule{
			Source:   pl.Source,
			Files:    pl.Files,
			Prefixes: pl.Prefixes,
		}
	}

	return rules, nil
}

// envObject exposes the environment as a cty object
func (p *HCLParser) envObject() cty.Value {
	environ := os.Environ
	if p.Environ != nil {
		environ = p.Environ
	}

	vals := map[string]cty.Value{}
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}

	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
