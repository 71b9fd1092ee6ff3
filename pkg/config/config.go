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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📦 Built-in vendor layout, relative to the manifest dir and SDK root
const (
	DefaultSDKRoot  = "../nvngx-sys"
	DefaultWatchDir = "DLSS/lib"
)

// 🔌 Parser is the interface for rules file parsers
type Parser interface {
	// 📝 Parse parses the rules from bytes
	Parse(ctx context.Context, data []byte) (*Rules, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 🧩 PlatformRule says where a platform's runtime libraries live and how to match them.
// Exactly one of Files and Prefixes is set.
type PlatformRule struct {
	Source   string   `json:"source" yaml:"source"`                         // subpath under the SDK root
	Files    []string `json:"files,omitempty" yaml:"files,omitempty"`       // exact filenames
	Prefixes []string `json:"prefixes,omitempty" yaml:"prefixes,omitempty"` // filename prefixes
}

// 📚 Rules is the complete staging configuration
type Rules struct {
	SDKRoot   string                  `json:"sdk_root,omitempty" yaml:"sdk_root,omitempty"`
	WatchDir  string                  `json:"watch_dir,omitempty" yaml:"watch_dir,omitempty"`
	Ignore    []string                `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Platforms map[string]PlatformRule `json:"platforms,omitempty" yaml:"platforms,omitempty"`
}

// 🏭 DefaultRules returns the built-in DLSS runtime layout
func DefaultRules() *Rules {
	return &Rules{
		SDKRoot:  DefaultSDKRoot,
		WatchDir: DefaultWatchDir,
		Platforms: map[string]PlatformRule{
			"windows": {
				Source: "DLSS/lib/Windows_x86_64/rel",
				Files:  []string{"nvngx_dlss.dll", "nvngx_dlssd.dll"},
			},
			"linux": {
				Source:   "DLSS/lib/Linux_x86_64/rel",
				Prefixes: []string{"libnvidia-ngx-dlss.so", "libnvidia-ngx-dlssd.so"},
			},
		},
	}
}

// 🔀 Merge overlays other on top of r. Platform entries in other replace
// whole entries in r; ignore patterns accumulate.
func (r *Rules) Merge(other *Rules) *Rules {
	out := &Rules{
		SDKRoot:   r.SDKRoot,
		WatchDir:  r.WatchDir,
		Ignore:    append([]string(nil), r.Ignore...),
		Platforms: make(map[string]PlatformRule, len(r.Platforms)),
	}
	for k, v := range r.Platforms {
		out.Platforms[k] = v
	}

	if other == nil {
		return out
	}

	if other.SDKRoot != "" {
		out.SDKRoot = other.SDKRoot
	}
	if other.WatchDir != "" {
		out.WatchDir = other.WatchDir
	}
	out.Ignore = append(out.Ignore, other.Ignore...)
	for k, v := range other.Platforms {
		out.Platforms[strings.ToLower(k)] = v
	}

	return out
}

// 🔍 Validate checks if the rules are usable
func (r *Rules) Validate() error {
	for _, pattern := range r.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	for _, name := range r.PlatformNames() {
		if err := r.Platforms[name].Validate(); err != nil {
			return errors.Errorf("platform %s: %w", name, err)
		}
	}

	return nil
}

// 📋 PlatformNames returns the configured platform keys in sorted order
func (r *Rules) PlatformNames() []string {
	names := make([]string, 0, len(r.Platforms))
	for k := range r.Platforms {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// 🔍 Validate checks that exactly one match variant is set
func (p PlatformRule) Validate() error {
	if p.Source == "" {
		return errors.Errorf("source is required")
	}

	switch {
	case len(p.Files) > 0 && len(p.Prefixes) > 0:
		return errors.Errorf("files and prefixes are mutually exclusive")
	case len(p.Files) == 0 && len(p.Prefixes) == 0:
		return errors.Errorf("one of files or prefixes is required")
	}

	for _, name := range append(append([]string(nil), p.Files...), p.Prefixes...) {
		if name == "" {
			return errors.Errorf("empty file name or prefix")
		}
		if strings.ContainsAny(name, `/\`) {
			return errors.Errorf("%q must be a bare file name", name)
		}
	}

	return nil
}

// 📝 String returns a string representation of the rule
func (p PlatformRule) String() string {
	if len(p.Files) > 0 {
		return fmt.Sprintf("%s [files: %s]", p.Source, strings.Join(p.Files, ", "))
	}
	return fmt.Sprintf("%s [prefixes: %s]", p.Source, strings.Join(p.Prefixes, ", "))
}

// 🎯 LoadRules loads a rules file and merges it over the defaults.
// An empty path returns the defaults.
func LoadRules(ctx context.Context, path string) (*Rules, error) {
	logger := zerolog.Ctx(ctx)

	if path == "" {
		logger.Debug().Msg("no rules file, using built-in rules")
		return DefaultRules(), nil
	}

	logger.Debug().Str("path", path).Msg("loading rules")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading rules file: %w", err)
	}

	p := GetParser(filepath.Base(path))
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	parsed, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing rules: %w", err)
	}

	rules := DefaultRules().Merge(parsed)
	if err := rules.Validate(); err != nil {
		return nil, errors.Errorf("validating rules: %w", err)
	}

	return rules, nil
}
