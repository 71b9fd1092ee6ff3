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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gitlab.com/tozd/go/errors"
)

// 🌍 Environment variables read from the outer build system
const (
	EnvTargetOS    = "CARGO_CFG_TARGET_OS"
	EnvProfile     = "PROFILE"
	EnvTargetDir   = "CARGO_TARGET_DIR"
	EnvManifestDir = "CARGO_MANIFEST_DIR"
)

// DefaultProfile is used when the build system does not name a profile.
const DefaultProfile = "debug"

// 🔍 Lookup reads a single environment value, like os.LookupEnv
type Lookup func(key string) (string, bool)

// 📚 Env is the build context the step runs in
type Env struct {
	TargetOS    string // target operating system identifier, e.g. "linux"
	Profile     string // build profile, used verbatim as a path segment
	OutputRoot  string // root of the build output tree
	ManifestDir string // directory the step is positioned in
	SDKRoot     string // vendor SDK root; empty means "derive from rules"
}

// 🏭 FromLookup builds an Env from the given lookup, applying defaults
func FromLookup(lookup Lookup) (*Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	env := &Env{
		TargetOS:    get(EnvTargetOS),
		Profile:     get(EnvProfile),
		OutputRoot:  get(EnvTargetDir),
		ManifestDir: get(EnvManifestDir),
	}

	if err := env.Normalize(); err != nil {
		return nil, err
	}

	return env, nil
}

// 🔧 Normalize fills in defaults and makes all directories absolute
func (e *Env) Normalize() error {
	if e.ManifestDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Errorf("getting working directory: %w", err)
		}
		e.ManifestDir = wd
	}

	manifestDir, err := filepath.Abs(e.ManifestDir)
	if err != nil {
		return errors.Errorf("resolving manifest dir: %w", err)
	}
	e.ManifestDir = manifestDir

	if e.Profile == "" {
		e.Profile = DefaultProfile
	}

	if e.OutputRoot == "" {
		e.OutputRoot = filepath.Join(e.ManifestDir, "..", "..", "target")
	}

	outputRoot, err := filepath.Abs(e.OutputRoot)
	if err != nil {
		return errors.Errorf("resolving output root: %w", err)
	}
	e.OutputRoot = outputRoot

	if e.SDKRoot != "" {
		e.SDKRoot = e.resolve(e.SDKRoot)
	}

	return e.Validate()
}

// 🔍 Validate checks that the profile can be used as a single path segment
func (e *Env) Validate() error {
	if e.Profile == "." || e.Profile == ".." || strings.ContainsAny(e.Profile, `/\`) {
		return errors.Errorf("profile %q is not a single path segment", e.Profile)
	}
	return nil
}

// 📁 SDKDir returns the vendor SDK root for the given rules
func (e *Env) SDKDir(r *Rules) string {
	if e.SDKRoot != "" {
		return e.SDKRoot
	}
	if r != nil && r.SDKRoot != "" {
		return e.resolve(r.SDKRoot)
	}
	return e.resolve(DefaultSDKRoot)
}

// resolve anchors relative paths at the manifest dir
func (e *Env) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.ManifestDir, path)
}

// 📝 String returns a string representation of the env
func (e *Env) String() string {
	return fmt.Sprintf("os=%q profile=%s out=%s manifest=%s", e.TargetOS, e.Profile, e.OutputRoot, e.ManifestDir)
}

// 📄 DotenvLookup layers a dotenv file under base: values in base win
func DotenvLookup(path string, base Lookup) (Lookup, error) {
	if base == nil {
		base = os.LookupEnv
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Errorf("reading env file %s: %w", path, err)
	}

	return Chain(base, MapLookup(values)), nil
}

// 🔗 Chain returns a Lookup that asks each lookup in turn; the first hit wins
func Chain(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if l == nil {
				continue
			}
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// 🗺️ MapLookup returns a Lookup backed by a map
func MapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
