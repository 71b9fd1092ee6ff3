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
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestFromLookup(t *testing.T) {
	manifest := t.TempDir()

	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		errContains string
		check       func(t *testing.T, env *Env)
	}{
		{
			name: "defaults",
			env: map[string]string{
				EnvManifestDir: manifest,
			},
			check: func(t *testing.T, env *Env) {
				assert.Equal(t, "", env.TargetOS, "target os should be empty")
				assert.Equal(t, DefaultProfile, env.Profile, "profile should default")
				assert.Equal(t, filepath.Join(manifest, "..", "..", "target"), env.OutputRoot, "output root should default")
				assert.Equal(t, manifest, env.ManifestDir, "manifest dir should match")
			},
		},
		{
			name: "all_set",
			env: map[string]string{
				EnvTargetOS:    "linux",
				EnvProfile:     "release",
				EnvTargetDir:   filepath.Join(manifest, "out"),
				EnvManifestDir: manifest,
			},
			check: func(t *testing.T, env *Env) {
				assert.Equal(t, "linux", env.TargetOS, "target os should match")
				assert.Equal(t, "release", env.Profile, "profile should match")
				assert.Equal(t, filepath.Join(manifest, "out"), env.OutputRoot, "output root should match")
			},
		},
		{
			name: "whitespace_trimmed",
			env: map[string]string{
				EnvTargetOS:    "  windows\n",
				EnvManifestDir: manifest,
			},
			check: func(t *testing.T, env *Env) {
				assert.Equal(t, "windows", env.TargetOS, "target os should be trimmed")
			},
		},
		{
			name: "profile_with_separator",
			env: map[string]string{
				EnvProfile:     "a/b",
				EnvManifestDir: manifest,
			},
			wantErr:     true,
			errContains: "not a single path segment",
		},
		{
			name: "profile_dotdot",
			env: map[string]string{
				EnvProfile:     "..",
				EnvManifestDir: manifest,
			},
			wantErr:     true,
			errContains: "not a single path segment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := FromLookup(MapLookup(tt.env))
			if tt.wantErr {
				require.Error(t, err, "expected error")
				assert.Contains(t, err.Error(), tt.errContains, "error should contain expected message")
				return
			}
			require.NoError(t, err, "unexpected error")
			tt.check(t, env)
		})
	}
}

func TestSDKDir(t *testing.T) {
	env := &Env{ManifestDir: "/work/crates/nvngx"}

	assert.Equal(t, "/work/crates/nvngx-sys", env.SDKDir(nil), "default sdk root")
	assert.Equal(t, "/work/crates/nvngx/vendor", env.SDKDir(&Rules{SDKRoot: "vendor"}), "relative rules sdk root")
	assert.Equal(t, "/opt/sdk", env.SDKDir(&Rules{SDKRoot: "/opt/sdk"}), "absolute rules sdk root")

	env.SDKRoot = "/explicit"
	assert.Equal(t, "/explicit", env.SDKDir(&Rules{SDKRoot: "/opt/sdk"}), "explicit sdk root wins")
}

func TestDotenvLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.env")
	require.NoError(t, os.WriteFile(path, []byte("PROFILE=release\nCARGO_CFG_TARGET_OS=linux\n"), 0644))

	lookup, err := DotenvLookup(path, MapLookup(map[string]string{
		EnvTargetOS:    "windows",
		EnvManifestDir: dir,
	}))
	require.NoError(t, err, "reading env file")

	env, err := FromLookup(lookup)
	require.NoError(t, err, "building env")
	assert.Equal(t, "windows", env.TargetOS, "process env should win over file")
	assert.Equal(t, "release", env.Profile, "file should fill missing values")

	_, err = DotenvLookup(filepath.Join(dir, "missing.env"), nil)
	require.Error(t, err, "missing env file should fail")
}

func TestLoadRules(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		content     string
		wantErr     bool
		errContains string
		check       func(t *testing.T, r *Rules)
	}{
		{
			name:     "yaml_override_linux",
			filename: "rules.yaml",
			content: `
sdk_root: vendor/sdk
ignore:
  - "*.debug"
platforms:
  linux:
    source: lib/linux
    files:
      - libfoo.so
`,
			check: func(t *testing.T, r *Rules) {
				assert.Equal(t, "vendor/sdk", r.SDKRoot, "sdk root should match")
				assert.Equal(t, DefaultWatchDir, r.WatchDir, "watch dir should keep default")
				assert.Equal(t, []string{"*.debug"}, r.Ignore, "ignore should match")
				assert.Equal(t, []string{"libfoo.so"}, r.Platforms["linux"].Files, "linux should use files")
				assert.Empty(t, r.Platforms["linux"].Prefixes, "linux prefixes replaced")
				assert.Equal(t, DefaultRules().Platforms["windows"], r.Platforms["windows"], "windows should keep default")
			},
		},
		{
			name:     "yaml_unknown_field",
			filename: "rules.yml",
			content: `
sdk_rot: typo
`,
			wantErr:     true,
			errContains: "parsing YAML",
		},
		{
			name:     "hcl_platform_blocks",
			filename: "rules.hcl",
			content: `
watch_dir = "lib"

platform "windows" {
  source   = "lib/win"
  prefixes = ["nvngx_"]
}

platform "darwin" {
  source = "lib/mac"
  files  = ["libdlss.dylib"]
}
`,
			check: func(t *testing.T, r *Rules) {
				assert.Equal(t, "lib", r.WatchDir, "watch dir should match")
				assert.Equal(t, []string{"nvngx_"}, r.Platforms["windows"].Prefixes, "windows should use prefixes")
				assert.Equal(t, "lib/mac", r.Platforms["darwin"].Source, "darwin should be added")
				assert.Equal(t, []string{"darwin", "linux", "windows"}, r.PlatformNames(), "platform names should be sorted")
			},
		},
		{
			name:     "json_rules",
			filename: "rules.json",
			content:  `{"ignore": ["*.pdb"]}`,
			check: func(t *testing.T, r *Rules) {
				assert.Equal(t, []string{"*.pdb"}, r.Ignore, "ignore should match")
				assert.Len(t, r.Platforms, 2, "defaults should remain")
			},
		},
		{
			name:     "both_variants",
			filename: "rules.yaml",
			content: `
platforms:
  linux:
    source: lib
    files: [a]
    prefixes: [b]
`,
			wantErr:     true,
			errContains: "mutually exclusive",
		},
		{
			name:     "no_variant",
			filename: "rules.yaml",
			content: `
platforms:
  linux:
    source: lib
`,
			wantErr:     true,
			errContains: "one of files or prefixes is required",
		},
		{
			name:     "nested_name",
			filename: "rules.yaml",
			content: `
platforms:
  windows:
    source: lib
    files: [sub/a.dll]
`,
			wantErr:     true,
			errContains: "bare file name",
		},
		{
			name:     "bad_ignore_pattern",
			filename: "rules.yaml",
			content: `
ignore: ["[unclosed"]
`,
			wantErr:     true,
			errContains: "invalid ignore pattern",
		},
		{
			name:        "unknown_extension",
			filename:    "rules.toml",
			content:     `x = 1`,
			wantErr:     true,
			errContains: "no parser found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.filename)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644), "writing rules file")

			rules, err := LoadRules(testContext(t), path)
			if tt.wantErr {
				require.Error(t, err, "expected error")
				assert.Contains(t, err.Error(), tt.errContains, "error should contain expected message")
				return
			}
			require.NoError(t, err, "unexpected error")
			tt.check(t, rules)
		})
	}
}

func TestLoadRulesDefaults(t *testing.T) {
	rules, err := LoadRules(testContext(t), "")
	require.NoError(t, err, "loading default rules")
	assert.Equal(t, DefaultRules(), rules, "empty path should return defaults")
	require.NoError(t, rules.Validate(), "defaults should validate")
}

func TestHCLParserEnv(t *testing.T) {
	p := &HCLParser{Environ: func() []string { return []string{"SDK_HOME=/opt/dlss"} }}

	rules, err := p.Parse(testContext(t), []byte(`sdk_root = "${env.SDK_HOME}/sdk"`))
	require.NoError(t, err, "parsing HCL")
	assert.Equal(t, "/opt/dlss/sdk", rules.SDKRoot, "env should be interpolated")
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := DefaultRules()
	merged := base.Merge(&Rules{
		Ignore:    []string{"*.tmp"},
		Platforms: map[string]PlatformRule{"Linux": {Source: "x", Prefixes: []string{"lib"}}},
	})

	assert.Empty(t, base.Ignore, "base ignore should be untouched")
	assert.Equal(t, "DLSS/lib/Linux_x86_64/rel", base.Platforms["linux"].Source, "base platforms should be untouched")
	assert.Equal(t, "x", merged.Platforms["linux"].Source, "keys should be lowercased")
}

func TestChain(t *testing.T) {
	lookup := Chain(
		nil,
		MapLookup(map[string]string{"A": "first"}),
		MapLookup(map[string]string{"A": "second", "B": "second"}),
	)

	v, ok := lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "first", v, "earlier lookups win")

	v, ok = lookup("B")
	assert.True(t, ok)
	assert.Equal(t, "second", v, "later lookups fill gaps")

	_, ok = lookup("C")
	assert.False(t, ok)
}
