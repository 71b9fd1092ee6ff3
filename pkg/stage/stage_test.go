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

package stage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/libstage/pkg/locate"
	"github.com/walteh/libstage/pkg/log"
	"github.com/walteh/libstage/pkg/stage"
)

// 🧪 createTestEnv creates a source dir with the given files and returns refs to them
func createTestEnv(t *testing.T, files map[string]string) (context.Context, string, []locate.RuntimeLibraryRef) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0755))

	var refs []locate.RuntimeLibraryRef
	for _, name := range sortedKeys(files) {
		path := filepath.Join(src, name)
		require.NoError(t, os.WriteFile(path, []byte(files[name]), 0644), "writing source %s", name)
		refs = append(refs, locate.NewRef(path))
	}

	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background()), root, refs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err, "reading %s", path)
	return string(b)
}

func TestStageEmptyDoesNotCreateDirs(t *testing.T) {
	ctx, root, _ := createTestEnv(t, nil)
	dest := filepath.Join(root, "target", "debug", "examples")

	report := stage.New(stage.Options{}).Stage(ctx, nil, []string{dest})

	assert.Empty(t, report.Results, "nothing should be staged")
	assert.NoDirExists(t, dest, "destination should not be created")
	assert.NoDirExists(t, filepath.Join(root, "target"), "no parent should be created")
}

func TestStageOverwritesAndIsIdempotent(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{
		"a": "fresh a",
		"b": "fresh b",
	})
	dest := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a"), []byte("stale a with other contents"), 0644))

	stager := stage.New(stage.Options{})

	report := stager.Stage(ctx, refs, []string{dest})
	require.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Count(stage.Copied), "both files should be copied")
	assert.Equal(t, stage.StatusModified, report.Results[0].Status, "stale a should be modified")
	assert.Equal(t, stage.StatusNew, report.Results[1].Status, "b should be new")
	assert.Equal(t, "fresh a", readFile(t, filepath.Join(dest, "a")), "a should be overwritten")
	assert.Equal(t, "fresh b", readFile(t, filepath.Join(dest, "b")), "b should be created")

	again := stager.Stage(ctx, refs, []string{dest})
	require.Len(t, again.Results, 2)
	for _, res := range again.Results {
		assert.Equal(t, stage.Copied, res.Outcome, "%s should be copied again", res.Ref.Name)
		assert.Equal(t, stage.StatusUnchanged, res.Status, "%s should be unchanged", res.Ref.Name)
	}
	assert.Equal(t, "fresh a", readFile(t, filepath.Join(dest, "a")))
	assert.Equal(t, "fresh b", readFile(t, filepath.Join(dest, "b")))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files should be left behind")
}

func TestStageMultipleDestinations(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{"lib.so.1": "elf"})
	examples := filepath.Join(root, "target", "release", "examples")
	profile := filepath.Join(root, "target", "release")

	report := stage.New(stage.Options{}).Stage(ctx, refs, []string{examples, profile})

	assert.Equal(t, 2, report.Count(stage.Copied))
	assert.Equal(t, "elf", readFile(t, filepath.Join(examples, "lib.so.1")))
	assert.Equal(t, "elf", readFile(t, filepath.Join(profile, "lib.so.1")))
}

func TestStagePartialFailure(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{
		"a": "contents a",
		"b": "contents b",
	})
	blocked := filepath.Join(root, "blocked")
	other := filepath.Join(root, "other")

	// a directory where b should go makes the copy of b fail
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "b", "keep"), 0755))

	report := stage.New(stage.Options{}).Stage(ctx, refs, []string{blocked, other})

	require.Len(t, report.Results, 4)
	failures := report.Failures()
	require.Len(t, failures, 1, "only b in the blocked dir should fail")
	assert.Equal(t, "b", failures[0].Ref.Name)
	assert.Equal(t, filepath.Join(blocked, "b"), failures[0].Destination)
	assert.Error(t, failures[0].Err)

	assert.Equal(t, "contents a", readFile(t, filepath.Join(blocked, "a")), "a should still be staged")
	assert.Equal(t, "contents a", readFile(t, filepath.Join(other, "a")), "later destinations should be staged")
	assert.Equal(t, "contents b", readFile(t, filepath.Join(other, "b")), "later destinations should be staged")

	entries, err := os.ReadDir(blocked)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file %s should be removed", e.Name())
	}
}

func TestStageDestinationCannotBeCreated(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{"a": "contents a"})

	// a regular file in place of the destination dir
	notADir := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))
	good := filepath.Join(root, "good")

	report := stage.New(stage.Options{}).Stage(ctx, refs, []string{filepath.Join(notADir, "examples"), good})

	require.Len(t, report.Results, 2)
	assert.Equal(t, stage.Failed, report.Results[0].Outcome, "unreachable destination should fail")
	assert.Contains(t, report.Results[0].Err.Error(), "creating destination directory")
	assert.Equal(t, stage.Copied, report.Results[1].Outcome, "other destinations should continue")
	assert.Equal(t, "contents a", readFile(t, filepath.Join(good, "a")))
}

func TestStageSourceMissing(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{"a": "contents a"})
	gone := locate.NewRef(filepath.Join(root, "src", "gone"))
	dest := filepath.Join(root, "out")

	report := stage.New(stage.Options{}).Stage(ctx, append(refs, gone), []string{dest})

	require.Len(t, report.Results, 2)
	assert.Equal(t, stage.Copied, report.Results[0].Outcome)
	assert.Equal(t, stage.SkippedSourceMissing, report.Results[1].Outcome)
	assert.NoError(t, report.Results[1].Err, "missing source is not an error")
	assert.NoFileExists(t, filepath.Join(dest, "gone"))
}

func TestStageDryRun(t *testing.T) {
	ctx, root, refs := createTestEnv(t, map[string]string{"a": "contents a"})
	dest := filepath.Join(root, "out")

	report := stage.New(stage.Options{DryRun: true}).Stage(ctx, refs, []string{dest})

	require.Len(t, report.Results, 1)
	assert.True(t, report.DryRun)
	assert.Equal(t, stage.StatusNew, report.Results[0].Status, "a would be new")
	assert.NoDirExists(t, dest, "dry run should not create anything")
}

func TestStagePreservesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	ctx, root, refs := createTestEnv(t, map[string]string{"lib.so": "elf"})
	require.NoError(t, os.Chmod(refs[0].Path, 0755))
	dest := filepath.Join(root, "out")

	stage.New(stage.Options{}).Stage(ctx, refs, []string{dest})

	fi, err := os.Stat(filepath.Join(dest, "lib.so"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), fi.Mode().Perm(), "mode should match the source")
}

func TestStageReporter(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	ctx, root, refs := createTestEnv(t, map[string]string{"nvngx_dlss.dll": "pe"})
	dest := filepath.Join(root, "out")

	buf := &bytes.Buffer{}
	reporter := log.New(buf, zerolog.Nop())

	stage.New(stage.Options{
		Reporter: reporter,
		Platform: "windows",
		Source:   filepath.Join(root, "src"),
	}).Stage(ctx, refs, []string{dest})

	out := buf.String()
	assert.Contains(t, out, "[staging "+dest+"]")
	assert.Contains(t, out, "◆ windows")
	assert.Contains(t, out, "✓ nvngx_dlss.dll")
	assert.Contains(t, out, "copied")
}
