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

// Package locate finds vendor runtime libraries in a source directory.
package locate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📄 RuntimeLibraryRef is a single located runtime library
type RuntimeLibraryRef struct {
	Path string // absolute source path
	Name string // base filename, reused at the destination
}

// 🏭 NewRef builds a ref from a source path
func NewRef(path string) RuntimeLibraryRef {
	return RuntimeLibraryRef{Path: path, Name: filepath.Base(path)}
}

// 🎯 MatchRule selects runtime libraries in a directory.
// ExactNameSet and PrefixScan are the only implementations.
type MatchRule interface {
	fmt.Stringer
	match(dir string) ([]RuntimeLibraryRef, error)
}

// 📋 ExactNameSet looks for literal filenames, in order
type ExactNameSet struct {
	Names []string
}

func (r ExactNameSet) String() string {
	return "files: " + strings.Join(r.Names, ", ")
}

func (r ExactNameSet) match(dir string) ([]RuntimeLibraryRef, error) {
	var out []RuntimeLibraryRef
	for _, name := range r.Names {
		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &ReadError{Dir: dir, Err: err}
		}
		if fi.IsDir() {
			continue
		}
		out = append(out, NewRef(path))
	}
	return out, nil
}

// 🔎 PrefixScan matches every entry whose name starts with one of Prefixes
type PrefixScan struct {
	Prefixes []string
}

func (r PrefixScan) String() string {
	return "prefixes: " + strings.Join(r.Prefixes, ", ")
}

func (r PrefixScan) match(dir string) ([]RuntimeLibraryRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ReadError{Dir: dir, Err: err}
	}

	var out []RuntimeLibraryRef
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if r.hasPrefix(entry.Name()) {
			out = append(out, NewRef(filepath.Join(dir, entry.Name())))
		}
	}
	return out, nil
}

func (r PrefixScan) hasPrefix(name string) bool {
	for _, p := range r.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// ❌ ReadError means an existing source directory could not be enumerated
type ReadError struct {
	Dir string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading source directory %s: %v", e.Dir, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// 🔍 Locator finds runtime libraries
type Locator struct {
	// Ignore drops located files whose name matches any of these globs
	Ignore []string
}

// 🔍 Locate is Locator.Locate without ignore patterns
func Locate(ctx context.Context, dir string, rule MatchRule) ([]RuntimeLibraryRef, error) {
	return (&Locator{}).Locate(ctx, dir, rule)
}

// 🔍 Locate returns the runtime libraries in dir selected by rule.
// A missing dir yields no libraries and no error.
func (l *Locator) Locate(ctx context.Context, dir string, rule MatchRule) ([]RuntimeLibraryRef, error) {
	logger := zerolog.Ctx(ctx)

	if rule == nil {
		return nil, nil
	}

	fi, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Str("dir", dir).Msg("source directory does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, &ReadError{Dir: dir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &ReadError{Dir: dir, Err: errors.New("not a directory")}
	}

	found, err := rule.match(dir)
	if err != nil {
		return nil, err
	}

	out := found[:0]
	for _, ref := range found {
		if pattern, ok := l.ignored(ref.Name); ok {
			logger.Debug().Str("file", ref.Name).Str("pattern", pattern).Msg("file ignored by pattern")
			continue
		}
		out = append(out, ref)
	}

	logger.Debug().Str("dir", dir).Stringer("rule", rule).Int("found", len(out)).Msg("located runtime libraries")

	return out, nil
}

func (l *Locator) ignored(name string) (string, bool) {
	for _, pattern := range l.Ignore {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			continue
		}
		if matched {
			return pattern, true
		}
	}
	return "", false
}
