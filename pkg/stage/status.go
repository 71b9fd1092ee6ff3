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

package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"

	"gitlab.com/tozd/go/errors"
)

// 🎯 Outcome is the result of staging one file into one directory
type Outcome int

const (
	Copied Outcome = iota
	SkippedSourceMissing
	Failed
)

// String returns a string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case Copied:
		return "copied"
	case SkippedSourceMissing:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📊 FileStatus is the state of the destination before a copy
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusNew                  // File doesn't exist in destination
	StatusModified             // File exists but content differs
	StatusUnchanged            // File exists and content matches
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// 🔍 classify compares dst with src without modifying either
func classify(src, dst string) FileStatus {
	fi, err := os.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusNew
	}
	if err != nil || !fi.Mode().IsRegular() {
		return StatusModified
	}

	srcSum, err := checksum(src)
	if err != nil {
		return StatusUnknown
	}
	dstSum, err := checksum(dst)
	if err != nil {
		return StatusModified
	}

	if srcSum == dstSum {
		return StatusUnchanged
	}
	return StatusModified
}

// 🔍 checksum generates a SHA-256 hash of a file's content
func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
