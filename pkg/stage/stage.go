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

// Package stage copies located runtime libraries next to build outputs.
//
// Staging is best effort: a file or destination that cannot be written is
// recorded in the Report and logged, and the remaining work carries on.
package stage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/libstage/pkg/locate"
	"github.com/walteh/libstage/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// 📈 Reporter receives one entry per staged file
type Reporter interface {
	StartStagingOperation(ctx context.Context, op log.StagingOperation)
	LogFileOperation(ctx context.Context, op log.FileOperation)
	EndStagingOperation(ctx context.Context)
}

// 📄 Result is the outcome of one file in one destination
type Result struct {
	Ref         locate.RuntimeLibraryRef
	Destination string // full destination path
	Outcome     Outcome
	Status      FileStatus // destination state before the copy, for Copied
	Err         error      // set for Failed
}

// 📊 Report aggregates the results of a staging run
type Report struct {
	DryRun  bool
	Results []Result
}

// Count returns the number of results with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the failed results
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Failed {
			out = append(out, res)
		}
	}
	return out
}

// 📦 Options configures a Stager
type Options struct {
	// Reporter is optional; zerolog from the context is always used
	Reporter Reporter
	// Platform and Source only label the report
	Platform string
	Source   string
	// DryRun classifies files without creating or writing anything
	DryRun bool
}

// 🚚 Stager copies runtime libraries into destination directories
type Stager struct {
	opts Options
}

// 🏭 New creates a new stager
func New(opts Options) *Stager {
	return &Stager{opts: opts}
}

// 🏃 Stage copies every ref into every destination, overwriting existing
// files. It never fails as a whole: problems are recorded in the report.
func (s *Stager) Stage(ctx context.Context, refs []locate.RuntimeLibraryRef, destinations []string) *Report {
	logger := zerolog.Ctx(ctx)
	report := &Report{DryRun: s.opts.DryRun}

	if len(refs) == 0 {
		logger.Debug().Msg("no runtime libraries to stage")
		return report
	}

	for _, dir := range destinations {
		report.Results = append(report.Results, s.stageDir(ctx, refs, dir)...)
	}

	logger.Debug().
		Int("copied", report.Count(Copied)).
		Int("skipped", report.Count(SkippedSourceMissing)).
		Int("failed", report.Count(Failed)).
		Msg("staging complete")

	return report
}

// 📁 stageDir stages refs into a single destination directory
func (s *Stager) stageDir(ctx context.Context, refs []locate.RuntimeLibraryRef, dir string) []Result {
	logger := zerolog.Ctx(ctx).With().Str("destination", dir).Logger()

	if s.opts.Reporter != nil {
		s.opts.Reporter.StartStagingOperation(ctx, log.StagingOperation{
			Platform:    s.opts.Platform,
			Source:      s.opts.Source,
			Destination: dir,
			DryRun:      s.opts.DryRun,
		})
		defer s.opts.Reporter.EndStagingOperation(ctx)
	}

	results := make([]Result, 0, len(refs))

	var mkdirErr error
	if !s.opts.DryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			mkdirErr = errors.Errorf("creating destination directory: %w", err)
			logger.Error().Err(err).Msg("cannot create destination directory")
		}
	}

	for _, ref := range refs {
		res := Result{
			Ref:         ref,
			Destination: filepath.Join(dir, ref.Name),
		}

		if mkdirErr != nil {
			res.Outcome = Failed
			res.Err = mkdirErr
		} else {
			res = s.stageFile(res)
		}

		s.report(ctx, res)
		results = append(results, res)
	}

	return results
}

// 📄 stageFile copies one file and fills in the result
func (s *Stager) stageFile(res Result) Result {
	if _, err := os.Stat(res.Ref.Path); errors.Is(err, fs.ErrNotExist) {
		res.Outcome = SkippedSourceMissing
		return res
	}

	res.Status = classify(res.Ref.Path, res.Destination)

	if s.opts.DryRun {
		res.Outcome = Copied
		return res
	}

	if err := copyFile(res.Ref.Path, res.Destination); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Stat(res.Ref.Path); errors.Is(statErr, fs.ErrNotExist) {
				// the source vanished between the check and the copy
				res.Outcome = SkippedSourceMissing
				res.Status = StatusUnknown
				return res
			}
		}
		res.Outcome = Failed
		res.Err = err
		return res
	}

	res.Outcome = Copied
	return res
}

// 📝 report sends a result to zerolog and the reporter
func (s *Stager) report(ctx context.Context, res Result) {
	logger := zerolog.Ctx(ctx)

	switch res.Outcome {
	case Failed:
		logger.Error().Err(res.Err).
			Str("source", res.Ref.Path).
			Str("destination", res.Destination).
			Msg("failed to copy runtime library")
	case SkippedSourceMissing:
		logger.Debug().Str("source", res.Ref.Path).Msg("source missing, skipped")
	default:
		logger.Debug().
			Str("source", res.Ref.Path).
			Str("destination", res.Destination).
			Stringer("status", res.Status).
			Bool("dry_run", s.opts.DryRun).
			Msg("staged runtime library")
	}

	if s.opts.Reporter == nil {
		return
	}

	op := log.FileOperation{
		Path:       res.Ref.Name,
		Type:       res.Outcome.String(),
		Status:     res.Status.String(),
		IsNew:      res.Status == StatusNew,
		IsModified: res.Status == StatusModified,
		IsSkipped:  res.Outcome == SkippedSourceMissing,
		IsFailed:   res.Outcome == Failed,
		Err:        res.Err,
	}
	switch res.Outcome {
	case SkippedSourceMissing:
		op.Status = "source missing"
	case Failed:
		op.Status = "error"
	}

	s.opts.Reporter.LogFileOperation(ctx, op)
}

// 💾 copyFile copies src over dst through a temp file in dst's directory,
// keeping src's permission bits
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source: %w", err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return errors.Errorf("reading source info: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, in); err != nil {
		cleanup()
		return errors.Errorf("copying %s: %w", src, err)
	}

	if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
		cleanup()
		return errors.Errorf("setting permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}
