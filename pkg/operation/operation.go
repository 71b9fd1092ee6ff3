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

package operation

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/libstage/pkg/config"
	"github.com/walteh/libstage/pkg/locate"
	"github.com/walteh/libstage/pkg/platform"
	"github.com/walteh/libstage/pkg/stage"
	"github.com/walteh/libstage/pkg/trigger"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Operation is a single run of the staging step
type Operation interface {
	Execute(ctx context.Context) error
}

// 🔧 Options contains configuration for a staging operation
type Options struct {
	// Env is the build context
	Env *config.Env
	// Rules defaults to config.DefaultRules
	Rules *config.Rules
	// Declarer receives the rebuild trigger
	Declarer *trigger.Declarer
	// Reporter is optional console reporting
	Reporter stage.Reporter
	// DryRun stages nothing, but still declares the trigger
	DryRun bool
}

// 📊 Result is what a staging operation did
type Result struct {
	Plan   *platform.Plan
	Found  []locate.RuntimeLibraryRef
	Report *stage.Report
}

// 🏭 New creates a staging operation
func New(opts Options) (*StageOperation, error) {
	if opts.Env == nil {
		return nil, errors.Errorf("env is required")
	}
	if opts.Declarer == nil {
		return nil, errors.Errorf("declarer is required")
	}
	if opts.Rules == nil {
		opts.Rules = config.DefaultRules()
	}
	return &StageOperation{opts: opts}, nil
}

// 📦 StageOperation resolves, locates and stages runtime libraries
type StageOperation struct {
	opts   Options
	result *Result
}

var _ Operation = (*StageOperation)(nil)

// 🏃 Execute runs the step. Only an unreadable source directory or a
// failure to write the trigger is returned as an error.
func (op *StageOperation) Execute(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	plan := platform.Resolve(op.opts.Env, op.opts.Rules)
	op.result = &Result{Plan: plan, Report: &stage.Report{DryRun: op.opts.DryRun}}

	logger.Debug().
		Stringer("platform", plan.Platform).
		Str("source", plan.SourceDir).
		Strs("destinations", plan.Destinations).
		Msg("resolved staging plan")

	// the trigger must be out before anything below can fail
	if err := op.opts.Declarer.Declare(ctx, plan.WatchDir); err != nil {
		return errors.Errorf("declaring rebuild trigger: %w", err)
	}

	if !plan.Active() {
		logger.Debug().Str("target_os", op.opts.Env.TargetOS).Msg("no runtime libraries for this platform")
		return nil
	}

	locator := &locate.Locator{Ignore: op.opts.Rules.Ignore}
	found, err := locator.Locate(ctx, plan.SourceDir, plan.Rule)
	if err != nil {
		return errors.Errorf("locating runtime libraries: %w", err)
	}
	op.result.Found = found

	stager := stage.New(stage.Options{
		Reporter: op.opts.Reporter,
		Platform: plan.Platform.String(),
		Source:   plan.SourceDir,
		DryRun:   op.opts.DryRun,
	})
	op.result.Report = stager.Stage(ctx, found, plan.Destinations)

	if failed := op.result.Report.Count(stage.Failed); failed > 0 {
		logger.Warn().Int("failed", failed).Msg("some runtime libraries were not staged")
	}

	return nil
}

// 📊 Result returns what the last Execute did, or nil before the first run
func (op *StageOperation) Result() *Result {
	return op.result
}
