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


package main

import (
	"github.com/spf13/cobra"
	"github.com/walteh/libstage/pkg/log"
	"github.com/walteh/libstage/pkg/stage"
	"github.com/walteh/libstage/pkg/trigger"
)

// newRunCmd creates the run command, which is also what the bare root command does
func newRunCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Stage runtime libraries and declare the rebuild trigger",
		Long: `Run resolves the target platform, writes the rebuild trigger to stdout,
locates the vendor runtime libraries and copies them into every destination.

Files that cannot be copied are reported and skipped; only an unreadable
source directory fails the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runStage(cmd)
		},
	}
}

func (o *rootOpts) runStage(cmd *cobra.Command) error {
	ctx := cmd.Context()

	format, err := trigger.ParseFormat(o.triggerFormat)
	if err != nil {
		return err
	}

	res, err := o.execute(ctx, trigger.NewDeclarer(cmd.OutOrStdout(), format), false)
	if err != nil {
		return err
	}

	if o.quiet {
		return nil
	}

	console := log.FromContext(ctx)
	switch {
	case !res.Plan.Active():
		console.Infof("no runtime libraries for platform %q", res.Plan.Platform)
	case len(res.Found) == 0:
		console.Warningf("no runtime libraries found in %s", res.Plan.SourceDir)
	case res.Report.Count(stage.Failed) > 0:
		console.Warningf("%d of %d copies failed", res.Report.Count(stage.Failed), len(res.Report.Results))
	default:
		console.Successf("staged %d runtime libraries into %d directories", len(res.Found), len(res.Plan.Destinations))
	}

	return nil
}
