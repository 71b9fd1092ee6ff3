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
	"fmt"
	"io"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/libstage/pkg/operation"
	"github.com/walteh/libstage/pkg/stage"
	"github.com/walteh/libstage/pkg/trigger"
	"gitlab.com/tozd/go/errors"
)

// newPlanCmd creates the plan command
func newPlanCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what run would copy, without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := o.execute(cmd.Context(), trigger.NewDeclarer(io.Discard, trigger.FormatPlain), true)
			if err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), res)
		},
	}
}

// 📋 renderPlan prints the resolved plan and one table row per file and destination
func renderPlan(w io.Writer, res *operation.Result) error {
	fmt.Fprintf(w, "platform:  %s\n", res.Plan.Platform)
	fmt.Fprintf(w, "watch:     %s\n", res.Plan.WatchDir)

	if !res.Plan.Active() {
		fmt.Fprintln(w, "nothing to stage")
		return nil
	}

	fmt.Fprintf(w, "source:    %s\n", res.Plan.SourceDir)
	fmt.Fprintf(w, "rule:      %s\n", res.Plan.Rule)

	if len(res.Report.Results) == 0 {
		fmt.Fprintln(w, "no runtime libraries found")
		return nil
	}

	data := pterm.TableData{{"file", "destination", "action"}}
	for _, r := range res.Report.Results {
		data = append(data, []string{r.Ref.Name, filepath.Dir(r.Destination), planAction(r)})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Errorf("rendering plan: %w", err)
	}

	fmt.Fprintln(w, table)
	return nil
}

func planAction(r stage.Result) string {
	if r.Outcome != stage.Copied {
		return r.Outcome.String()
	}
	switch r.Status {
	case stage.StatusNew:
		return "create"
	case stage.StatusModified:
		return "overwrite"
	case stage.StatusUnchanged:
		return "unchanged"
	default:
		return "copy"
	}
}
