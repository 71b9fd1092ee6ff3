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
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/libstage/pkg/config"
	"github.com/walteh/libstage/pkg/log"
	"github.com/walteh/libstage/pkg/operation"
	"github.com/walteh/libstage/pkg/stage"
	"github.com/walteh/libstage/pkg/trigger"
	"gitlab.com/tozd/go/errors"
)

// rootOpts contains the flags shared by all commands
type rootOpts struct {
	targetOS      string
	profile       string
	targetDir     string
	manifestDir   string
	sdkRoot       string
	rulesFile     string
	envFile       string
	triggerFormat string
	debug         bool
	quiet         bool
	noColor       bool

	lookupEnv config.Lookup
}

func newRootCmd(lookupEnv config.Lookup) *cobra.Command {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	o := &rootOpts{lookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:   "libstage",
		Short: "Stage vendor runtime libraries next to build outputs",
		Long: `libstage copies the vendor runtime libraries for the target platform into the
build output directories and declares a rebuild trigger on the vendor library folder.

Rebuild triggers are written to stdout; everything else goes to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(o.setupLogging(cmd))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runStage(cmd)
		},
	}

	addRootFlags(cmd, o)

	cmd.AddCommand(newRunCmd(o))
	cmd.AddCommand(newPlanCmd(o))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *rootOpts) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.targetOS, "target-os", "", "target operating system (overrides $"+config.EnvTargetOS+")")
	f.StringVar(&o.profile, "profile", "", "build profile (overrides $"+config.EnvProfile+")")
	f.StringVar(&o.targetDir, "target-dir", "", "build output root (overrides $"+config.EnvTargetDir+")")
	f.StringVar(&o.manifestDir, "manifest-dir", "", "directory the step runs for (overrides $"+config.EnvManifestDir+")")
	f.StringVar(&o.sdkRoot, "sdk-root", "", "vendor SDK root (default <manifest-dir>/"+config.DefaultSDKRoot+")")
	f.StringVarP(&o.rulesFile, "rules", "r", "", "rules file (.yaml, .yml, .json or .hcl)")
	f.StringVar(&o.envFile, "env-file", "", "dotenv file filling in unset environment values")
	f.StringVar(&o.triggerFormat, "trigger-format", string(trigger.FormatCargo), "rebuild trigger format (cargo, plain)")
	f.BoolVarP(&o.debug, "debug", "d", false, "enable debug logging")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "suppress per-file console output")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")
}

// setupLogging builds the zerolog and console loggers, both on stderr
func (o *rootOpts) setupLogging(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if o.noColor {
		color.NoColor = true
		pterm.DisableColor()
	}

	level := zerolog.WarnLevel
	if o.debug {
		level = zerolog.DebugLevel
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: o.noColor}).
		Level(level).
		With().Timestamp().
		Logger()

	ctx = zlog.WithContext(ctx)
	return log.NewContext(ctx, log.New(cmd.ErrOrStderr(), zlog))
}

// env builds the build context: flags, then the process environment, then the env file
func (o *rootOpts) env() (*config.Env, error) {
	flags := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			flags[key] = value
		}
	}
	set(config.EnvTargetOS, o.targetOS)
	set(config.EnvProfile, o.profile)
	set(config.EnvTargetDir, o.targetDir)
	set(config.EnvManifestDir, o.manifestDir)

	lookup := config.Chain(config.MapLookup(flags), o.lookupEnv)
	if o.envFile != "" {
		var err error
		lookup, err = config.DotenvLookup(o.envFile, lookup)
		if err != nil {
			return nil, err
		}
	}

	env, err := config.FromLookup(lookup)
	if err != nil {
		return nil, errors.Errorf("reading build environment: %w", err)
	}

	if o.sdkRoot != "" {
		env.SDKRoot = o.sdkRoot
		if err := env.Normalize(); err != nil {
			return nil, errors.Errorf("reading build environment: %w", err)
		}
	}

	return env, nil
}

// execute runs one staging operation with the shared flags
func (o *rootOpts) execute(ctx context.Context, declarer *trigger.Declarer, dryRun bool) (*operation.Result, error) {
	logger := zerolog.Ctx(ctx)

	env, err := o.env()
	if err != nil {
		return nil, err
	}

	rules, err := config.LoadRules(ctx, o.rulesFile)
	if err != nil {
		return nil, errors.Errorf("loading rules: %w", err)
	}

	logger.Debug().Stringer("env", env).Str("rules", o.rulesFile).Msg("starting libstage")

	var reporter stage.Reporter
	if !o.quiet {
		reporter = log.FromContext(ctx)
	}

	op, err := operation.New(operation.Options{
		Env:      env,
		Rules:    rules,
		Declarer: declarer,
		Reporter: reporter,
		DryRun:   dryRun,
	})
	if err != nil {
		return nil, errors.Errorf("creating staging operation: %w", err)
	}

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}

	return op.Result(), nil
}
