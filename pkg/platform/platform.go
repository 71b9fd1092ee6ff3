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

// Package platform decides what a staging run does for a build target.
package platform

import (
	"path/filepath"
	"strings"

	"github.com/walteh/libstage/pkg/config"
	"github.com/walteh/libstage/pkg/locate"
)

// 🖥️ Platform is a build target family with its own runtime layout
type Platform int

const (
	Other Platform = iota // no runtime libraries are staged
	Windows
	Linux
)

// 🔍 Parse maps a target OS identifier to a Platform.
// Anything unrecognized is Other.
func Parse(os string) Platform {
	switch strings.ToLower(strings.TrimSpace(os)) {
	case "windows":
		return Windows
	case "linux":
		return Linux
	default:
		return Other
	}
}

// String returns the target OS identifier, which is also the rules key
func (p Platform) String() string {
	switch p {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	default:
		return "other"
	}
}

// 📋 Plan is everything a staging run needs to know
type Plan struct {
	Platform     Platform
	SourceDir    string           // where the runtime libraries are read from
	WatchDir     string           // rebuild trigger path, set for every platform
	Rule         locate.MatchRule // nil when there is nothing to stage
	Destinations []string         // examples dir first, then the profile dir
}

// ✅ Active reports whether the plan stages anything
func (p *Plan) Active() bool {
	return p.Rule != nil
}

// 🎯 Resolve builds the Plan for env. It does not touch the filesystem.
func Resolve(env *config.Env, rules *config.Rules) *Plan {
	if rules == nil {
		rules = config.DefaultRules()
	}

	sdk := env.SDKDir(rules)
	watch := rules.WatchDir
	if watch == "" {
		watch = config.DefaultWatchDir
	}

	plan := &Plan{
		Platform: Parse(env.TargetOS),
		WatchDir: filepath.Join(sdk, filepath.FromSlash(watch)),
	}

	switch plan.Platform {
	case Windows, Linux:
		pr, ok := rules.Platforms[plan.Platform.String()]
		if !ok {
			return plan
		}
		plan.SourceDir = filepath.Join(sdk, filepath.FromSlash(pr.Source))
		plan.Rule = matchRule(pr)
	default:
		return plan
	}

	profileDir := filepath.Join(env.OutputRoot, env.Profile)
	plan.Destinations = []string{
		filepath.Join(profileDir, "examples"),
		profileDir,
	}

	return plan
}

// matchRule picks the configured variant; each platform may use either
func matchRule(pr config.PlatformRule) locate.MatchRule {
	if len(pr.Files) > 0 {
		return locate.ExactNameSet{Names: pr.Files}
	}
	if len(pr.Prefixes) > 0 {
		return locate.PrefixScan{Prefixes: pr.Prefixes}
	}
	return nil
}
