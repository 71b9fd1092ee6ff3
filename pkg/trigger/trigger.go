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

// Package trigger tells the outer build system which paths should re-run the step.
package trigger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📝 Format is the line format understood by the outer build system
type Format string

const (
	FormatCargo Format = "cargo" // cargo:rerun-if-changed=<path>
	FormatPlain Format = "plain" // <path>
)

// 🔍 ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCargo, FormatPlain:
		return f, nil
	case "":
		return FormatCargo, nil
	default:
		return "", errors.Errorf("unknown trigger format %q", s)
	}
}

// 📢 Declarer writes rebuild-trigger declarations
type Declarer struct {
	w      io.Writer
	format Format
}

// 🏭 NewDeclarer creates a declarer writing to w
func NewDeclarer(w io.Writer, format Format) *Declarer {
	if format == "" {
		format = FormatCargo
	}
	return &Declarer{w: w, format: format}
}

// 📢 Declare writes one declaration per path
func (d *Declarer) Declare(ctx context.Context, paths ...string) error {
	logger := zerolog.Ctx(ctx)

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := fmt.Fprintln(d.w, d.line(path)); err != nil {
			return errors.Errorf("writing rebuild trigger: %w", err)
		}
		logger.Debug().Str("path", path).Str("format", string(d.format)).Msg("declared rebuild trigger")
	}

	return nil
}

func (d *Declarer) line(path string) string {
	switch d.format {
	case FormatPlain:
		return path
	default:
		return "cargo:rerun-if-changed=" + path
	}
}
