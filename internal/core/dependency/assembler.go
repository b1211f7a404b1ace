// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dependency

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// AnalysisReader is the slice of the result store the assembler needs.
type AnalysisReader interface {
	FindAnalyses(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType) ([]*model.AnalysisRecord, error)
}

// Assembler builds the labelled prompt body for an analysis.
type Assembler struct {
	resolver *Resolver
	reader   AnalysisReader
}

// NewAssembler is the constructor for Assembler.
func NewAssembler(resolver *Resolver, reader AnalysisReader) *Assembler {
	return &Assembler{resolver: resolver, reader: reader}
}

// Assemble walks the dependencies of analysisType in table order. The raw
// script is used verbatim; every other dependency is the pretty printed
// `data` of its stored record. Each piece is prefixed with its label and
// instruction, pieces are separated by a blank line and the result is trimmed.
//
// A dependency with no stored record fails with MissingDependency naming it.
func (a *Assembler) Assemble(ctx context.Context, key model.VersionKey, analysisType model.AnalysisType, rawScript string) (string, error) {
	deps, err := a.resolver.DependenciesOf(analysisType)
	if err != nil {
		return "", err
	}

	pieces := make([]string, 0, len(deps))
	for _, dep := range deps {
		instruction, err := a.resolver.InstructionFor(analysisType, dep)
		if err != nil {
			return "", err
		}

		var content string
		if dep == model.ScriptContent {
			content = rawScript
		} else {
			records, err := a.reader.FindAnalyses(ctx, key, dep)
			if err != nil {
				return "", err
			}
			if len(records) == 0 || records[0].Data == nil {
				return "", apperr.New(apperr.MissingDependency, "%s requires %s to be completed first.", analysisType, dep)
			}
			pretty, err := json.MarshalIndent(records[0].Data, "", "  ")
			if err != nil {
				return "", apperr.Wrap(apperr.Internal, err, "failed to serialize %s", dep)
			}
			content = string(pretty)
		}

		var b strings.Builder
		b.WriteString(a.resolver.Label(dep))
		b.WriteString(":\n")
		if instruction != "" {
			b.WriteString(instruction)
			b.WriteString("\n")
		}
		b.WriteString(content)
		pieces = append(pieces, b.String())
	}

	return strings.TrimSpace(strings.Join(pieces, "\n\n")), nil
}
