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

// Package prompts holds the system instruction of every model backed analysis
// type, embedded from instructions/<analysisType>.md.
package prompts

import (
	"embed"
	"strings"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

//go:embed instructions/*.md
var files embed.FS

// SystemInstruction returns the trimmed instruction for t.
func SystemInstruction(t model.AnalysisType) (string, error) {
	b, err := files.ReadFile("instructions/" + string(t) + ".md")
	if err != nil {
		return "", apperr.Wrap(apperr.Configuration, err, "no system instruction for %s", t)
	}
	return strings.TrimSpace(string(b)), nil
}

// MustLoadAll returns the instructions of every model backed type and panics
// when one is missing. It is called once at startup.
func MustLoadAll() map[model.AnalysisType]string {
	out := make(map[model.AnalysisType]string)
	for _, t := range model.ModelBackedTypes() {
		s, err := SystemInstruction(t)
		if err != nil {
			panic(err)
		}
		out[t] = s
	}
	return out
}
