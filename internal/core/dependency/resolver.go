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

// Package dependency resolves which stored analyses an analysis type builds on
// and assembles them into the single prompt body handed to the model.
//
// The dependency table is a static YAML document embedded in the binary. It is
// validated once when the Resolver is built:
//  1. Every chain must include `script`, the universal root.
//  2. Every dependency must be `script` or a type that has its own chain.
//  3. Following dependencies from any type must terminate (no cycles).
//
// A table that fails validation yields a Configuration error and the server
// refuses to start.
package dependency

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

//go:embed chains.yaml
var defaultTable []byte

// Edge is one prerequisite of an analysis type.
type Edge struct {
	Dependency  model.AnalysisType `yaml:"dependency"`  // The prerequisite type, or `script`.
	Instruction string             `yaml:"instruction"` // How the model should use the prerequisite.
}

type table struct {
	Labels map[model.AnalysisType]string `yaml:"labels"`
	Chains map[model.AnalysisType][]Edge `yaml:"chains"`
}

// Resolver answers dependency questions from the validated table.
type Resolver struct {
	labels map[model.AnalysisType]string
	chains map[model.AnalysisType][]Edge
}

// NewResolver loads the embedded dependency table.
func NewResolver() (*Resolver, error) {
	return Load(defaultTable)
}

// Load parses and validates a dependency table.
//
// Inputs:
//   - data: The YAML document.
//
// Outputs:
//   - *Resolver: The resolver, only returned when the table is valid.
//   - error: A Configuration error describing the first problem found.
func Load(data []byte) (*Resolver, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, apperr.Wrap(apperr.Configuration, err, "failed to parse dependency table")
	}
	r := &Resolver{labels: t.Labels, chains: t.Chains}
	if r.labels == nil {
		r.labels = map[model.AnalysisType]string{}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Types returns every analysis type that has a chain, sorted.
func (r *Resolver) Types() []model.AnalysisType {
	out := make([]model.AnalysisType, 0, len(r.chains))
	for t := range r.chains {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DependenciesOf returns the ordered prerequisites of t.
func (r *Resolver) DependenciesOf(t model.AnalysisType) ([]model.AnalysisType, error) {
	chain, ok := r.chains[t]
	if !ok {
		return nil, apperr.New(apperr.Validation, "unsupported analysis type %q", t)
	}
	out := make([]model.AnalysisType, 0, len(chain))
	for _, e := range chain {
		out = append(out, e.Dependency)
	}
	return out, nil
}

// InstructionFor returns the instruction for the (t, dependency) edge.
func (r *Resolver) InstructionFor(t, dependency model.AnalysisType) (string, error) {
	for _, e := range r.chains[t] {
		if e.Dependency == dependency {
			return e.Instruction, nil
		}
	}
	return "", apperr.New(apperr.Configuration, "%s does not depend on %s", t, dependency)
}

// Label returns the human readable label of an analysis type.
func (r *Resolver) Label(t model.AnalysisType) string {
	if l, ok := r.labels[t]; ok && l != "" {
		return l
	}
	return fmt.Sprintf("%s Result", t)
}

// Validate checks the invariants listed in the package documentation.
func (r *Resolver) Validate() error {
	if len(r.chains) == 0 {
		return apperr.New(apperr.Configuration, "dependency table has no chains")
	}
	for _, t := range r.Types() {
		hasScript := false
		for _, e := range r.chains[t] {
			if e.Dependency == model.ScriptContent {
				hasScript = true
				continue
			}
			if _, ok := r.chains[e.Dependency]; !ok {
				return apperr.New(apperr.Configuration, "%s depends on unknown analysis type %s", t, e.Dependency)
			}
		}
		if !hasScript {
			return apperr.New(apperr.Configuration, "invalid dependency configuration for %s: 'script' must be included", t)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[model.AnalysisType]int, len(r.chains))
	var visit func(t model.AnalysisType, path []model.AnalysisType) error
	visit = func(t model.AnalysisType, path []model.AnalysisType) error {
		if t == model.ScriptContent {
			return nil
		}
		switch state[t] {
		case visiting:
			return apperr.New(apperr.Configuration, "dependency cycle: %v", append(path, t))
		case done:
			return nil
		}
		state[t] = visiting
		for _, e := range r.chains[t] {
			if err := visit(e.Dependency, append(path, t)); err != nil {
				return err
			}
		}
		state[t] = done
		return nil
	}
	for _, t := range r.Types() {
		if err := visit(t, nil); err != nil {
			return err
		}
	}
	return nil
}
