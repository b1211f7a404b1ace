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

package dependency_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/dependency"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[model.AnalysisType]*model.AnalysisRecord

func (m mapReader) FindAnalyses(_ context.Context, _ model.VersionKey, t model.AnalysisType) ([]*model.AnalysisRecord, error) {
	if r, ok := m[t]; ok {
		return []*model.AnalysisRecord{r}, nil
	}
	return nil, nil
}

var key = model.VersionKey{UserID: "u1", ScriptID: "s1", VersionID: "v1"}

func TestEveryModelTypeResolvesToScript(t *testing.T) {
	r, err := dependency.NewResolver()
	require.NoError(t, err)

	for _, at := range model.ModelBackedTypes() {
		deps, err := r.DependenciesOf(at)
		require.NoError(t, err, at)
		assert.Contains(t, deps, model.ScriptContent, at)

		// Walk the transitive closure; a cycle would never drain the queue.
		seen := map[model.AnalysisType]bool{}
		queue := append([]model.AnalysisType(nil), deps...)
		for steps := 0; len(queue) > 0; steps++ {
			require.Less(t, steps, 100, "transitive walk from %s does not terminate", at)
			next := queue[0]
			queue = queue[1:]
			if next == model.ScriptContent || seen[next] {
				continue
			}
			seen[next] = true
			more, err := r.DependenciesOf(next)
			require.NoError(t, err)
			queue = append(queue, more...)
		}
	}
}

func TestLoadRejectsTableWithoutScript(t *testing.T) {
	_, err := dependency.Load([]byte(`
chains:
  rating:
    - dependency: scriptSummary
      instruction: x
  scriptSummary:
    - dependency: script
      instruction: y
`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Configuration))
	assert.Contains(t, err.Error(), "rating")
}

func TestLoadRejectsCycles(t *testing.T) {
	_, err := dependency.Load([]byte(`
chains:
  shotList:
    - dependency: sceneAnalysis
    - dependency: script
  sceneAnalysis:
    - dependency: shotList
    - dependency: script
`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Configuration))
	assert.Contains(t, err.Error(), "cycle")
}

func TestUnknownTypeIsValidationError(t *testing.T) {
	r, err := dependency.NewResolver()
	require.NoError(t, err)
	_, err = r.DependenciesOf("haiku")
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestAssembleSceneAnalysis(t *testing.T) {
	r, err := dependency.NewResolver()
	require.NoError(t, err)
	reader := mapReader{
		model.ScriptSummary: {AnalysisType: model.ScriptSummary, Data: map[string]any{"summary": "A heist goes wrong."}},
	}

	out, err := dependency.NewAssembler(r, reader).Assemble(context.Background(), key, model.SceneAnalysis, "S")
	require.NoError(t, err)

	summaryAt := strings.Index(out, "Script Summary Agent Output:")
	scriptAt := strings.Index(out, "Script Content:")
	require.GreaterOrEqual(t, summaryAt, 0)
	require.Greater(t, scriptAt, summaryAt)
	assert.Contains(t, out, "{\n  \"summary\": \"A heist goes wrong.\"\n}")
	assert.Contains(t, out, "Use the summary to provide context for scene breakdown.")
	assert.True(t, strings.HasSuffix(out, "\nS"))
	assert.Contains(t, out, "}\n\nScript Content:")
	assert.Equal(t, strings.TrimSpace(out), out)
}

func TestAssembleMissingDependency(t *testing.T) {
	r, err := dependency.NewResolver()
	require.NoError(t, err)

	_, err = dependency.NewAssembler(r, mapReader{}).Assemble(context.Background(), key, model.SceneAnalysis, "S")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.MissingDependency))
	assert.Equal(t, "sceneAnalysis requires scriptSummary to be completed first.", apperr.PublicMessage(err))
}

func TestAssembleScriptOnly(t *testing.T) {
	r, err := dependency.NewResolver()
	require.NoError(t, err)

	out, err := dependency.NewAssembler(r, mapReader{}).Assemble(context.Background(), key, model.Rating, "  INT. KITCHEN - NIGHT  ")
	require.NoError(t, err)
	assert.Equal(t, "Script Content:\nEvaluate the script for appropriate content rating and audience suitability.\n  INT. KITCHEN - NIGHT", out)
}
