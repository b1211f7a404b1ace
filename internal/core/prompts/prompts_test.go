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

package prompts_test

import (
	"strings"
	"testing"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/prompts"
	"github.com/zeebo/assert"
)

func TestEveryModelTypeHasInstruction(t *testing.T) {
	all := prompts.MustLoadAll()
	assert.Equal(t, len(all), len(model.ModelBackedTypes()))
	for _, text := range all {
		assert.That(t, len(text) > 0)
		assert.Equal(t, strings.TrimSpace(text), text)
	}
}

func TestSceneInstructionDescribesTree(t *testing.T) {
	text, err := prompts.SystemInstruction(model.SceneAnalysis)
	assert.NoError(t, err)
	for _, field := range []string{"sceneSummary", "dialogues", "dialogueContent", "gender"} {
		assert.That(t, strings.Contains(text, field))
	}
}

func TestUnknownInstruction(t *testing.T) {
	_, err := prompts.SystemInstruction("haiku")
	assert.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Configuration))
}
