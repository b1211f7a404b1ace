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

package commands

import (
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// MarkAudioProcessing flags the scene analysis as in progress before any unit
// is synthesized.
type MarkAudioProcessing struct {
	cor.BaseCommand
	store store.ResultStore
}

func NewMarkAudioProcessing(name string, s store.ResultStore) *MarkAudioProcessing {
	return &MarkAudioProcessing{BaseCommand: *cor.NewBaseCommand(name), store: s}
}

func (c *MarkAudioProcessing) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamSceneRecord) != nil
}

func (c *MarkAudioProcessing) Execute(context cor.Context) {
	key := context.Get(ParamVersionKey).(model.VersionKey)
	err := c.store.UpdateAnalysisFields(context.GetContext(), key, model.SceneAnalysis, map[string]any{
		store.FieldAudioProcessing: model.AudioPipelineInProgress,
	})
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}
