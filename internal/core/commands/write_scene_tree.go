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

// WriteSceneTree stores the synthesized tree, the playlist and the completed
// pipeline status in a single update. Completed means the batch finished;
// individual units may still carry a failed status.
type WriteSceneTree struct {
	cor.BaseCommand
	store store.ResultStore
}

func NewWriteSceneTree(name string, s store.ResultStore) *WriteSceneTree {
	return &WriteSceneTree{BaseCommand: *cor.NewBaseCommand(name), store: s}
}

func (c *WriteSceneTree) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamSceneTree) != nil && context.Get(ParamSceneRecord) != nil
}

func (c *WriteSceneTree) Execute(context cor.Context) {
	key := context.Get(ParamVersionKey).(model.VersionKey)
	record := context.Get(ParamSceneRecord).(*model.AnalysisRecord)
	result := context.Get(ParamSceneTree).(*SynthesizedTree)

	err := c.store.UpdateAnalysisFields(context.GetContext(), key, model.SceneAnalysis, map[string]any{
		store.FieldData:            model.ReplaceScenes(record.Data, result.Tree),
		store.FieldAudioPlaylist:   result.Playlist,
		store.FieldAudioProcessing: model.AudioPipelineCompleted,
	})
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}
