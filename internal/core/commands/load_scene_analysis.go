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
	"log/slog"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// LoadSceneAnalysis reads the scene analysis of the event's version. A missing
// record (or version) is not an error: the pipeline may be triggered speculatively, so the
// command logs and leaves the context without a record, which makes every
// following step skip.
type LoadSceneAnalysis struct {
	cor.BaseCommand
	store store.ResultStore
}

func NewLoadSceneAnalysis(name string, s store.ResultStore) *LoadSceneAnalysis {
	return &LoadSceneAnalysis{BaseCommand: *cor.NewBaseCommand(name), store: s}
}

func (c *LoadSceneAnalysis) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamVersionKey) != nil
}

func (c *LoadSceneAnalysis) Execute(context cor.Context) {
	ctx := context.GetContext()
	key := context.Get(ParamVersionKey).(model.VersionKey)

	records, err := c.store.FindAnalyses(ctx, key, model.SceneAnalysis)
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		c.Fail(context, err)
		return
	}
	if len(records) == 0 {
		slog.InfoContext(ctx, "no scene analysis to synthesize", "scriptId", key.ScriptID, "versionId", key.VersionID)
		c.Succeed(context)
		return
	}

	c.Succeed(context)
	context.Add(ParamSceneRecord, records[0])
}
