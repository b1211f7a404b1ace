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

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// TriggerMedia hands a freshly persisted scene analysis to the media
// pipeline. The request never waits on synthesis and a failed hand-off is
// logged, not returned.
type TriggerMedia struct {
	cor.BaseCommand
	trigger MediaTrigger
}

func NewTriggerMedia(name string, trigger MediaTrigger) *TriggerMedia {
	return &TriggerMedia{BaseCommand: *cor.NewBaseCommand(name), trigger: trigger}
}

func (s *TriggerMedia) IsExecutable(context cor.Context) bool {
	if context == nil || s.trigger == nil || context.Get(ParamRecord) == nil {
		return false
	}
	req := analysisRequest(context)
	return req != nil && req.AnalysisType == model.SceneAnalysis
}

func (s *TriggerMedia) Execute(context cor.Context) {
	ctx := context.GetContext()
	key := context.Get(ParamVersionKey).(model.VersionKey)
	if err := s.trigger.Trigger(ctx, key); err != nil {
		s.GetErrorCounter().Add(ctx, 1)
		slog.ErrorContext(ctx, "failed to trigger media synthesis", "scriptId", key.ScriptID, "versionId", key.VersionID, "error", err)
		return
	}
	slog.InfoContext(ctx, "media synthesis triggered", "scriptId", key.ScriptID, "versionId", key.VersionID)
	s.GetSuccessCounter().Add(ctx, 1)
}
