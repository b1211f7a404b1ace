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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// media synthesis pipeline.
//
// Logic Flow:
//  1. The scene-analysis-completed event is parsed into a version key.
//  2. The scene analysis is loaded. When there is none the remaining steps
//     are skipped and the run counts as a success.
//  3. The record is flagged in progress (`audioProcessing = 0`).
//  4. Every scene summary and dialogue line is synthesized, failures are
//     isolated per unit.
//  5. The new tree, the playlist and `audioProcessing = 1` are written once.
//
// A failure of steps 2 to 5 flags the record failed (`audioProcessing = -1`).
package workflow

import (
	goctx "context"
	"log/slog"
	"time"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// MediaSynthesisWorkflow turns a scene analysis into audio. It is used as the
// command of the SceneAnalysisTopic listener and by the inline trigger.
type MediaSynthesisWorkflow struct {
	cor.BaseCommand
	store store.ResultStore
	chain cor.Chain
}

// NewMediaSynthesisWorkflow is the constructor for the MediaSynthesisWorkflow.
//
// Inputs:
//   - s: The result store holding the scene analysis.
//   - runner: Synthesizes and stores one unit.
//   - workers: Units synthesized in parallel.
//   - unitTimeout: Deadline of one unit.
func NewMediaSynthesisWorkflow(s store.ResultStore, runner commands.UnitRunner, workers int, unitTimeout time.Duration) *MediaSynthesisWorkflow {
	w := &MediaSynthesisWorkflow{BaseCommand: *cor.NewBaseCommand("media-synthesis-workflow"), store: s}

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewSceneEventReader("scene-event-reader"))
	out.AddCommand(commands.NewLoadSceneAnalysis("load-scene-analysis", s))
	out.AddCommand(commands.NewMarkAudioProcessing("mark-audio-processing", s))
	out.AddCommand(commands.NewSynthesizeSceneAudio("synthesize-scene-audio", runner, workers, unitTimeout))
	out.AddCommand(commands.NewWriteSceneTree("write-scene-tree", s))
	w.chain = out
	return w
}

// Execute runs the chain. The message is expected in the context input.
func (w *MediaSynthesisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
	if context.HasErrors() {
		w.markFailed(context)
	}
}

// Run executes the pipeline for key outside of Pub/Sub.
func (w *MediaSynthesisWorkflow) Run(ctx goctx.Context, key model.VersionKey) error {
	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(cor.CtxIn, sceneEvent(key))

	w.Execute(chCtx)
	return chCtx.Err()
}

func (w *MediaSynthesisWorkflow) markFailed(context cor.Context) {
	key, ok := context.Get(commands.ParamVersionKey).(model.VersionKey)
	if !ok {
		return
	}
	ctx := goctx.WithoutCancel(context.GetContext())
	slog.ErrorContext(ctx, "media synthesis failed", "scriptId", key.ScriptID, "versionId", key.VersionID, "error", context.Err())

	err := w.store.UpdateAnalysisFields(ctx, key, model.SceneAnalysis, map[string]any{
		store.FieldAudioProcessing: model.AudioPipelineFailed,
	})
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		slog.ErrorContext(ctx, "failed to flag media synthesis failure", "scriptId", key.ScriptID, "error", err)
	}
}
