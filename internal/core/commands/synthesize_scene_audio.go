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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that turns a scene analysis into audio.
//
// Logic Flow:
// This command is the heart of the media synthesis workflow.
//
//  1. **Planning**: The scene tree is read from the record and flattened into
//     synthesis units in strict traversal order: the summary of a scene first,
//     then its dialogues, then the next scene. Every unit remembers its slot.
//  2. **Concurrent Processing**: An errgroup with a limit of `workers`
//     goroutines synthesizes the units. With one worker the run is strictly
//     sequential. Each unit runs under its own deadline and its own span.
//  3. **Fault Isolation**: A unit that fails is recorded as failed
//     (`processing = -1`, empty path) and the batch carries on. Unit errors are
//     never returned to the errgroup, so one bad line cannot cancel the others.
//  4. **Reconstruction**: Results are written into their slots, so the new
//     tree and the playlist follow traversal order whatever the completion
//     order was. The read tree is never mutated; a fresh tree is built.
package commands

import (
	goctx "context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/speech"
)

// UnitRunner synthesizes one unit and returns the stored object path.
type UnitRunner interface {
	Synthesize(ctx goctx.Context, key model.VersionKey, unit speech.Unit) (string, error)
}

// SynthesizedTree is the output of SynthesizeSceneAudio.
type SynthesizedTree struct {
	Tree     *model.SceneTree
	Playlist []string // Object paths of the successful units in traversal order.
	Failed   int      // Number of units that failed.
}

// SynthesizeSceneAudio synthesizes every scene summary and dialogue line.
type SynthesizeSceneAudio struct {
	cor.BaseCommand
	runner             UnitRunner
	workers            int
	unitTimeout        time.Duration
	unitFailureCounter metric.Int64Counter
}

// SceneUnitName names the audio object of a scene summary.
func SceneUnitName(sceneKey string) string {
	return fmt.Sprintf("scene_%s_summary", sceneKey)
}

// DialogueUnitName names the audio object of the index-th dialogue of a scene.
func DialogueUnitName(sceneKey string, index int) string {
	return fmt.Sprintf("scene_%s_dialogue_%d", sceneKey, index)
}

// NewSynthesizeSceneAudio is the constructor for the SynthesizeSceneAudio command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - runner: Synthesizes and stores one unit.
//   - workers: The size of the worker pool. Values below 1 mean 1.
//   - unitTimeout: Deadline of one unit. Zero means one minute.
//
// Outputs:
//   - *SynthesizeSceneAudio: A pointer to the newly instantiated command.
func NewSynthesizeSceneAudio(name string, runner UnitRunner, workers int, unitTimeout time.Duration) *SynthesizeSceneAudio {
	if workers < 1 {
		workers = 1
	}
	if unitTimeout <= 0 {
		unitTimeout = time.Minute
	}
	out := &SynthesizeSceneAudio{
		BaseCommand: *cor.NewBaseCommand(name),
		runner:      runner,
		workers:     workers,
		unitTimeout: unitTimeout,
	}
	out.unitFailureCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.unit.failed", out.GetName()))
	return out
}

func (s *SynthesizeSceneAudio) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamSceneRecord) != nil && context.Get(ParamVersionKey) != nil
}

type unitSlot struct {
	scene    int
	dialogue int // -1 for the scene summary
	unit     speech.Unit
	status   model.AudioStatus
}

// Execute orchestrates the parallel processing of the synthesis units.
func (s *SynthesizeSceneAudio) Execute(context cor.Context) {
	ctx := context.GetContext()
	key := context.Get(ParamVersionKey).(model.VersionKey)
	record := context.Get(ParamSceneRecord).(*model.AnalysisRecord)

	tree, err := model.ParseSceneTree(record.Data)
	if err != nil {
		s.Fail(context, err)
		return
	}

	slots := plan(tree)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range slots {
		slot := &slots[i]
		g.Go(func() error {
			s.run(gctx, key, slot)
			return nil
		})
	}
	_ = g.Wait()

	result := &SynthesizedTree{Playlist: make([]string, 0, len(slots))}
	scenes := make([]model.Scene, len(tree.Scenes))
	for i, scene := range tree.Scenes {
		scenes[i] = scene
		scenes[i].Dialogues = make([]model.Dialogue, len(scene.Dialogues))
		copy(scenes[i].Dialogues, scene.Dialogues)
	}
	for _, slot := range slots {
		status := slot.status
		if status.Processing == model.UnitDone {
			result.Playlist = append(result.Playlist, status.Path)
		} else {
			result.Failed++
		}
		if slot.dialogue < 0 {
			scenes[slot.scene].Audio = &status
		} else {
			scenes[slot.scene].Dialogues[slot.dialogue].Audio = &status
		}
	}
	result.Tree = tree.WithScenes(scenes)

	slog.InfoContext(ctx, "scene audio synthesized",
		"scriptId", key.ScriptID, "versionId", key.VersionID,
		"units", len(slots), "failed", result.Failed)

	s.Succeed(context)
	context.Add(ParamSceneTree, result)
	context.Add(cor.CtxOut, result)
}

func plan(tree *model.SceneTree) []unitSlot {
	slots := make([]unitSlot, 0)
	for i, scene := range tree.Scenes {
		slots = append(slots, unitSlot{
			scene:    i,
			dialogue: -1,
			unit:     speech.Unit{Name: SceneUnitName(scene.Key), Text: scene.Summary, Narration: true},
		})
		for j, d := range scene.Dialogues {
			slots = append(slots, unitSlot{
				scene:    i,
				dialogue: j,
				unit:     speech.Unit{Name: DialogueUnitName(scene.Key, j), Text: d.Content, Gender: d.Gender},
			})
		}
	}
	return slots
}

func (s *SynthesizeSceneAudio) run(ctx goctx.Context, key model.VersionKey, slot *unitSlot) {
	unitCtx, span := s.Tracer.Start(ctx, fmt.Sprintf("%s_%s", s.GetName(), slot.unit.Name))
	defer span.End()
	span.SetAttributes(attribute.String("unit", slot.unit.Name))

	unitCtx, cancel := goctx.WithTimeout(unitCtx, s.unitTimeout)
	defer cancel()

	slot.status = model.AudioStatus{Processing: model.UnitInProgress}
	path, err := s.runner.Synthesize(unitCtx, key, slot.unit)
	if err != nil {
		slot.status = model.AudioStatus{Processing: model.UnitFailed, Path: ""}
		if s.unitFailureCounter != nil {
			s.unitFailureCounter.Add(ctx, 1)
		}
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "audio unit failed", "unit", slot.unit.Name, "scriptId", key.ScriptID, "error", err)
		return
	}
	slot.status = model.AudioStatus{Processing: model.UnitDone, Path: path}
	span.SetStatus(codes.Ok, "unit synthesized")
}
