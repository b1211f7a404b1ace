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

// Package workflow_test contains the tests of the workflows. This file
// covers the media synthesis workflow end to end on the in-memory store, with
// the real unit synthesizer wired to fake speech services.
package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/speech"
	"github.com/pymenow/f3backEnd/internal/core/store"
	"github.com/pymenow/f3backEnd/internal/core/workflow"
	test "github.com/pymenow/f3backEnd/internal/testutil"
)

type mediaFixture struct {
	store       *store.MemoryStore
	synthesizer *test.FakeSynthesizer
	objects     *test.FakeObjectStore
	workflow    *workflow.MediaSynthesisWorkflow
}

func newMediaFixture(workers int) *mediaFixture {
	f := &mediaFixture{
		store:       store.NewMemoryStore(),
		synthesizer: &test.FakeSynthesizer{FailOn: map[string]bool{}},
		objects:     test.NewFakeObjectStore("test-bucket"),
	}
	runner := speech.NewUnitSynthesizer(
		&test.FakeDetector{Language: "en-US"},
		speech.NewVoiceSelector(config.Voices, config.Media.DefaultLanguage, config.Media.DefaultGender),
		f.synthesizer,
		f.objects,
	)
	f.workflow = workflow.NewMediaSynthesisWorkflow(f.store, runner, workers, 5*time.Second)
	return f
}

func audioPath(key model.VersionKey, unit string) string {
	return fmt.Sprintf("%s/%s/%s/audio/%s.mp3", key.UserID, key.ScriptID, key.VersionID, unit)
}

func TestMediaSynthesisIsolatesUnitFailures(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			traceCtx, span := tracer.Start(ctx, "media-synthesis-test")
			defer span.End()

			f := newMediaFixture(workers)
			f.synthesizer.FailOn["Check the oxygen."] = true
			key := newScript(t, f.store, test.ScriptText)
			storeAnalysis(t, f.store, key, model.SceneAnalysis, test.SceneAnalysisData())

			chainCtx := cor.NewBaseContext()
			chainCtx.SetContext(traceCtx)
			chainCtx.Add(cor.CtxIn, test.GetTestSceneEventText(key))

			f.workflow.Execute(chainCtx)

			for k, err := range chainCtx.GetErrors() {
				t.Logf("Error: (%s): %v", k, err)
			}
			if chainCtx.HasErrors() {
				span.SetStatus(codes.Error, "failed to execute media synthesis test")
			}
			require.False(t, chainCtx.HasErrors())

			record, err := store.FirstAnalysis(ctx, f.store, key, model.SceneAnalysis)
			require.NoError(t, err)
			require.NotNil(t, record.AudioProcessing)
			assert.Equal(t, model.AudioPipelineCompleted, *record.AudioProcessing)

			assert.Equal(t, []string{
				audioPath(key, "scene_1_summary"),
				audioPath(key, "scene_1_dialogue_0"),
				audioPath(key, "scene_1_dialogue_1"),
				audioPath(key, "scene_2_summary"),
				audioPath(key, "scene_2_dialogue_0"),
			}, record.AudioPlaylist)

			tree, err := model.ParseSceneTree(record.Data)
			require.NoError(t, err)
			require.Len(t, tree.Scenes, 2)

			failed := tree.Scenes[1].Dialogues[1]
			require.NotNil(t, failed.Audio)
			assert.Equal(t, model.UnitFailed, failed.Audio.Processing)
			assert.Empty(t, failed.Audio.Path)
			assert.Equal(t, "Raj", failed.Extra["character"])

			done := tree.Scenes[0].Dialogues[0]
			require.NotNil(t, done.Audio)
			assert.Equal(t, model.UnitDone, done.Audio.Processing)
			assert.Equal(t, audioPath(key, "scene_1_dialogue_0"), done.Audio.Path)

			require.NotNil(t, tree.Scenes[1].Audio)
			assert.Equal(t, model.UnitDone, tree.Scenes[1].Audio.Processing)
			assert.Equal(t, "Moon base", tree.Scenes[1].Extra["location"])
			assert.EqualValues(t, 2, record.Data["totalScenes"])

			assert.Len(t, f.objects.Paths(), 5)
			span.SetStatus(codes.Ok, "passed - media synthesis test")
		})
	}
}

func TestMediaSynthesisWithoutSceneAnalysisIsNoop(t *testing.T) {
	f := newMediaFixture(1)
	key := newScript(t, f.store, test.ScriptText)

	err := f.workflow.Run(ctx, key)
	assert.NoError(t, err)
	assert.Empty(t, f.objects.Paths())
	assert.Empty(t, f.synthesizer.Texts)
}

func TestMediaSynthesisRejectsMalformedEvent(t *testing.T) {
	f := newMediaFixture(1)

	chainCtx := cor.NewBaseContextWith(ctx)
	chainCtx.Add(cor.CtxIn, "not an event")
	f.workflow.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

func TestMediaSynthesisTopLevelFailureMarksRecord(t *testing.T) {
	f := newMediaFixture(1)
	key := newScript(t, f.store, test.ScriptText)
	storeAnalysis(t, f.store, key, model.SceneAnalysis, map[string]any{"summary": "no scenes here"})

	err := f.workflow.Run(ctx, key)
	require.Error(t, err)

	record, err := store.FirstAnalysis(ctx, f.store, key, model.SceneAnalysis)
	require.NoError(t, err)
	require.NotNil(t, record.AudioProcessing)
	assert.Equal(t, model.AudioPipelineFailed, *record.AudioProcessing)
	assert.Empty(t, record.AudioPlaylist)
	assert.Empty(t, f.synthesizer.Texts)
}

func TestInlineTriggerRunsPipeline(t *testing.T) {
	f := newMediaFixture(2)
	key := newScript(t, f.store, test.ScriptText)
	storeAnalysis(t, f.store, key, model.SceneAnalysis, test.SceneAnalysisData())

	trigger := workflow.NewInlineTrigger(f.workflow)
	require.NoError(t, trigger.Trigger(ctx, key))
	trigger.Wait()

	record, err := store.FirstAnalysis(ctx, f.store, key, model.SceneAnalysis)
	require.NoError(t, err)
	require.NotNil(t, record.AudioProcessing)
	assert.Equal(t, model.AudioPipelineCompleted, *record.AudioProcessing)
	assert.Len(t, record.AudioPlaylist, 6)
}

type recordingPublisher struct {
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, event any) (string, error) {
	p.events = append(p.events, event)
	return "msg-1", nil
}

func TestPubSubTriggerPublishesVersionKey(t *testing.T) {
	publisher := &recordingPublisher{}
	key := model.VersionKey{UserID: uid, ScriptID: "s1", VersionID: "v1"}

	require.NoError(t, workflow.NewPubSubTrigger(publisher).Trigger(ctx, key))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, key, publisher.events[0])
}
