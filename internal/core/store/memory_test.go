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

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

func seed(t *testing.T, s store.ResultStore) model.VersionKey {
	t.Helper()
	now := time.Now()
	script, version, err := s.CreateScript(context.Background(), "u1",
		&model.Script{Title: "Heist", Description: "d", OwnerID: "u1", CreatedAt: now, LastModifiedAt: now},
		&model.Version{Content: "INT. VAULT - NIGHT", VersionNumber: 1, CreatedAt: now, ModifiedBy: "u1"})
	require.NoError(t, err)
	require.Equal(t, version.ID, script.CurrentVersion)
	return model.VersionKey{UserID: "u1", ScriptID: script.ID, VersionID: version.ID}
}

func TestAddVersionNumbersIncrease(t *testing.T) {
	s := store.NewMemoryStore()
	key := seed(t, s)
	ctx := context.Background()

	var numbers []int
	var lastID string
	for i := 0; i < 3; i++ {
		v, err := s.AddVersion(ctx, "u1", key.ScriptID, &model.Version{Content: "more", ModifiedBy: "u1"}, time.Now())
		require.NoError(t, err)
		numbers = append(numbers, v.VersionNumber)
		lastID = v.ID
	}
	assert.Equal(t, []int{2, 3, 4}, numbers)

	script, err := s.GetScript(ctx, "u1", key.ScriptID)
	require.NoError(t, err)
	assert.Equal(t, lastID, script.CurrentVersion)
}

func TestAddVersionToMissingScript(t *testing.T) {
	_, err := store.NewMemoryStore().AddVersion(context.Background(), "u1", "nope", &model.Version{Content: "x"}, time.Now())
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateAnalysisRejectsDuplicate(t *testing.T) {
	s := store.NewMemoryStore()
	key := seed(t, s)
	ctx := context.Background()
	record := model.NewAnalysisRecord(model.Rating, &model.AggregatedResult{Data: map[string]any{"rating": "PG"}}, time.Now())

	require.NoError(t, s.CreateAnalysis(ctx, key, record))
	err := s.CreateAnalysis(ctx, key, record)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.DuplicateAnalysis))

	found, err := s.FindAnalyses(ctx, key, model.Rating)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, model.StatusCompleted, found[0].Status)
	assert.Equal(t, model.UnknownModelVersion, found[0].ModelVersion)
}

func TestReadsAreCopies(t *testing.T) {
	s := store.NewMemoryStore()
	key := seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.CreateAnalysis(ctx, key, &model.AnalysisRecord{
		AnalysisType: model.SceneAnalysis,
		Data:         map[string]any{"scenes": map[string]any{"1": map[string]any{"sceneSummary": "x"}}},
	}))

	first, err := store.FirstAnalysis(ctx, s, key, model.SceneAnalysis)
	require.NoError(t, err)
	first.Data["scenes"].(map[string]any)["1"] = "mutated"

	again, err := store.FirstAnalysis(ctx, s, key, model.SceneAnalysis)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sceneSummary": "x"}, again.Data["scenes"].(map[string]any)["1"])
}

func TestUpdateAnalysisFields(t *testing.T) {
	s := store.NewMemoryStore()
	key := seed(t, s)
	ctx := context.Background()

	err := s.UpdateAnalysisFields(ctx, key, model.SceneAnalysis, map[string]any{store.FieldAudioProcessing: 0})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	require.NoError(t, s.CreateAnalysis(ctx, key, &model.AnalysisRecord{AnalysisType: model.SceneAnalysis, Data: map[string]any{}}))
	require.NoError(t, s.UpdateAnalysisFields(ctx, key, model.SceneAnalysis, map[string]any{
		store.FieldAudioProcessing: model.AudioPipelineCompleted,
		store.FieldAudioPlaylist:   []string{"a.mp3"},
	}))

	r, err := store.FirstAnalysis(ctx, s, key, model.SceneAnalysis)
	require.NoError(t, err)
	require.NotNil(t, r.AudioProcessing)
	assert.Equal(t, model.AudioPipelineCompleted, *r.AudioProcessing)
	assert.Equal(t, []string{"a.mp3"}, r.AudioPlaylist)
}

func TestMissingAnalysisIsNotFound(t *testing.T) {
	s := store.NewMemoryStore()
	key := seed(t, s)
	_, err := store.FirstAnalysis(context.Background(), s, key, model.ShotList)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
