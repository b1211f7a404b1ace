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

package model_test

import (
	"testing"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneKeysOrderNumerically(t *testing.T) {
	data := map[string]any{
		"scenes": map[string]any{
			"10": map[string]any{"sceneSummary": "ten"},
			"2":  map[string]any{"sceneSummary": "two"},
			"1":  map[string]any{"sceneSummary": "one"},
		},
	}
	tree, err := model.ParseSceneTree(data)
	require.NoError(t, err)

	keys := make([]string, 0, len(tree.Scenes))
	for _, s := range tree.Scenes {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"1", "2", "10"}, keys)
	assert.False(t, tree.IsList())
}

func TestSceneKeysOrderLexicallyWhenMixed(t *testing.T) {
	data := map[string]any{
		"scenes": map[string]any{
			"scene_b": map[string]any{},
			"scene_a": map[string]any{},
			"3":       map[string]any{},
		},
	}
	tree, err := model.ParseSceneTree(data)
	require.NoError(t, err)
	assert.Equal(t, "3", tree.Scenes[0].Key)
	assert.Equal(t, "scene_a", tree.Scenes[1].Key)
	assert.Equal(t, "scene_b", tree.Scenes[2].Key)
}

func TestListScenesRoundTripAsList(t *testing.T) {
	data := map[string]any{
		"title": "kept",
		"scenes": []any{
			map[string]any{
				"sceneSummary": "A quiet street.",
				"location":     "EXT. STREET",
				"dialogues": []any{
					map[string]any{"dialogueContent": "Hello.", "gender": "FEMALE", "character": "ANNA"},
				},
			},
		},
	}
	tree, err := model.ParseSceneTree(data)
	require.NoError(t, err)
	require.True(t, tree.IsList())
	require.Len(t, tree.Scenes, 1)
	assert.Equal(t, "0", tree.Scenes[0].Key)
	assert.Equal(t, "FEMALE", tree.Scenes[0].Dialogues[0].Gender)

	scenes := append([]model.Scene(nil), tree.Scenes...)
	scenes[0].Audio = &model.AudioStatus{Processing: model.UnitDone, Path: "u/s/v/audio/scene_0_summary.mp3"}
	out := model.ReplaceScenes(data, tree.WithScenes(scenes))

	list, ok := out["scenes"].([]any)
	require.True(t, ok)
	scene := list[0].(map[string]any)
	assert.Equal(t, "EXT. STREET", scene["location"])
	assert.Equal(t, map[string]any{"processing": 2, "path": "u/s/v/audio/scene_0_summary.mp3"}, scene["audio"])
	dialogue := scene["dialogues"].([]any)[0].(map[string]any)
	assert.Equal(t, "ANNA", dialogue["character"])
	assert.Equal(t, "kept", out["title"])

	_, touched := data["scenes"].([]any)[0].(map[string]any)["audio"]
	assert.False(t, touched)
}

func TestMissingScenesIsValidationError(t *testing.T) {
	_, err := model.ParseSceneTree(map[string]any{"summary": "x"})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestArtifactPaths(t *testing.T) {
	key := model.VersionKey{UserID: "u1", ScriptID: "s1", VersionID: "v1"}
	assert.Equal(t, "u1/s1/v1/audio/scene_1_dialogue_0.mp3", model.AudioUnitPath(key, "scene_1_dialogue_0"))
	assert.True(t, model.OwnsPath("u1", "u1/s1/v1/images/a.png"))
	assert.False(t, model.OwnsPath("u1", "u10/s1/v1/images/a.png"))
	assert.False(t, model.OwnsPath("", "u1/x"))

	_, ok := model.ParseArtifactType("videos")
	assert.False(t, ok)
}
