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

package model

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// Keys of the scene analysis payload that the media pipeline understands.
// Anything else on a scene or dialogue is carried through untouched.
const (
	keyScenes          = "scenes"
	keySceneSummary    = "sceneSummary"
	keyDialogues       = "dialogues"
	keyDialogueContent = "dialogueContent"
	keyGender          = "gender"
	keyAudio           = "audio"
	keyProcessing      = "processing"
	keyPath            = "path"
)

// AudioStatus is the audio state of one synthesis unit.
type AudioStatus struct {
	Processing int    `json:"processing" firestore:"processing"`
	Path       string `json:"path" firestore:"path"`
}

// Dialogue is one spoken line of a scene.
type Dialogue struct {
	Content string
	Gender  string
	Audio   *AudioStatus
	Extra   map[string]any
}

// Scene is one entry of the scene tree.
type Scene struct {
	Key       string
	Summary   string
	Dialogues []Dialogue
	Audio     *AudioStatus
	Extra     map[string]any
}

// SceneTree is the ordered view of `data.scenes` of a scene analysis.
// Scenes stored as an object are ordered by key, numerically when every key
// is an integer; scenes stored as a list keep their list order.
type SceneTree struct {
	Scenes []Scene
	isList bool
}

// ParseSceneTree reads the scenes of a scene analysis payload.
func ParseSceneTree(data map[string]any) (*SceneTree, error) {
	raw, ok := data[keyScenes]
	if !ok || raw == nil {
		return nil, apperr.New(apperr.Validation, "scene analysis has no scenes")
	}

	switch scenes := raw.(type) {
	case map[string]any:
		keys := make([]string, 0, len(scenes))
		for k := range scenes {
			keys = append(keys, k)
		}
		sortSceneKeys(keys)
		tree := &SceneTree{Scenes: make([]Scene, 0, len(keys))}
		for _, k := range keys {
			tree.Scenes = append(tree.Scenes, parseScene(k, scenes[k]))
		}
		return tree, nil
	case []any:
		tree := &SceneTree{Scenes: make([]Scene, 0, len(scenes)), isList: true}
		for i, s := range scenes {
			tree.Scenes = append(tree.Scenes, parseScene(strconv.Itoa(i), s))
		}
		return tree, nil
	default:
		return nil, apperr.New(apperr.Validation, "scene analysis scenes has unexpected type %T", raw)
	}
}

// WithScenes returns a new tree of the same shape holding scenes.
func (t *SceneTree) WithScenes(scenes []Scene) *SceneTree {
	return &SceneTree{Scenes: scenes, isList: t.isList}
}

// IsList reports whether the scenes were stored as a list.
func (t *SceneTree) IsList() bool {
	return t.isList
}

// ToValue renders the tree back into the stored `data.scenes` shape.
func (t *SceneTree) ToValue() any {
	if t.isList {
		out := make([]any, 0, len(t.Scenes))
		for _, s := range t.Scenes {
			out = append(out, s.toMap())
		}
		return out
	}
	out := make(map[string]any, len(t.Scenes))
	for _, s := range t.Scenes {
		out[s.Key] = s.toMap()
	}
	return out
}

// ReplaceScenes returns a copy of data whose scenes are replaced by the tree.
// data itself is not modified.
func ReplaceScenes(data map[string]any, tree *SceneTree) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	out[keyScenes] = tree.ToValue()
	return out
}

func sortSceneKeys(keys []string) {
	numeric := true
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
			break
		}
	}
	if numeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
		return
	}
	sort.Strings(keys)
}

func parseScene(key string, raw any) Scene {
	scene := Scene{Key: key, Extra: map[string]any{}}
	m, ok := raw.(map[string]any)
	if !ok {
		scene.Extra = nil
		if s, isString := raw.(string); isString {
			scene.Summary = s
		}
		return scene
	}
	for k, v := range m {
		switch k {
		case keySceneSummary:
			scene.Summary = stringOf(v)
		case keyDialogues:
			if list, isList := v.([]any); isList {
				for _, d := range list {
					scene.Dialogues = append(scene.Dialogues, parseDialogue(d))
				}
			}
		case keyAudio:
			scene.Audio = parseAudio(v)
		default:
			scene.Extra[k] = v
		}
	}
	return scene
}

func parseDialogue(raw any) Dialogue {
	d := Dialogue{Extra: map[string]any{}}
	m, ok := raw.(map[string]any)
	if !ok {
		d.Content = stringOf(raw)
		return d
	}
	for k, v := range m {
		switch k {
		case keyDialogueContent:
			d.Content = stringOf(v)
		case keyGender:
			d.Gender = stringOf(v)
		case keyAudio:
			d.Audio = parseAudio(v)
		default:
			d.Extra[k] = v
		}
	}
	return d
}

func parseAudio(raw any) *AudioStatus {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	status := &AudioStatus{Path: stringOf(m[keyPath])}
	switch p := m[keyProcessing].(type) {
	case int:
		status.Processing = p
	case int64:
		status.Processing = int(p)
	case float64:
		status.Processing = int(p)
	}
	return status
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func (s Scene) toMap() map[string]any {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	out[keySceneSummary] = s.Summary
	dialogues := make([]any, 0, len(s.Dialogues))
	for _, d := range s.Dialogues {
		dialogues = append(dialogues, d.toMap())
	}
	out[keyDialogues] = dialogues
	if s.Audio != nil {
		out[keyAudio] = s.Audio.toMap()
	}
	return out
}

func (d Dialogue) toMap() map[string]any {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[keyDialogueContent] = d.Content
	if d.Gender != "" {
		out[keyGender] = d.Gender
	}
	if d.Audio != nil {
		out[keyAudio] = d.Audio.toMap()
	}
	return out
}

func (a *AudioStatus) toMap() map[string]any {
	return map[string]any{keyProcessing: a.Processing, keyPath: a.Path}
}
