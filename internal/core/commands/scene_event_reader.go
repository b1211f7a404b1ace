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
// initial command of the media synthesis workflow.
//
// Logic Flow:
// The workflow is started either by a Pub/Sub message or by an inline call,
// both carrying the same small JSON event:
//
//	{"userId": "...", "scriptId": "...", "versionId": "..."}
//
//  1. The command receives the raw event as a JSON string from the context.
//  2. It unmarshals it into a `model.VersionKey` and checks that no field is
//     empty.
//  3. The key is stored under a well-known name so that every later step can
//     address the scene analysis, and it is also passed on as the next input.
package commands

import (
	"encoding/json"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// SceneEventReader parses a scene-analysis-completed event.
type SceneEventReader struct {
	cor.BaseCommand
}

// NewSceneEventReader is the constructor for the SceneEventReader command.
func NewSceneEventReader(name string) *SceneEventReader {
	return &SceneEventReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute contains the core logic for parsing the event.
func (c *SceneEventReader) Execute(context cor.Context) {
	var raw []byte
	switch in := context.Get(c.GetInputParam()).(type) {
	case string:
		raw = []byte(in)
	case []byte:
		raw = in
	default:
		c.Fail(context, apperr.New(apperr.Validation, "unexpected scene event payload %T", in))
		return
	}

	var key model.VersionKey
	if err := json.Unmarshal(raw, &key); err != nil {
		c.Fail(context, apperr.Wrap(apperr.Validation, err, "failed to unmarshal scene event"))
		return
	}
	if key.UserID == "" || key.ScriptID == "" || key.VersionID == "" {
		c.Fail(context, apperr.New(apperr.Validation, "incomplete scene event %+v", key))
		return
	}

	c.Succeed(context)
	context.Add(ParamVersionKey, key)
	context.Add(c.GetOutputParam(), key)
}
