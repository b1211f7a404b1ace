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
	"strings"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/services"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// FetchScript loads the content of the resolved version and enforces the
// script length window before any model call.
type FetchScript struct {
	cor.BaseCommand
	store  store.ResultStore
	window services.LengthWindow
}

func NewFetchScript(name string, s store.ResultStore, window services.LengthWindow) *FetchScript {
	return &FetchScript{BaseCommand: *cor.NewBaseCommand(name), store: s, window: window}
}

func (c *FetchScript) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamVersionKey) != nil
}

func (c *FetchScript) Execute(context cor.Context) {
	key := context.Get(ParamVersionKey).(model.VersionKey)

	version, err := c.store.GetVersion(context.GetContext(), key.UserID, key.ScriptID, key.VersionID)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if strings.TrimSpace(version.Content) == "" {
		c.Fail(context, apperr.New(apperr.NotFound, "Script content not found for this version."))
		return
	}
	if err := c.window.Check(version.Content); err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	context.Add(ParamScriptContent, version.Content)
}
