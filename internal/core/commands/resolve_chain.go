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
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/dependency"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// ResolveChain builds the prompt body from the raw script and the stored
// results the analysis type depends on. A missing prerequisite fails with
// MissingDependency and is not retried.
type ResolveChain struct {
	cor.BaseCommand
	assembler *dependency.Assembler
}

func NewResolveChain(name string, assembler *dependency.Assembler) *ResolveChain {
	return &ResolveChain{BaseCommand: *cor.NewBaseCommand(name), assembler: assembler}
}

func (c *ResolveChain) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamScriptContent) != nil && context.Get(ParamVersionKey) != nil
}

func (c *ResolveChain) Execute(context cor.Context) {
	req := analysisRequest(context)
	key := context.Get(ParamVersionKey).(model.VersionKey)
	script := context.Get(ParamScriptContent).(string)

	prompt, err := c.assembler.Assemble(context.GetContext(), key, req.AnalysisType, script)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamPrompt, prompt)
}
