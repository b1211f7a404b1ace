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
// analysis orchestrator.
package workflow

import (
	goctx "context"
	"time"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/dependency"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/services"
	"github.com/pymenow/f3backEnd/internal/core/store"
)

// AnalysisDependencies are the collaborators of the analysis orchestrator.
// Usage and Trigger are optional.
type AnalysisDependencies struct {
	Store        store.ResultStore
	Assembler    *dependency.Assembler
	Model        cloud.ContentGenerator
	Instructions commands.InstructionSource
	Window       services.LengthWindow
	ModelTimeout time.Duration
	Usage        commands.UsageRecorder
	Trigger      commands.MediaTrigger
}

// AnalysisWorkflow runs one model backed analysis of one script version. It
// is structured as a Chain of Responsibility whose commands are the states
// of the orchestrator:
//
//	VALIDATE → AUTHORIZE → CHECK_DUPLICATE → FETCH_SCRIPT → RESOLVE_CHAIN →
//	INVOKE_MODEL → AGGREGATE → PERSIST → RECORD_USAGE → TRIGGER_MEDIA
//
// The chain stops at the first recorded error, which is the ERROR state.
type AnalysisWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

// NewAnalysisWorkflow is the constructor for the AnalysisWorkflow.
func NewAnalysisWorkflow(deps AnalysisDependencies) *AnalysisWorkflow {
	w := &AnalysisWorkflow{BaseCommand: *cor.NewBaseCommand("analysis-workflow")}
	w.initializeChain(deps)
	return w
}

func (w *AnalysisWorkflow) initializeChain(deps AnalysisDependencies) {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewValidateRequest("validate"))
	out.AddCommand(commands.NewAuthorizeRequest("authorize"))
	out.AddCommand(commands.NewCheckDuplicate("check-duplicate", deps.Store))
	out.AddCommand(commands.NewFetchScript("fetch-script", deps.Store, deps.Window))
	out.AddCommand(commands.NewResolveChain("resolve-chain", deps.Assembler))
	out.AddCommand(commands.NewInvokeModel("invoke-model", deps.Model, deps.Instructions, deps.ModelTimeout))
	out.AddCommand(commands.NewAggregateResponse("aggregate"))
	out.AddCommand(commands.NewPersistAnalysis("persist", deps.Store))
	out.AddCommand(commands.NewRecordUsage("record-usage", deps.Usage))
	out.AddCommand(commands.NewTriggerMedia("trigger-media", deps.Trigger))
	w.chain = out
}

// Execute runs the underlying chain.
func (w *AnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Run executes the workflow for req and returns the persisted record. In
// streaming mode the chunks have already been written to req.Sink when Run
// returns.
func (w *AnalysisWorkflow) Run(ctx goctx.Context, req *commands.AnalysisRequest) (*model.AnalysisRecord, error) {
	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.ParamAnalysisRequest, req)

	w.Execute(chCtx)

	if err := chCtx.Err(); err != nil {
		return nil, err
	}
	record, ok := chCtx.Get(commands.ParamRecord).(*model.AnalysisRecord)
	if !ok {
		return nil, apperr.New(apperr.Internal, "analysis %s finished without a record", req.AnalysisType)
	}
	return record, nil
}
