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
// command that appends one row per persisted analysis to the BigQuery usage
// ledger.
//
// Logic Flow:
// The record is already stored when this command runs, so a failed insert
// must not fail the request. The error is logged and counted only.
package commands

import (
	"log/slog"

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// RecordUsage streams a model.UsageRow into the ledger.
type RecordUsage struct {
	cor.BaseCommand
	ledger UsageRecorder
}

// NewRecordUsage is the constructor for the RecordUsage command. A nil ledger
// turns the command into a no-op.
func NewRecordUsage(name string, ledger UsageRecorder) *RecordUsage {
	return &RecordUsage{BaseCommand: *cor.NewBaseCommand(name), ledger: ledger}
}

func (s *RecordUsage) IsExecutable(context cor.Context) bool {
	return context != nil && s.ledger != nil && context.Get(ParamRecord) != nil && context.Get(ParamAggregated) != nil
}

func (s *RecordUsage) Execute(context cor.Context) {
	ctx := context.GetContext()
	key := context.Get(ParamVersionKey).(model.VersionKey)
	record := context.Get(ParamRecord).(*model.AnalysisRecord)
	result := context.Get(ParamAggregated).(*model.AggregatedResult)

	row := model.NewUsageRow(key, record, result.Tokens)
	if err := s.ledger.Record(ctx, row); err != nil {
		s.GetErrorCounter().Add(ctx, 1)
		slog.ErrorContext(ctx, "failed to record usage", "analysisType", record.AnalysisType, "scriptId", key.ScriptID, "error", err)
		return
	}
	s.GetSuccessCounter().Add(ctx, 1)
}
