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
// transformation step that follows InvokeModel.
//
// Logic Flow:
// The model answers with JSON text, possibly wrapped in markdown fences and
// spread over several candidates or stream chunks. This command folds that
// into a single `model.AggregatedResult`, the shape every persisted record is
// built from.
//
//  1. It takes either the buffered response or the buffered stream chunks.
//  2. The aggregator strips fences, repairs near-JSON, and merges candidates.
//  3. Text that cannot be decoded is a MalformedModelOutput failure and nothing
//     is persisted.
package commands

import (
	"github.com/pymenow/f3backEnd/internal/core/aggregator"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"google.golang.org/genai"
)

// AggregateResponse turns the raw model output into an AggregatedResult.
type AggregateResponse struct {
	cor.BaseCommand
}

func NewAggregateResponse(name string) *AggregateResponse {
	return &AggregateResponse{BaseCommand: *cor.NewBaseCommand(name)}
}

func (s *AggregateResponse) IsExecutable(context cor.Context) bool {
	return context != nil && (context.Get(ParamModelResponse) != nil || context.Get(ParamModelChunks) != nil)
}

func (s *AggregateResponse) Execute(context cor.Context) {
	ctx := context.GetContext()

	var err error
	var out *model.AggregatedResult
	if chunks, ok := context.Get(ParamModelChunks).([]*genai.GenerateContentResponse); ok {
		out, err = aggregator.AggregateStream(ctx, chunks)
	} else {
		resp, _ := context.Get(ParamModelResponse).(*genai.GenerateContentResponse)
		out, err = aggregator.Aggregate(ctx, resp)
	}
	if err != nil {
		s.Fail(context, err)
		return
	}

	s.Succeed(context)
	context.Add(ParamAggregated, out)
}
