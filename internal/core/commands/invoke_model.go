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
// command that sends the assembled prompt to the generative model.
//
// Logic Flow:
//  1. It reads the prompt built by ResolveChain and the system instruction of
//     the requested analysis type.
//  2. Buffered requests wait for the full response and store it for the
//     aggregator.
//  3. Streamed requests consume the model stream once. Every chunk is
//     forwarded to the caller's sink as one JSON line and appended to a
//     buffer. When the sink fails (the client went away) forwarding stops but
//     the stream is still drained, so the record can be persisted.
//  4. The model call runs on a context detached from the request's
//     cancellation with its own deadline. A breached deadline is a Timeout.
//  5. Token usage is added to the command's OTel counters.
package commands

import (
	goctx "context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/aggregator"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// InstructionSource returns the system instruction of an analysis type.
type InstructionSource func(t model.AnalysisType) (string, error)

// InvokeModel is a command that calls the generative model for one analysis.
type InvokeModel struct {
	cor.BaseCommand
	generativeAIModel        cloud.ContentGenerator // The rate-limited generative model client.
	instructions             InstructionSource      // System instruction per analysis type.
	timeout                  time.Duration          // Deadline of one call.
	geminiInputTokenCounter  metric.Int64Counter    // OTel counter for input tokens.
	geminiOutputTokenCounter metric.Int64Counter    // OTel counter for output tokens.
	streamChunkCounter       metric.Int64Counter    // OTel counter for streamed chunks.
}

// NewInvokeModel is the constructor for the InvokeModel command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generativeAIModel: The rate-limited model.
//   - instructions: Looks up the system instruction of an analysis type.
//   - timeout: Deadline of one model call. Zero means two minutes.
//
// Outputs:
//   - *InvokeModel: A pointer to the newly instantiated command, including initialized telemetry counters.
func NewInvokeModel(name string, generativeAIModel cloud.ContentGenerator, instructions InstructionSource, timeout time.Duration) *InvokeModel {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	out := &InvokeModel{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		instructions:      instructions,
		timeout:           timeout,
	}
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.streamChunkCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.stream.chunks", out.GetName()))
	return out
}

func (t *InvokeModel) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamPrompt) != nil && analysisRequest(context) != nil
}

// Execute contains the core logic for prompting the generative model.
func (t *InvokeModel) Execute(context cor.Context) {
	req := analysisRequest(context)
	prompt := context.Get(ParamPrompt).(string)

	instruction, err := t.instructions(req.AnalysisType)
	if err != nil {
		t.Fail(context, err)
		return
	}

	callCtx, cancel := goctx.WithTimeout(goctx.WithoutCancel(context.GetContext()), t.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	if !req.Stream {
		resp, err := t.generativeAIModel.GenerateContent(callCtx, contents, instruction)
		if err != nil {
			t.Fail(context, modelError(callCtx, err))
			return
		}
		t.countTokens(context.GetContext(), resp)
		t.Succeed(context)
		context.Add(ParamModelResponse, resp)
		return
	}

	chunks := make([]*genai.GenerateContentResponse, 0)
	forward := req.Sink != nil
	for chunk, err := range t.generativeAIModel.GenerateContentStream(callCtx, contents, instruction) {
		if err != nil {
			t.Fail(context, modelError(callCtx, err))
			return
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if t.streamChunkCounter != nil {
			t.streamChunkCounter.Add(context.GetContext(), 1)
		}
		if !forward {
			continue
		}
		line, err := json.Marshal(chunk)
		if err != nil {
			slog.WarnContext(context.GetContext(), "failed to encode stream chunk", "error", err)
			continue
		}
		if err := req.Sink.WriteChunk(line); err != nil {
			slog.InfoContext(context.GetContext(), "stream client went away, buffering only", "error", err)
			forward = false
		}
	}
	// The last chunk carrying usage is authoritative; it need not be the final one.
	t.countTokens(context.GetContext(), aggregator.MergeChunks(chunks))
	t.Succeed(context)
	context.Add(ParamModelChunks, chunks)
}

func (t *InvokeModel) countTokens(ctx goctx.Context, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	if t.geminiInputTokenCounter != nil {
		t.geminiInputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
	}
	if t.geminiOutputTokenCounter != nil {
		t.geminiOutputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
}

// modelError classifies a failed model call. A breached deadline is a
// Timeout, anything else stays unclassified.
func modelError(ctx goctx.Context, err error) error {
	if ctx.Err() == goctx.DeadlineExceeded || apperr.KindOf(err) == apperr.Timeout {
		return apperr.Wrap(apperr.Timeout, err, "model call exceeded its deadline")
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
