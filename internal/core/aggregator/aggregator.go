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

// Package aggregator turns raw Gemini output into the canonical result stored
// for an analysis. Buffered responses and streamed chunks end in the same shape.
//
// Logic Flow (buffered):
//  1. For every candidate, the text of its parts is concatenated in order.
//  2. Markdown fences (```json and ```) are stripped.
//  3. The text is decoded as a JSON object. When strict decoding fails the
//     text is passed through jsonrepair and decoded again.
//  4. A `data` key becomes the result data and its siblings go to Extra. An
//     object without `data` is used as the data as a whole.
//  5. Candidates that cannot be decoded are logged and skipped. When no
//     candidate decodes the call fails with MalformedModelOutput.
//
// Logic Flow (streamed):
//  1. Parts are appended per candidate index in arrival order.
//  2. The last chunk carrying usage metadata or a finish reason wins for that
//     field. The model version is taken from the first chunk that reports one.
//  3. The merged response goes through the buffered path and is tagged Streamed.
//
// Both paths are pure: the same input always yields an equal result.
package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"google.golang.org/genai"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

const dataKey = "data"

// Aggregate normalizes one buffered model response.
//
// Inputs:
//   - ctx: Used for logging only.
//   - resp: The model response.
//
// Outputs:
//   - *model.AggregatedResult: The canonical result, Streamed is false.
//   - error: MalformedModelOutput when no candidate holds a JSON object.
func Aggregate(ctx context.Context, resp *genai.GenerateContentResponse) (*model.AggregatedResult, error) {
	return aggregate(ctx, resp, false)
}

// AggregateStream merges the chunks of one streamed call and normalizes the
// merged response.
func AggregateStream(ctx context.Context, chunks []*genai.GenerateContentResponse) (*model.AggregatedResult, error) {
	return aggregate(ctx, MergeChunks(chunks), true)
}

// MergeChunks rebuilds a single response from streamed chunks. Nil chunks are
// ignored. The input chunks are not modified.
func MergeChunks(chunks []*genai.GenerateContentResponse) *genai.GenerateContentResponse {
	merged := &genai.GenerateContentResponse{}
	for _, chunk := range chunks {
		if chunk == nil {
			continue
		}
		if merged.ModelVersion == "" {
			merged.ModelVersion = chunk.ModelVersion
		}
		if chunk.UsageMetadata != nil {
			merged.UsageMetadata = chunk.UsageMetadata
		}
		for i, candidate := range chunk.Candidates {
			if candidate == nil {
				continue
			}
			for len(merged.Candidates) <= i {
				merged.Candidates = append(merged.Candidates, &genai.Candidate{
					Content: &genai.Content{Role: string(genai.RoleModel)},
				})
			}
			target := merged.Candidates[i]
			if candidate.Content != nil {
				target.Content.Parts = append(target.Content.Parts, candidate.Content.Parts...)
			}
			if candidate.FinishReason != "" {
				target.FinishReason = candidate.FinishReason
			}
		}
	}
	return merged
}

// CandidateText concatenates the text parts of a candidate.
func CandidateText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// StripFences removes markdown code fence markers and surrounding space.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeObject decodes s as a JSON object, repairing it when strict decoding
// fails. Anything that is not an object after repair is rejected.
func DecodeObject(s string) (map[string]any, error) {
	var out map[string]any
	err := json.Unmarshal([]byte(s), &out)
	if err == nil && out != nil {
		return out, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(s)
	if repairErr != nil {
		if err == nil {
			err = repairErr
		}
		return nil, err
	}
	out = nil
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, apperr.New(apperr.MalformedModelOutput, "model output is not a JSON object")
	}
	return out, nil
}

func aggregate(ctx context.Context, resp *genai.GenerateContentResponse, streamed bool) (*model.AggregatedResult, error) {
	result := &model.AggregatedResult{
		UsageMetadata: map[string]any{},
		ModelVersion:  model.UnknownModelVersion,
		Streamed:      streamed,
	}
	if resp == nil {
		return nil, apperr.New(apperr.MalformedModelOutput, "model returned no response")
	}
	if resp.ModelVersion != "" {
		result.ModelVersion = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		result.UsageMetadata = usageMap(resp.UsageMetadata)
		result.Tokens = model.TokenCounts{
			Prompt:     int64(resp.UsageMetadata.PromptTokenCount),
			Candidates: int64(resp.UsageMetadata.CandidatesTokenCount),
			Total:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, apperr.New(apperr.MalformedModelOutput, "model returned no candidates")
	}

	parsed := 0
	var lastErr error
	var lastRaw string
	for i, candidate := range resp.Candidates {
		if result.FinishReason == "" && candidate != nil {
			result.FinishReason = string(candidate.FinishReason)
		}
		raw := CandidateText(candidate)
		obj, err := DecodeObject(StripFences(raw))
		if err != nil {
			slog.WarnContext(ctx, "failed to parse model candidate", "candidate", i, "error", err, "raw", raw)
			lastErr, lastRaw = err, raw
			continue
		}
		parsed++
		mergeCandidate(result, obj)
	}

	if parsed == 0 {
		slog.ErrorContext(ctx, "no model candidate could be parsed", "candidates", len(resp.Candidates), "raw", lastRaw)
		return nil, apperr.Wrap(apperr.MalformedModelOutput, lastErr, "model output could not be parsed as JSON")
	}
	return result, nil
}

// mergeCandidate folds one decoded candidate into the result. Earlier
// candidates win on key conflicts.
func mergeCandidate(result *model.AggregatedResult, obj map[string]any) {
	if result.Data == nil {
		result.Data = map[string]any{}
	}
	inner, hasData := obj[dataKey]
	if !hasData {
		fold(result.Data, obj)
		return
	}
	if m, ok := inner.(map[string]any); ok {
		fold(result.Data, m)
	} else if _, exists := result.Data[dataKey]; !exists {
		result.Data[dataKey] = inner
	}
	for k, v := range obj {
		if k == dataKey {
			continue
		}
		if result.Extra == nil {
			result.Extra = map[string]any{}
		}
		if _, exists := result.Extra[k]; !exists {
			result.Extra[k] = v
		}
	}
}

func fold(dst, src map[string]any) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func usageMap(usage *genai.GenerateContentResponseUsageMetadata) map[string]any {
	out := map[string]any{}
	b, err := json.Marshal(usage)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
