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

package aggregator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pymenow/f3backEnd/internal/core/aggregator"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

func candidate(finish genai.FinishReason, texts ...string) *genai.Candidate {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.Candidate{Content: &genai.Content{Parts: parts, Role: string(genai.RoleModel)}, FinishReason: finish}
}

func response(candidates ...*genai.Candidate) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: candidates}
}

func TestFencedCandidate(t *testing.T) {
	out, err := aggregator.Aggregate(context.Background(), response(candidate("", "```json\n{\"data\":{\"x\":1}}\n```")))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": float64(1)}, out.Data)
	assert.False(t, out.Streamed)
	assert.Nil(t, out.Extra)
	assert.Equal(t, map[string]any{}, out.UsageMetadata)
	assert.Equal(t, model.UnknownModelVersion, out.ModelVersion)
}

func TestPartsAreConcatenatedInOrder(t *testing.T) {
	out, err := aggregator.Aggregate(context.Background(), response(candidate("STOP", "```json\n{\"data\":", "{\"title\":\"Heist\"},", "\"notes\":\"n\"}\n```")))
	require.NoError(t, err)

	assert.Equal(t, "Heist", out.Data["title"])
	assert.Equal(t, map[string]any{"notes": "n"}, out.Extra)
	assert.Equal(t, "STOP", out.FinishReason)
}

func TestObjectWithoutDataKeyBecomesData(t *testing.T) {
	out, err := aggregator.Aggregate(context.Background(), response(candidate("", `{"rating":"PG-13"}`)))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rating": "PG-13"}, out.Data)
}

func TestRepairsTrailingComma(t *testing.T) {
	out, err := aggregator.Aggregate(context.Background(), response(candidate("", `{"data":{"a":1,}}`)))
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Data["a"])
}

func TestSingleUnparsableCandidateFails(t *testing.T) {
	_, err := aggregator.Aggregate(context.Background(), response(candidate("", "I cannot help with that.")))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.MalformedModelOutput))
}

func TestPartialParseFailureIsTolerated(t *testing.T) {
	out, err := aggregator.Aggregate(context.Background(), response(
		candidate("", "not json at all"),
		candidate("", `{"data":{"y":2}}`),
	))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": float64(2)}, out.Data)
}

func TestNoCandidates(t *testing.T) {
	_, err := aggregator.Aggregate(context.Background(), response())
	assert.True(t, apperr.Is(err, apperr.MalformedModelOutput))
}

func TestStreamMerge(t *testing.T) {
	chunks := []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{candidate("", "a")}, ModelVersion: "gemini-2.0-flash-001"},
		{Candidates: []*genai.Candidate{candidate("", "b")}, UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 5}},
		{Candidates: []*genai.Candidate{candidate("STOP", "c")}, ModelVersion: "later"},
	}

	merged := aggregator.MergeChunks(chunks)
	require.Len(t, merged.Candidates, 1)
	assert.Equal(t, "abc", aggregator.CandidateText(merged.Candidates[0]))
	assert.Equal(t, genai.FinishReason("STOP"), merged.Candidates[0].FinishReason)
	assert.Equal(t, int32(5), merged.UsageMetadata.TotalTokenCount)
	assert.Equal(t, "gemini-2.0-flash-001", merged.ModelVersion)

	// "abc" is not JSON, so the parse attempt on the merged text fails.
	_, err := aggregator.AggregateStream(context.Background(), chunks)
	assert.True(t, apperr.Is(err, apperr.MalformedModelOutput))

	// Inputs are left untouched by the merge.
	assert.Len(t, chunks[0].Candidates[0].Content.Parts, 1)
}

func TestStreamedResult(t *testing.T) {
	chunks := []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{candidate("", "```json\n{\"data\":")}},
		{Candidates: []*genai.Candidate{candidate("", "{\"x\":1}")}, UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2, TotalTokenCount: 5}},
		{Candidates: []*genai.Candidate{candidate("STOP", "}\n```")}},
	}

	out, err := aggregator.AggregateStream(context.Background(), chunks)
	require.NoError(t, err)
	assert.True(t, out.Streamed)
	assert.Equal(t, map[string]any{"x": float64(1)}, out.Data)
	assert.Equal(t, float64(5), out.UsageMetadata["totalTokenCount"])
	assert.Equal(t, model.TokenCounts{Prompt: 3, Candidates: 2, Total: 5}, out.Tokens)
	assert.Equal(t, "STOP", out.FinishReason)
}

func TestAggregateIsPure(t *testing.T) {
	resp := response(candidate("STOP", `{"data":{"scenes":{"1":{"sceneSummary":"x"}}},"meta":true}`))
	resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 9}

	first, err := aggregator.Aggregate(context.Background(), resp)
	require.NoError(t, err)
	second, err := aggregator.Aggregate(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, aggregator.StripFences("  ```json\n{\"a\":1}\n```  "))
	assert.Equal(t, `{"a":1}`, aggregator.StripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, aggregator.StripFences(`{"a":1}`))
}
