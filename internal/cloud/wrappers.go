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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around the Gemini models API that adds rate
// limiting and retries.
//
// Behavior:
//   - Rate Limiting: every call waits on a token bucket before it is sent.
//   - Retry Logic: A buffered call that fails for a transient reason is retried
//     up to MaxRetries times with a growing pause. Streams are never retried
//     because chunks may already have been forwarded to a caller.
//
// The system instruction is supplied per call, so one wrapped model serves
// every analysis type.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is what the analysis commands need from a model.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, systemInstruction string) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, contents []*genai.Content, systemInstruction string) iter.Seq2[*genai.GenerateContentResponse, error]
}

// QuotaAwareGenerativeAIModel is a decorator around `genai.Models` for one
// model name and base generation config.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Base config, copied per call.
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter // Token bucket refilled once per second.
	RetryDelay              time.Duration // First pause between retries, doubled each attempt.
	retryCounter            metric.Int64Counter
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareGenerativeAIModel.
//
// Inputs:
//   - wrapped: The base generation config.
//   - name: The Vertex AI model name.
//   - modelHandle: The models API of an initialized genai client.
//   - requestsPerSecond: Burst size of the limiter.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	retries, err := otel.Meter("github.com/pymenow/f3backEnd").Int64Counter(fmt.Sprintf("%s.gemini.retry", name))
	if err != nil {
		slog.Warn("failed to create retry counter", "model", name, "error", err)
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               rate.NewLimiter(rate.Every(time.Second), requestsPerSecond),
		RetryDelay:              2 * time.Second,
		retryCounter:            retries,
	}
}

// NewAnalysisModelConfig builds the generation config used for analyses from
// the model settings.
func NewAnalysisModelConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
}

func (q *QuotaAwareGenerativeAIModel) configFor(systemInstruction string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if q.GenerativeContentConfig != nil {
		copied := *q.GenerativeContentConfig
		cfg = &copied
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return cfg
}

// GenerateContent sends a buffered request.
//
// Logic Flow:
//  1. Wait on the rate limiter. A cancelled context aborts the wait.
//  2. Call the model.
//  3. On failure, pause and try again, up to MaxRetries extra attempts.
//     Context errors are returned immediately.
//
// Inputs:
//   - ctx: The context for the request, its deadline bounds all attempts.
//   - contents: The prompt.
//   - systemInstruction: The instruction for this call.
//
// Outputs:
//   - *genai.GenerateContentResponse: The response from the AI model if successful.
//   - error: The last error once retries are exhausted.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, contents []*genai.Content, systemInstruction string) (*genai.GenerateContentResponse, error) {
	cfg := q.configFor(systemInstruction)
	delay := q.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if err := q.RateLimit.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := q.ModelHandle.GenerateContent(ctx, q.ModelName, contents, cfg)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == MaxRetries {
			break
		}
		slog.WarnContext(ctx, "model call failed, retrying", "model", q.ModelName, "attempt", attempt+1, "error", err)
		if q.retryCounter != nil {
			q.retryCounter.Add(ctx, 1)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, errors.Join(errors.New("failed generation on max retries"), lastErr)
}

// GenerateContentStream starts a streamed request after waiting on the rate
// limiter. A failed wait is yielded as the only element.
func (q *QuotaAwareGenerativeAIModel) GenerateContentStream(ctx context.Context, contents []*genai.Content, systemInstruction string) iter.Seq2[*genai.GenerateContentResponse, error] {
	cfg := q.configFor(systemInstruction)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if err := q.RateLimit.Wait(ctx); err != nil {
			yield(nil, err)
			return
		}
		for chunk, err := range q.ModelHandle.GenerateContentStream(ctx, q.ModelName, contents, cfg) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}
