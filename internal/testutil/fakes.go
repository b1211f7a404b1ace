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

package test

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/url"
	"sort"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/speech"
)

// NewTextResponse builds a single-candidate model response.
func NewTextResponse(text string, promptTokens, candidateTokens int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: candidateTokens,
			TotalTokenCount:      promptTokens + candidateTokens,
		},
		ModelVersion: "gemini-test",
	}
}

// NewTextChunk builds a stream chunk holding one text part.
func NewTextChunk(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

// FakeGenerator is a scripted cloud.ContentGenerator.
type FakeGenerator struct {
	mu           sync.Mutex
	Response     *genai.GenerateContentResponse
	Chunks       []*genai.GenerateContentResponse
	Err          error
	Prompts      []string
	Instructions []string
}

func (f *FakeGenerator) record(contents []*genai.Content, instruction string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sb strings.Builder
	for _, c := range contents {
		for _, p := range c.Parts {
			sb.WriteString(p.Text)
		}
	}
	f.Prompts = append(f.Prompts, sb.String())
	f.Instructions = append(f.Instructions, instruction)
}

// Calls returns the number of model calls seen so far.
func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

func (f *FakeGenerator) GenerateContent(ctx context.Context, contents []*genai.Content, systemInstruction string) (*genai.GenerateContentResponse, error) {
	f.record(contents, systemInstruction)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Response, nil
}

func (f *FakeGenerator) GenerateContentStream(ctx context.Context, contents []*genai.Content, systemInstruction string) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(contents, systemInstruction)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.Chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.Err != nil {
			yield(nil, f.Err)
		}
	}
}

// FakeDetector returns Language for any non-empty text.
type FakeDetector struct {
	Language string
	ByText   map[string]string
}

func (f *FakeDetector) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.LanguageDetection, "no text to detect")
	}
	if lang, ok := f.ByText[text]; ok {
		return lang, nil
	}
	if f.Language == "" {
		return "en-US", nil
	}
	return f.Language, nil
}

// FakeSynthesizer returns the text as audio and fails for the texts in FailOn.
type FakeSynthesizer struct {
	mu     sync.Mutex
	FailOn map[string]bool
	Voices []speech.VoiceConfig
	Texts  []string
}

func (f *FakeSynthesizer) Synthesize(ctx context.Context, text string, voice speech.VoiceConfig) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts = append(f.Texts, text)
	f.Voices = append(f.Voices, voice)
	if f.FailOn[text] {
		return nil, apperr.New(apperr.Synthesis, "synthesis failed for %q", text)
	}
	return []byte("ID3" + text), nil
}

// FakeObjectStore keeps objects in memory. It satisfies services.ObjectStore
// and speech.AudioWriter.
type FakeObjectStore struct {
	mu       sync.Mutex
	Bucket   string
	Objects  map[string][]byte
	Types    map[string]string
	SaveErr  error
	Deleted  []string
	SignBase string
}

// NewFakeObjectStore returns an empty store for bucket.
func NewFakeObjectStore(bucket string) *FakeObjectStore {
	return &FakeObjectStore{
		Bucket:   bucket,
		Objects:  make(map[string][]byte),
		Types:    make(map[string]string),
		SignBase: "https://signed.example.com/",
	}
}

func (f *FakeObjectStore) Save(ctx context.Context, path string, contentType string, data []byte) error {
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[path] = append([]byte(nil), data...)
	f.Types[path] = contentType
	return nil
}

func (f *FakeObjectStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[path]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "File not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *FakeObjectStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Objects[path]; !ok {
		return apperr.New(apperr.NotFound, "File not found")
	}
	delete(f.Objects, path)
	f.Deleted = append(f.Deleted, path)
	return nil
}

func (f *FakeObjectStore) SignedURL(ctx context.Context, path string) (string, error) {
	return f.SignBase + url.PathEscape(path) + "?X-Goog-Expires=600", nil
}

func (f *FakeObjectStore) URI(path string) string {
	return "gs://" + f.Bucket + "/" + path
}

// Paths returns the stored object paths in sorted order.
func (f *FakeObjectStore) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Objects))
	for p := range f.Objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
