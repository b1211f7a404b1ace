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

// Package speech turns one unit of text into stored audio: it detects the
// language of the text, picks a voice and calls Text-to-Speech.
package speech

import (
	"context"
	"strings"

	"cloud.google.com/go/language/apiv2/languagepb"
	"github.com/googleapis/gax-go/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// Detector returns the language code of a text.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// SentimentAnalyzer is the part of the Natural Language client used for
// detection. The v2 API reports the language of the analyzed document.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, req *languagepb.AnalyzeSentimentRequest, opts ...gax.CallOption) (*languagepb.AnalyzeSentimentResponse, error)
}

// LanguageDetector detects languages with Natural Language and caches the
// answer per text. Failures are not cached.
type LanguageDetector struct {
	client SentimentAnalyzer
	cache  *lru.Cache[string, string]
}

// NewLanguageDetector is the constructor for LanguageDetector.
func NewLanguageDetector(client SentimentAnalyzer, cacheSize int) (*LanguageDetector, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &LanguageDetector{client: client, cache: cache}, nil
}

// Detect returns the language code of text. An empty answer from the service
// fails closed with LanguageDetection.
func (d *LanguageDetector) Detect(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.LanguageDetection, "cannot detect the language of empty text")
	}
	if code, ok := d.cache.Get(text); ok {
		return code, nil
	}

	resp, err := d.client.AnalyzeSentiment(ctx, &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{Content: text},
			Type:   languagepb.Document_PLAIN_TEXT,
		},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.LanguageDetection, err, "language detection failed")
	}
	code := resp.GetLanguageCode()
	if code == "" {
		return "", apperr.New(apperr.LanguageDetection, "no language detected")
	}
	d.cache.Add(text, code)
	return code, nil
}
