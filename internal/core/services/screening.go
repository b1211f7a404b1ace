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

package services

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/language/apiv2/languagepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// TextAnalyzer is the part of the Natural Language client used for screening.
type TextAnalyzer interface {
	ModerateText(ctx context.Context, req *languagepb.ModerateTextRequest, opts ...gax.CallOption) (*languagepb.ModerateTextResponse, error)
	ClassifyText(ctx context.Context, req *languagepb.ClassifyTextRequest, opts ...gax.CallOption) (*languagepb.ClassifyTextResponse, error)
	AnalyzeEntities(ctx context.Context, req *languagepb.AnalyzeEntitiesRequest, opts ...gax.CallOption) (*languagepb.AnalyzeEntitiesResponse, error)
}

// Screening holds the three Natural Language results stored for a new
// version, each as a plain JSON object.
type Screening struct {
	Moderation map[string]any `json:"moderation"`
	Categories map[string]any `json:"categories"`
	Entities   map[string]any `json:"entities"`
}

// Screener screens version content.
type Screener interface {
	Screen(ctx context.Context, content string) (*Screening, error)
}

// TextScreener runs moderation, classification and entity extraction.
type TextScreener struct {
	client TextAnalyzer
}

func NewTextScreener(client TextAnalyzer) *TextScreener {
	return &TextScreener{client: client}
}

func (s *TextScreener) Screen(ctx context.Context, content string) (*Screening, error) {
	doc := &languagepb.Document{
		Source: &languagepb.Document_Content{Content: content},
		Type:   languagepb.Document_PLAIN_TEXT,
	}

	moderation, err := s.client.ModerateText(ctx, &languagepb.ModerateTextRequest{Document: doc})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "text moderation failed")
	}
	categories, err := s.client.ClassifyText(ctx, &languagepb.ClassifyTextRequest{Document: doc})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "text classification failed")
	}
	entities, err := s.client.AnalyzeEntities(ctx, &languagepb.AnalyzeEntitiesRequest{
		Document:     doc,
		EncodingType: languagepb.EncodingType_UTF8,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "entity analysis failed")
	}

	out := &Screening{}
	if out.Moderation, err = protoToMap(moderation); err != nil {
		return nil, err
	}
	if out.Categories, err = protoToMap(categories); err != nil {
		return nil, err
	}
	if out.Entities, err = protoToMap(entities); err != nil {
		return nil, err
	}
	return out, nil
}

// protoToMap renders m with its JSON field names so it can be stored as a
// document field.
func protoToMap(m proto.Message) (map[string]any, error) {
	raw, err := protojson.MarshalOptions{EmitUnpopulated: false}.Marshal(m)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to encode %T", m)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to decode %T", m)
	}
	return out, nil
}
